package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is written once, when a filing fee is confirmed.
type Payment struct {
	ID            int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ComplaintID   int64         `json:"complaintId" gorm:"not null;index"`
	Amount        int64         `json:"amount" gorm:"not null"`
	Status        PaymentStatus `json:"status" gorm:"type:text;not null"`
	TransactionID *string       `json:"transactionId" gorm:"type:text"`
	Provider      string        `json:"provider" gorm:"type:text;not null"`
	CreatedAt     time.Time     `json:"createdAt" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	ComplaintID     *int64         `json:"complaint_id" gorm:"index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout_completed"
	EventTypeCheckoutExpired   = "checkout_expired"
)

// Metadata travels with a checkout session and comes back on verification.
type Metadata struct {
	ComplaintID   int64
	CustomerEmail string
}

type CheckoutRequest struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    Metadata
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// SessionStatus is the gateway's view of a checkout session.
type SessionStatus struct {
	SessionID     string
	Paid          bool
	Status        string
	Metadata      Metadata
	AmountTotal   int64
	TransactionID string
}

// WebhookEvent is the canonical event parsed by adapters.
type WebhookEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	SessionID       string
	ComplaintID     int64
	Amount          int64
	Currency        string
	OccurredAt      time.Time
	RawPayload      []byte
}
