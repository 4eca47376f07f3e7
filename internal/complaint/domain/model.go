package domain

import "time"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusReceived       Status = "received"
	// StatusProcessing is declared for clients but never written.
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
)

const (
	DefaultFilingFee = int64(500)
	MinContentLength = 10

	FallbackResponseText    = "We acknowledge receipt of your correspondence. It is currently being routed through standard processing protocols. Expect a follow-up within 6-8 months."
	FallbackComplexityScore = 1

	MinComplexityScore = 1
	MaxComplexityScore = 10
)

// Complaint is a filed grievance. AIResponse and ComplexityScore are
// written together when the complaint is resolved.
type Complaint struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Content         string    `json:"content" gorm:"type:text;not null"`
	CustomerEmail   string    `json:"customerEmail" gorm:"type:text;not null"`
	Status          Status    `json:"status" gorm:"type:text;not null;index"`
	FilingFee       int64     `json:"filingFee" gorm:"not null"`
	AIResponse      *string   `json:"aiResponse" gorm:"column:ai_response;type:text"`
	ComplexityScore *int      `json:"complexityScore" gorm:"column:complexity_score"`
	CreatedAt       time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt       time.Time `json:"updatedAt" gorm:"not null"`
}

func (Complaint) TableName() string { return "complaints" }

type SubmitRequest struct {
	Content       string `json:"content"`
	CustomerEmail string `json:"customerEmail"`
}

const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

type ReconcileRequest struct {
	SessionID   string
	ComplaintID int64
	Source      string
}

type ReconcileResult struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

// StatusMetadataMismatch is reported when a paid session belongs to a
// different complaint.
const StatusMetadataMismatch = "metadata_mismatch"

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

const (
	StatsWindowDays = 30
	DateLayout      = "2006-01-02"
)
