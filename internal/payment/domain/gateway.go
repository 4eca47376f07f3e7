package domain

import (
	"context"
	"net/http"
)

type Gateway interface {
	Provider() string
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

type AdapterConfig struct {
	Provider    string
	Environment string
	Config      map[string]any
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Gateway, error)
}

type WebhookService interface {
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

// SessionIDPlaceholder is substituted by the gateway with the session
// reference when redirecting back to the success URL.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// Metadata keys shared by every gateway.
const (
	MetadataComplaintID   = "complaintId"
	MetadataCustomerEmail = "customerEmail"
)
