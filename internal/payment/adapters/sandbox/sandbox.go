// Package sandbox simulates a checkout gateway for local development. A
// session is paid as soon as it exists, and its reference carries the
// complaint id and amount so no state is kept between calls.
package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
)

const (
	provider      = "sandbox"
	sessionPrefix = "sbx"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return provider
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Environment), "production") {
		return nil, paymentdomain.ErrSandboxDisabled
	}
	return &Adapter{}, nil
}

type Adapter struct{}

func (a *Adapter) Provider() string {
	return provider
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	if req.Metadata.ComplaintID <= 0 {
		return nil, paymentdomain.ErrInvalidComplaint
	}
	id := fmt.Sprintf("%s_%d_%d_%s", sessionPrefix, req.Metadata.ComplaintID, req.Amount, ulid.Make().String())
	return &paymentdomain.CheckoutSession{
		ID:  id,
		URL: strings.ReplaceAll(req.SuccessURL, paymentdomain.SessionIDPlaceholder, id),
	}, nil
}

func (a *Adapter) GetSession(ctx context.Context, sessionID string) (*paymentdomain.SessionStatus, error) {
	complaintID, amount, err := decodeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.SessionStatus{
		SessionID:     sessionID,
		Paid:          true,
		Status:        "paid",
		Metadata:      paymentdomain.Metadata{ComplaintID: complaintID},
		AmountTotal:   amount,
		TransactionID: sessionID,
	}, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return paymentdomain.ErrWebhookUnsupported
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	return nil, paymentdomain.ErrWebhookUnsupported
}

func decodeSessionID(sessionID string) (int64, int64, error) {
	parts := strings.Split(strings.TrimSpace(sessionID), "_")
	if len(parts) != 4 || parts[0] != sessionPrefix {
		return 0, 0, paymentdomain.ErrSessionNotFound
	}
	complaintID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || complaintID <= 0 {
		return 0, 0, paymentdomain.ErrSessionNotFound
	}
	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || amount < 0 {
		return 0, 0, paymentdomain.ErrSessionNotFound
	}
	if _, err := ulid.ParseStrict(parts[3]); err != nil {
		return 0, 0, paymentdomain.ErrSessionNotFound
	}
	return complaintID, amount, nil
}
