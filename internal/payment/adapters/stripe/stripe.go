package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/spf13/cast"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	provider = "stripe"

	// signatureTolerance bounds the age of a signed webhook timestamp.
	signatureTolerance = 5 * time.Minute
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return provider
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	secretKey, ok := readString(cfg.Config, "secret_key")
	if !ok || strings.TrimSpace(secretKey) == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	webhookSecret, _ := readString(cfg.Config, "webhook_secret")

	sc := client.New(strings.TrimSpace(secretKey), nil)
	return &Adapter{
		sessions:      sc.CheckoutSessions,
		webhookSecret: strings.TrimSpace(webhookSecret),
	}, nil
}

// sessionAPI is the subset of the checkout session client used here.
type sessionAPI interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
	Get(id string, params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type Adapter struct {
	sessions      sessionAPI
	webhookSecret string
}

func (a *Adapter) Provider() string {
	return provider
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(strings.ToLower(req.Currency)),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.Description),
				},
				UnitAmount: stripego.Int64(req.Amount),
			},
			Quantity: stripego.Int64(1),
		}},
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	if email := strings.TrimSpace(req.Metadata.CustomerEmail); email != "" {
		params.CustomerEmail = stripego.String(email)
	}
	params.Context = ctx
	params.AddMetadata(paymentdomain.MetadataComplaintID, strconv.FormatInt(req.Metadata.ComplaintID, 10))
	params.AddMetadata(paymentdomain.MetadataCustomerEmail, req.Metadata.CustomerEmail)

	session, err := a.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &paymentdomain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) GetSession(ctx context.Context, sessionID string) (*paymentdomain.SessionStatus, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrSessionNotFound
	}

	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	session, err := a.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripego.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripego.ErrorCodeResourceMissing {
			return nil, paymentdomain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	metadata := make(map[string]any, len(session.Metadata))
	for k, v := range session.Metadata {
		metadata[k] = v
	}

	transactionID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		transactionID = session.PaymentIntent.ID
	}

	return &paymentdomain.SessionStatus{
		SessionID:     session.ID,
		Paid:          session.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
		Status:        string(session.PaymentStatus),
		Metadata:      readMetadata(metadata),
		AmountTotal:   session.AmountTotal,
		TransactionID: transactionID,
	}, nil
}

// Verify checks the Stripe-Signature header against the endpoint secret and
// rejects signatures older than signatureTolerance.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrWebhookUnsupported
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if err := webhook.ValidatePayloadWithTolerance(payload, sigHeader, a.webhookSecret, signatureTolerance); err != nil {
		return fmt.Errorf("%w: %w", paymentdomain.ErrInvalidSignature, err)
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event, payload, paymentdomain.EventTypeCheckoutCompleted)
	case "checkout.session.expired":
		return a.parseCheckoutSession(event, payload, paymentdomain.EventTypeCheckoutExpired)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte, eventType string) (*paymentdomain.WebhookEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	// sessions created outside the portal carry no complaint reference
	metadata := readMetadata(session.Metadata)
	if metadata.ComplaintID <= 0 {
		return nil, paymentdomain.ErrEventIgnored
	}

	return &paymentdomain.WebhookEvent{
		Provider:        provider,
		ProviderEventID: event.ID,
		Type:            eventType,
		SessionID:       session.ID,
		ComplaintID:     metadata.ComplaintID,
		Amount:          session.AmountTotal,
		Currency:        strings.ToUpper(strings.TrimSpace(session.Currency)),
		OccurredAt:      timestamp(session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	PaymentStatus string         `json:"payment_status"`
	Created       int64          `json:"created"`
	Metadata      map[string]any `json:"metadata"`
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func readMetadata(metadata map[string]any) paymentdomain.Metadata {
	out := paymentdomain.Metadata{
		CustomerEmail: readMetadataValue(metadata, paymentdomain.MetadataCustomerEmail),
	}
	if raw := readMetadataValue(metadata, paymentdomain.MetadataComplaintID); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out.ComplaintID = id
		}
	}
	return out
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	str, err := cast.ToStringE(value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(str)
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	default:
		return "", false
	}
}
