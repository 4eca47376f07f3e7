package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
)

const (
	provider = "paypal"

	orderApproved  = "APPROVED"
	orderCompleted = "COMPLETED"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return provider
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	clientID, _ := readString(cfg.Config, "client_id")
	clientSecret, _ := readString(cfg.Config, "client_secret")
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	apiBase := paypal.APIBaseLive
	if sandbox, ok := cfg.Config["sandbox"].(bool); ok && sandbox {
		apiBase = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(strings.TrimSpace(clientID), strings.TrimSpace(clientSecret), apiBase)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	if httpClient, ok := cfg.Config["http_client"].(*http.Client); ok && httpClient != nil {
		client.Client = httpClient
	}
	return &Adapter{orders: client}, nil
}

// ordersAPI is the subset of the PayPal client used here.
type ordersAPI interface {
	GetAccessToken(ctx context.Context) (*paypal.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

type Adapter struct {
	orders ordersAPI
}

func (a *Adapter) Provider() string {
	return provider
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	if _, err := a.orders.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: strconv.FormatInt(req.Metadata.ComplaintID, 10),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(req.Currency),
			Value:    decimal.New(req.Amount, -2).StringFixed(2),
		},
		Description: req.Description,
	}}
	appContext := &paypal.ApplicationContext{
		ReturnURL: returnURL(req.SuccessURL),
		CancelURL: req.CancelURL,
	}

	order, err := a.orders.CreateOrder(ctx, "CAPTURE", units, nil, appContext)
	if err != nil {
		return nil, fmt.Errorf("create paypal order: %w", err)
	}

	approveURL := approvalURL(order)
	if approveURL == "" {
		return nil, errors.New("paypal_approval_url_missing")
	}
	return &paymentdomain.CheckoutSession{ID: order.ID, URL: approveURL}, nil
}

// GetSession captures an approved order before reporting its state, so a
// returning buyer is charged exactly when the complaint is reconciled.
func (a *Adapter) GetSession(ctx context.Context, sessionID string) (*paymentdomain.SessionStatus, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, paymentdomain.ErrSessionNotFound
	}
	if _, err := a.orders.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	order, err := a.orders.GetOrder(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get paypal order: %w", err)
	}
	if order == nil {
		return nil, paymentdomain.ErrSessionNotFound
	}

	if order.Status == orderApproved {
		if _, err := a.orders.CaptureOrder(ctx, sessionID, paypal.CaptureOrderRequest{}); err != nil {
			return nil, fmt.Errorf("capture paypal order: %w", err)
		}
		order, err = a.orders.GetOrder(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("get paypal order: %w", err)
		}
	}

	status := &paymentdomain.SessionStatus{
		SessionID:     order.ID,
		Paid:          order.Status == orderCompleted,
		Status:        strings.ToLower(order.Status),
		TransactionID: order.ID,
	}
	if len(order.PurchaseUnits) > 0 {
		unit := order.PurchaseUnits[0]
		if id, err := strconv.ParseInt(strings.TrimSpace(unit.ReferenceID), 10, 64); err == nil {
			status.Metadata.ComplaintID = id
		}
		if unit.Amount != nil {
			status.AmountTotal = parseAmount(unit.Amount.Value)
		}
	}
	return status, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return paymentdomain.ErrWebhookUnsupported
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	return nil, paymentdomain.ErrWebhookUnsupported
}

func approvalURL(order *paypal.Order) string {
	if order == nil {
		return ""
	}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

// returnURL drops the session placeholder: PayPal appends its own token
// query parameter carrying the order id.
func returnURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	for key, values := range query {
		for _, value := range values {
			if value == paymentdomain.SessionIDPlaceholder {
				query.Del(key)
				break
			}
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// parseAmount converts a PayPal decimal string into minor units.
func parseAmount(value string) int64 {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return amount.Shift(2).Round(0).IntPart()
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
