package paypal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/plutov/paypal/v4"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	status      string
	captured    int
	created     []paypal.PurchaseUnitRequest
	appContext  *paypal.ApplicationContext
	referenceID string
	amount      string
}

func (f *fakeOrders) GetAccessToken(ctx context.Context) (*paypal.TokenResponse, error) {
	return &paypal.TokenResponse{}, nil
}

func (f *fakeOrders) CreateOrder(ctx context.Context, intent string, units []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error) {
	f.created = units
	f.appContext = appContext
	return &paypal.Order{
		ID:     "ORDER-1",
		Status: "CREATED",
		Links:  []paypal.Link{{Rel: "self", Href: "https://api.paypal.test/orders/ORDER-1"}, {Rel: "approve", Href: "https://paypal.test/approve/ORDER-1"}},
	}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	return &paypal.Order{
		ID:     orderID,
		Status: f.status,
		PurchaseUnits: []paypal.PurchaseUnit{{
			ReferenceID: f.referenceID,
			Amount:      &paypal.PurchaseUnitAmount{Currency: "USD", Value: f.amount},
		}},
	}, nil
}

func (f *fakeOrders) CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error) {
	f.captured++
	f.status = orderCompleted
	return &paypal.CaptureOrderResponse{ID: orderID, Status: orderCompleted}, nil
}

func TestCreateSessionBuildsOrder(t *testing.T) {
	orders := &fakeOrders{}
	adapter := &Adapter{orders: orders}

	session, err := adapter.CreateSession(context.Background(), paymentdomain.CheckoutRequest{
		Amount:      500,
		Currency:    "usd",
		Description: "Complaint filing fee",
		Metadata:    paymentdomain.Metadata{ComplaintID: 9},
		SuccessURL:  "https://portal.test/status/9?session_id=" + paymentdomain.SessionIDPlaceholder,
		CancelURL:   "https://portal.test/payment/9",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", session.ID)
	assert.Equal(t, "https://paypal.test/approve/ORDER-1", session.URL)

	require.Len(t, orders.created, 1)
	assert.Equal(t, "9", orders.created[0].ReferenceID)
	assert.Equal(t, "5.00", orders.created[0].Amount.Value)
	assert.Equal(t, "USD", orders.created[0].Amount.Currency)
	assert.False(t, strings.Contains(orders.appContext.ReturnURL, "CHECKOUT_SESSION_ID"))
}

func TestGetSessionCapturesApprovedOrder(t *testing.T) {
	orders := &fakeOrders{status: orderApproved, referenceID: "9", amount: "5.00"}
	adapter := &Adapter{orders: orders}

	status, err := adapter.GetSession(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, 1, orders.captured)
	assert.True(t, status.Paid)
	assert.Equal(t, int64(9), status.Metadata.ComplaintID)
	assert.Equal(t, int64(500), status.AmountTotal)
	assert.Equal(t, "completed", status.Status)

	// already captured orders are reported without a second capture
	status, err = adapter.GetSession(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, 1, orders.captured)
	assert.True(t, status.Paid)
}

func TestGetSessionUnapprovedOrder(t *testing.T) {
	orders := &fakeOrders{status: "CREATED", referenceID: "9", amount: "5.00"}
	adapter := &Adapter{orders: orders}

	status, err := adapter.GetSession(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.False(t, status.Paid)
	assert.Equal(t, "created", status.Status)
	assert.Zero(t, orders.captured)
}

func TestWebhooksUnsupported(t *testing.T) {
	adapter := &Adapter{orders: &fakeOrders{}}
	err := adapter.Verify(context.Background(), []byte(`{}`), http.Header{})
	assert.True(t, errors.Is(err, paymentdomain.ErrWebhookUnsupported))
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, int64(500), parseAmount("5.00"))
	assert.Equal(t, int64(1999), parseAmount("19.99"))
	assert.Equal(t, int64(0), parseAmount("abc"))
}

func TestFactoryRequiresCredentials(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{Config: map[string]any{"client_id": "id"}})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}
