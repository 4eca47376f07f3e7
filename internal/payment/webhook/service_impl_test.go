package webhook

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint/complainttest"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubGateway struct {
	verifyErr error
	event     *paymentdomain.WebhookEvent
	parseErr  error
}

func (g *stubGateway) Provider() string { return "stripe" }

func (g *stubGateway) CreateSession(context.Context, paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) GetSession(context.Context, string) (*paymentdomain.SessionStatus, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) Verify(context.Context, []byte, http.Header) error { return g.verifyErr }

func (g *stubGateway) Parse(context.Context, []byte) (*paymentdomain.WebhookEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	copied := *g.event
	return &copied, nil
}

type countingComplaints struct {
	complaintdomain.Service

	mu    sync.Mutex
	calls []complaintdomain.ReconcileRequest
	err   error
}

func (c *countingComplaints) ReconcilePayment(_ context.Context, req complaintdomain.ReconcileRequest) (*complaintdomain.ReconcileResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	return &complaintdomain.ReconcileResult{Verified: true, Status: string(complaintdomain.StatusReceived)}, nil
}

func newTestService(t *testing.T, gateway *stubGateway, complaints *countingComplaints) (paymentdomain.WebhookService, *gorm.DB) {
	t.Helper()

	db := complainttest.OpenDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		GenID:      node,
		Gateway:    gateway,
		Repo:       repository.Provide(),
		Complaints: complaints,
	})
	return svc, db
}

func completedEvent() *paymentdomain.WebhookEvent {
	return &paymentdomain.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		Type:            paymentdomain.EventTypeCheckoutCompleted,
		SessionID:       "cs_1",
		ComplaintID:     12,
		Amount:          500,
	}
}

const payload = `{"id":"evt_1","type":"checkout.session.completed"}`

func TestIngestDedupesRedeliveredEvent(t *testing.T) {
	complaints := &countingComplaints{}
	svc, db := newTestService(t, &stubGateway{event: completedEvent()}, complaints)

	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), http.Header{}))
	err := svc.Ingest(context.Background(), "Stripe", []byte(payload), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)

	require.Len(t, complaints.calls, 1)
	assert.Equal(t, complaintdomain.ReconcileRequest{
		SessionID:   "cs_1",
		ComplaintID: 12,
		Source:      complaintdomain.SourceWebhook,
	}, complaints.calls[0])

	assert.EqualValues(t, 1, complainttest.CountRows(t, db, "payment_events", "processed_at IS NOT NULL"))
}

func TestIngestRetriesUnprocessedEvent(t *testing.T) {
	complaints := &countingComplaints{err: &complaintdomain.GatewayError{Op: "get_session", Err: errors.New("timeout")}}
	svc, db := newTestService(t, &stubGateway{event: completedEvent()}, complaints)

	err := svc.Ingest(context.Background(), "stripe", []byte(payload), http.Header{})
	require.Error(t, err)
	assert.EqualValues(t, 1, complainttest.CountRows(t, db, "payment_events", "processed_at IS NULL"))

	complaints.err = nil
	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), http.Header{}))
	assert.Len(t, complaints.calls, 2)
	assert.EqualValues(t, 1, complainttest.CountRows(t, db, "payment_events", "processed_at IS NOT NULL"))
}

func TestIngestRejectsBadSignature(t *testing.T) {
	complaints := &countingComplaints{}
	svc, db := newTestService(t, &stubGateway{verifyErr: paymentdomain.ErrInvalidSignature, event: completedEvent()}, complaints)

	err := svc.Ingest(context.Background(), "stripe", []byte(payload), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	assert.Empty(t, complaints.calls)
	assert.EqualValues(t, 0, complainttest.CountRows(t, db, "payment_events", ""))
}

func TestIngestUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, &stubGateway{event: completedEvent()}, &countingComplaints{})

	assert.ErrorIs(t, svc.Ingest(context.Background(), "paypal", []byte(payload), nil), paymentdomain.ErrProviderNotFound)
	assert.ErrorIs(t, svc.Ingest(context.Background(), " ", []byte(payload), nil), paymentdomain.ErrInvalidProvider)
	assert.ErrorIs(t, svc.Ingest(context.Background(), "stripe", []byte("{"), nil), paymentdomain.ErrInvalidPayload)
}

func TestIngestIgnoredAndExpiredEvents(t *testing.T) {
	complaints := &countingComplaints{}
	svc, db := newTestService(t, &stubGateway{parseErr: paymentdomain.ErrEventIgnored}, complaints)
	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), nil))
	assert.EqualValues(t, 0, complainttest.CountRows(t, db, "payment_events", ""))

	expired := completedEvent()
	expired.ProviderEventID = "evt_2"
	expired.Type = paymentdomain.EventTypeCheckoutExpired
	svc, db = newTestService(t, &stubGateway{event: expired}, complaints)
	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), nil))
	assert.Empty(t, complaints.calls)
	assert.EqualValues(t, 1, complainttest.CountRows(t, db, "payment_events", "event_type = ?", paymentdomain.EventTypeCheckoutExpired))
}

func TestIngestAcknowledgesEventWithoutComplaint(t *testing.T) {
	complaints := &countingComplaints{}
	event := completedEvent()
	event.ComplaintID = 0
	svc, db := newTestService(t, &stubGateway{event: event}, complaints)

	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), nil))
	assert.Empty(t, complaints.calls)
	assert.EqualValues(t, 0, complainttest.CountRows(t, db, "payment_events", ""))
}

func TestIngestUnknownComplaintIsAcknowledged(t *testing.T) {
	complaints := &countingComplaints{err: complaintdomain.ErrNotFound}
	svc, db := newTestService(t, &stubGateway{event: completedEvent()}, complaints)

	require.NoError(t, svc.Ingest(context.Background(), "stripe", []byte(payload), nil))
	assert.EqualValues(t, 1, complainttest.CountRows(t, db, "payment_events", "processed_at IS NOT NULL"))
}
