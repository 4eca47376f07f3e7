package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	admindomain "github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/admin/session"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/config"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/internal/providers/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeComplaints struct {
	mu         sync.Mutex
	complaints map[int64]*complaintdomain.Complaint
	// sequence, when set, is served by Get one entry per call.
	sequence []*complaintdomain.Complaint

	submitErr    error
	checkoutErr  error
	reconcileReq complaintdomain.ReconcileRequest
}

func (f *fakeComplaints) Submit(ctx context.Context, req complaintdomain.SubmitRequest) (*complaintdomain.Complaint, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &complaintdomain.Complaint{
		ID:            1,
		Content:       req.Content,
		CustomerEmail: req.CustomerEmail,
		Status:        complaintdomain.StatusPendingPayment,
		FilingFee:     500,
	}, nil
}

func (f *fakeComplaints) Get(ctx context.Context, id int64) (*complaintdomain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sequence) > 0 {
		next := f.sequence[0]
		if len(f.sequence) > 1 {
			f.sequence = f.sequence[1:]
		}
		return next, nil
	}
	c, ok := f.complaints[id]
	if !ok {
		return nil, complaintdomain.ErrNotFound
	}
	return c, nil
}

func (f *fakeComplaints) CreateCheckoutSession(ctx context.Context, id int64) (*paymentdomain.CheckoutSession, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &paymentdomain.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
}

func (f *fakeComplaints) ReconcilePayment(ctx context.Context, req complaintdomain.ReconcileRequest) (*complaintdomain.ReconcileResult, error) {
	f.reconcileReq = req
	return &complaintdomain.ReconcileResult{Verified: true, Status: "received"}, nil
}

func (f *fakeComplaints) List(ctx context.Context, req complaintdomain.ListRequest) (*complaintdomain.ListResponse, error) {
	items := make([]*complaintdomain.Complaint, 0, len(f.complaints))
	for _, c := range f.complaints {
		items = append(items, c)
	}
	return &complaintdomain.ListResponse{Complaints: items}, nil
}

func (f *fakeComplaints) DailyCounts(ctx context.Context) ([]complaintdomain.DailyCount, error) {
	return []complaintdomain.DailyCount{{Date: "2026-03-15", Count: 1}}, nil
}

type fakeWebhooks struct {
	err error
}

func (f *fakeWebhooks) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	return f.err
}

type fakeAdmin struct {
	principal *admindomain.Principal
	denyAll   bool
}

func (f *fakeAdmin) Login(ctx context.Context, req admindomain.LoginRequest) (*admindomain.LoginResult, error) {
	if req.Password != "paperwork-forever" {
		return nil, admindomain.ErrInvalidCredentials
	}
	return &admindomain.LoginResult{
		Token:     "good-token",
		ExpiresAt: time.Now().Add(time.Hour),
		Admin:     &admindomain.AdminUser{Email: req.Email, Role: admindomain.RoleAdmin},
	}, nil
}

func (f *fakeAdmin) Authenticate(ctx context.Context, token string) (*admindomain.Principal, error) {
	if token != "good-token" {
		return nil, admindomain.ErrInvalidSession
	}
	return f.principal, nil
}

func (f *fakeAdmin) Authorize(ctx context.Context, principal *admindomain.Principal, object, action string) error {
	if f.denyAll {
		return admindomain.ErrForbidden
	}
	return nil
}

func (f *fakeAdmin) Bootstrap(ctx context.Context, email, password string) (*admindomain.AdminUser, error) {
	return nil, admindomain.ErrAdminExists
}

type testServer struct {
	server     *Server
	complaints *fakeComplaints
	webhooks   *fakeWebhooks
	admin      *fakeAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	response := "Your grievance has been forwarded."
	score := 6
	complaints := &fakeComplaints{complaints: map[int64]*complaintdomain.Complaint{
		1: {ID: 1, Content: "The bus was early.", CustomerEmail: "a@b.com", Status: complaintdomain.StatusPendingPayment, FilingFee: 500},
		2: {
			ID: 2, Content: "My neighbour's cat judges me.", CustomerEmail: "c@d.com",
			Status: complaintdomain.StatusResolved, FilingFee: 500,
			AIResponse: &response, ComplexityScore: &score,
			CreatedAt: time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 3, 15, 8, 1, 0, 0, time.UTC),
		},
	}}
	webhooks := &fakeWebhooks{}
	admin := &fakeAdmin{principal: &admindomain.Principal{AdminID: 9, Email: "clerk@example.com", Role: admindomain.RoleAdmin}}

	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{PublicBaseURL: "https://portal.example", Payment: config.PaymentConfig{Currency: "usd"}},
		Log:          zap.NewNop(),
		ComplaintSvc: complaints,
		WebhookSvc:   webhooks,
		AdminSvc:     admin,
		Cookies:      session.NewCookies(config.Config{}),
		Letters:      pdf.NewLetterProvider(),
	})
	srv.streamInterval = 10 * time.Millisecond

	return &testServer{server: srv, complaints: complaints, webhooks: webhooks, admin: admin}
}

func (ts *testServer) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestSubmitComplaint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/complaints", map[string]string{
		"content":       "My package never arrived and support ignored me.",
		"customerEmail": "a@b.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got complaintdomain.Complaint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got.ID)
	assert.Equal(t, complaintdomain.StatusPendingPayment, got.Status)
	assert.EqualValues(t, 500, got.FilingFee)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		kind     string
		hasField bool
	}{
		{"validation", &complaintdomain.ValidationError{Field: "content", Message: "too short"}, http.StatusBadRequest, "validation_error", true},
		{"not found", complaintdomain.ErrNotFound, http.StatusNotFound, "not_found", false},
		{"invalid state", complaintdomain.ErrInvalidState, http.StatusConflict, "invalid_state", false},
		{"gateway", &complaintdomain.GatewayError{Op: "create_session", Err: errors.New("boom")}, http.StatusBadGateway, "gateway_error", false},
		{"signature", paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_webhook", false},
		{"credentials", admindomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", false},
		{"forbidden", admindomain.ErrForbidden, http.StatusForbidden, "forbidden", false},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", false},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
			assert.Equal(t, tc.hasField, len(payload.Errors) > 0)
		})
	}
}

func TestSubmitComplaintValidationEnvelope(t *testing.T) {
	ts := newTestServer(t)
	ts.complaints.submitErr = &complaintdomain.ValidationError{Field: "content", Message: "Complaint must be at least 10 characters long. We need details."}

	rec := ts.do(http.MethodPost, "/api/complaints", map[string]string{"content": "short", "customerEmail": "a@b.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "content", payload.Errors[0].Field)

	rec = ts.do(http.MethodPost, "/api/complaints", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetComplaint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/complaints/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/complaints/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)

	rec = ts.do(http.MethodGet, "/api/complaints/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComplaintLetter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/complaints/2/letter.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = ts.do(http.MethodGet, "/api/complaints/1/letter.pdf", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckoutAndVerify(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/payments/checkout-session", map[string]int64{"complaintId": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessionId":"cs_test_1","url":"https://pay.example/cs_test_1"}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/payments/checkout-session", map[string]int64{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	ts.complaints.checkoutErr = &complaintdomain.GatewayError{Op: "create_session", Err: errors.New("timeout")}
	rec = ts.do(http.MethodPost, "/api/payments/checkout-session", map[string]int64{"complaintId": 1})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = ts.do(http.MethodPost, "/api/payments/verify-session", map[string]any{"sessionId": " cs_test_1 ", "complaintId": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"verified":true,"status":"received"}`, rec.Body.String())
	assert.Equal(t, "cs_test_1", ts.complaints.reconcileReq.SessionID)
	assert.Equal(t, complaintdomain.SourceVerify, ts.complaints.reconcileReq.Source)
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/payments/webhook/stripe", `{"id":"evt_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	ts.webhooks.err = paymentdomain.ErrEventAlreadyProcessed
	rec = ts.do(http.MethodPost, "/api/payments/webhook/stripe", `{"id":"evt_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ts.webhooks.err = paymentdomain.ErrInvalidSignature
	rec = ts.do(http.MethodPost, "/api/payments/webhook/stripe", `{"id":"evt_1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/admin/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isAdmin":false}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/admin/login", map[string]string{"email": "clerk@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/login", map[string]string{"email": "clerk@example.com", "password": "paperwork-forever"})
	require.Equal(t, http.StatusOK, rec.Code)

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.CookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	rec = ts.do(http.MethodGet, "/api/admin/check", nil, sessionCookie)
	assert.JSONEq(t, `{"isAdmin":true,"email":"clerk@example.com"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/admin/complaints", nil, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/stats/daily", nil, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2026-03-15","count":1}]`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/admin/complaints/export", nil, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "complaints-2026-03-15.xlsx")

	rec = ts.do(http.MethodPost, "/api/admin/logout", nil, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), session.CookieName+"=;")
}

func TestAdminRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/admin/complaints", "/api/admin/stats/daily", "/api/admin/complaints/export"} {
		rec := ts.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = ts.do(http.MethodGet, path, nil, &http.Cookie{Name: session.CookieName, Value: "forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	ts.admin.denyAll = true
	rec := ts.do(http.MethodGet, "/api/admin/complaints", nil, &http.Cookie{Name: session.CookieName, Value: "good-token"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestStreamComplaintUntilResolved(t *testing.T) {
	ts := newTestServer(t)

	response := "Filed under pending."
	score := 3
	ts.complaints.sequence = []*complaintdomain.Complaint{
		{ID: 7, Status: complaintdomain.StatusReceived},
		{ID: 7, Status: complaintdomain.StatusReceived},
		{ID: 7, Status: complaintdomain.StatusResolved, AIResponse: &response, ComplexityScore: &score},
	}

	httpSrv := httptest.NewServer(ts.server.Engine())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/complaints/7/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first statusUpdate
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, complaintdomain.StatusReceived, first.Status)

	var second statusUpdate
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, complaintdomain.StatusResolved, second.Status)
	require.NotNil(t, second.ComplexityScore)
	assert.Equal(t, 3, *second.ComplexityScore)

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestCheckOrigin(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "http://api.internal/api/complaints/1/stream", nil)
	assert.True(t, ts.server.checkOrigin(req))

	req.Header.Set("Origin", "https://portal.example")
	assert.True(t, ts.server.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, ts.server.checkOrigin(req))
}
