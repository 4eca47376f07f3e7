package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint/complainttest"
	"github.com/smallbiznis/grievance-portal/internal/complaint/dispatch"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/internal/complaint/repository"
	"github.com/smallbiznis/grievance-portal/internal/config"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/grievance-portal/internal/payment/repository"
	responderdomain "github.com/smallbiznis/grievance-portal/internal/responder/domain"
	"github.com/smallbiznis/grievance-portal/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*paymentdomain.SessionStatus
	created   []paymentdomain.CheckoutRequest
	getErr    error
	getCalls  int
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*paymentdomain.SessionStatus{}}
}

func (g *fakeGateway) Provider() string { return "fake" }

func (g *fakeGateway) CreateSession(_ context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	return &paymentdomain.CheckoutSession{ID: "cs_created", URL: "https://pay.example/cs_created"}, nil
}

func (g *fakeGateway) GetSession(_ context.Context, sessionID string) (*paymentdomain.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	session, ok := g.sessions[sessionID]
	if !ok {
		return nil, paymentdomain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (g *fakeGateway) Verify(context.Context, []byte, http.Header) error {
	return paymentdomain.ErrWebhookUnsupported
}

func (g *fakeGateway) Parse(context.Context, []byte) (*paymentdomain.WebhookEvent, error) {
	return nil, paymentdomain.ErrWebhookUnsupported
}

func (g *fakeGateway) addPaid(sessionID string, complaintID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID] = &paymentdomain.SessionStatus{
		SessionID:     sessionID,
		Paid:          true,
		Status:        "complete",
		Metadata:      paymentdomain.Metadata{ComplaintID: complaintID},
		AmountTotal:   500,
		TransactionID: "pi_" + sessionID,
	}
}

type fakeGenerator struct {
	output string
	err    error
	block  bool
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Complete(ctx context.Context, _ responderdomain.Request) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.output, g.err
}

type harness struct {
	db       *gorm.DB
	svc      domain.Service
	gateway  *fakeGateway
	inline   *dispatch.Inline
	resolver *Resolver
	clock    *clock.FakeClock
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()

	db := complainttest.OpenDB(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	gateway := newFakeGateway()

	tuning := config.DefaultResponderTuning()
	tuning.Timeout = 200 * time.Millisecond

	resolver := NewResolver(ResolverParams{
		DB:        db,
		Log:       log,
		Clock:     clk,
		Repo:      repo,
		Generator: gen,
		Tuning:    config.NewStaticResponderConfigHolder(tuning),
	})
	inline := dispatch.NewInline(resolver, log)

	svc := New(Params{
		DB:          db,
		Log:         log,
		Cfg:         config.Config{PublicBaseURL: "https://portal.example/"},
		Clock:       clk,
		Repo:        repo,
		PaymentRepo: paymentrepository.Provide(),
		Gateway:     gateway,
		Dispatcher:  inline,
	})

	return &harness{db: db, svc: svc, gateway: gateway, inline: inline, resolver: resolver, clock: clk}
}

func (h *harness) submit(t *testing.T) *domain.Complaint {
	t.Helper()
	complaint, err := h.svc.Submit(context.Background(), domain.SubmitRequest{
		Content:       "My neighbour's rooster crows at 3am every single day.",
		CustomerEmail: "citizen@example.com",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return complaint
}

const goodLetter = `{"responseText":"Dear Stakeholder, your matter is under procedural review.","complexityScore":7}`

func TestSubmitCreatesPendingComplaint(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})

	complaint := h.submit(t)
	if complaint.ID != 1 {
		t.Fatalf("expected first id 1, got %d", complaint.ID)
	}
	if complaint.Status != domain.StatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", complaint.Status)
	}
	if complaint.FilingFee != 500 {
		t.Fatalf("expected fee 500, got %d", complaint.FilingFee)
	}
	if complaint.AIResponse != nil || complaint.ComplexityScore != nil {
		t.Fatalf("expected empty response fields")
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})

	cases := []struct {
		name  string
		req   domain.SubmitRequest
		field string
	}{
		{"short content", domain.SubmitRequest{Content: "too short", CustomerEmail: "a@b.co"}, "content"},
		{"whitespace padded", domain.SubmitRequest{Content: "   short    ", CustomerEmail: "a@b.co"}, "content"},
		{"bad email", domain.SubmitRequest{Content: "long enough content", CustomerEmail: "not-an-email"}, "customerEmail"},
		{"no tld", domain.SubmitRequest{Content: "long enough content", CustomerEmail: "a@localhost"}, "customerEmail"},
		{"display name", domain.SubmitRequest{Content: "long enough content", CustomerEmail: "Bob <bob@example.com>"}, "customerEmail"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Submit(context.Background(), tc.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}

	if n := complainttest.CountRows(t, h.db, "complaints", ""); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestGetUnknownComplaint(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})

	if _, err := h.svc.Get(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)

	for i := 0; i < 2; i++ {
		session, err := h.svc.CreateCheckoutSession(context.Background(), complaint.ID)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		if session.URL == "" {
			t.Fatalf("expected redirect url")
		}
	}

	if len(h.gateway.created) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(h.gateway.created))
	}
	req := h.gateway.created[0]
	if req.Amount != 500 || req.Metadata.ComplaintID != complaint.ID {
		t.Fatalf("unexpected checkout request %+v", req)
	}
	if req.SuccessURL != "https://portal.example/status/1?session_id={CHECKOUT_SESSION_ID}" {
		t.Fatalf("unexpected success url %s", req.SuccessURL)
	}
	if req.CancelURL != "https://portal.example/payment/1" {
		t.Fatalf("unexpected cancel url %s", req.CancelURL)
	}
	if n := complainttest.CountRows(t, h.db, "payments", ""); n != 0 {
		t.Fatalf("checkout must not record payments, got %d", n)
	}
}

func TestCreateCheckoutSessionRejectsPaidComplaint(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.addPaid("cs_1", complaint.ID)

	if _, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs_1", ComplaintID: complaint.ID}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	h.inline.Wait()

	if _, err := h.svc.CreateCheckoutSession(context.Background(), complaint.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCreateCheckoutSessionGatewayFailure(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.createErr = errors.New("stripe down")

	_, err := h.svc.CreateCheckoutSession(context.Background(), complaint.ID)
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestReconcileResolvesComplaint(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.addPaid("cs_1", complaint.ID)

	result, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs_1", ComplaintID: complaint.ID})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Verified || result.Status != string(domain.StatusReceived) {
		t.Fatalf("unexpected result %+v", result)
	}
	h.inline.Wait()

	got, err := h.svc.Get(context.Background(), complaint.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", got.Status)
	}
	if got.AIResponse == nil || !strings.Contains(*got.AIResponse, "procedural review") {
		t.Fatalf("unexpected response %v", got.AIResponse)
	}
	if got.ComplexityScore == nil || *got.ComplexityScore != 7 {
		t.Fatalf("unexpected score %v", got.ComplexityScore)
	}
	if n := complainttest.CountRows(t, h.db, "payments", "complaint_id = ? AND status = ?", complaint.ID, "succeeded"); n != 1 {
		t.Fatalf("expected one payment, got %d", n)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.addPaid("cs_1", complaint.ID)

	req := domain.ReconcileRequest{SessionID: "cs_1", ComplaintID: complaint.ID}
	if _, err := h.svc.ReconcilePayment(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	h.inline.Wait()
	callsAfterFirst := h.gateway.getCalls

	result, err := h.svc.ReconcilePayment(context.Background(), req)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !result.Verified || result.Status != string(domain.StatusResolved) {
		t.Fatalf("unexpected result %+v", result)
	}
	if h.gateway.getCalls != callsAfterFirst {
		t.Fatalf("settled complaint must not query the gateway")
	}
	if n := complainttest.CountRows(t, h.db, "payments", ""); n != 1 {
		t.Fatalf("expected one payment, got %d", n)
	}
}

func TestReconcileConcurrentCallersRecordOnePayment(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.addPaid("cs_1", complaint.ID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := domain.SourceVerify
			if i%2 == 0 {
				source = domain.SourceWebhook
			}
			result, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{
				SessionID:   "cs_1",
				ComplaintID: complaint.ID,
				Source:      source,
			})
			if err != nil {
				errs <- err
				return
			}
			if !result.Verified {
				errs <- errors.New("expected verified result")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("reconcile: %v", err)
	}
	h.inline.Wait()

	if n := complainttest.CountRows(t, h.db, "payments", "complaint_id = ?", complaint.ID); n != 1 {
		t.Fatalf("expected exactly one payment, got %d", n)
	}
	got, _ := h.svc.Get(context.Background(), complaint.ID)
	if got.Status != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", got.Status)
	}
}

func TestReconcileRejectsForeignSession(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	first := h.submit(t)
	second := h.submit(t)
	h.gateway.addPaid("cs_first", first.ID)

	result, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs_first", ComplaintID: second.ID})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Verified || result.Status != domain.StatusMetadataMismatch {
		t.Fatalf("unexpected result %+v", result)
	}

	got, _ := h.svc.Get(context.Background(), second.ID)
	if got.Status != domain.StatusPendingPayment {
		t.Fatalf("expected pending_payment, got %s", got.Status)
	}
	if n := complainttest.CountRows(t, h.db, "payments", ""); n != 0 {
		t.Fatalf("expected no payments, got %d", n)
	}
}

func TestReconcileUnpaidSession(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)
	h.gateway.sessions["cs_open"] = &paymentdomain.SessionStatus{
		SessionID: "cs_open",
		Status:    "open",
		Metadata:  paymentdomain.Metadata{ComplaintID: complaint.ID},
	}

	result, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs_open", ComplaintID: complaint.ID})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Verified || result.Status != "open" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestReconcileErrors(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)

	var verr *domain.ValidationError
	if _, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{ComplaintID: complaint.ID}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs", ComplaintID: 404}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	h.gateway.getErr = errors.New("timeout")
	_, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs", ComplaintID: complaint.ID})
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestResolverFallsBack(t *testing.T) {
	cases := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generator error", &fakeGenerator{err: errors.New("model overloaded")}},
		{"garbage output", &fakeGenerator{output: "I am not JSON at all"}},
		{"missing score", &fakeGenerator{output: `{"responseText":"hello"}`}},
		{"timeout", &fakeGenerator{block: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.gen)
			complaint := h.submit(t)
			h.gateway.addPaid("cs_1", complaint.ID)

			if _, err := h.svc.ReconcilePayment(context.Background(), domain.ReconcileRequest{SessionID: "cs_1", ComplaintID: complaint.ID}); err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			h.inline.Wait()

			got, _ := h.svc.Get(context.Background(), complaint.ID)
			if got.Status != domain.StatusResolved {
				t.Fatalf("expected resolved, got %s", got.Status)
			}
			if got.AIResponse == nil || *got.AIResponse != domain.FallbackResponseText {
				t.Fatalf("expected fallback text, got %v", got.AIResponse)
			}
			if got.ComplexityScore == nil || *got.ComplexityScore != domain.FallbackComplexityScore {
				t.Fatalf("expected fallback score, got %v", got.ComplexityScore)
			}
			if !guard.EnsureResponsePair(got) {
				t.Fatalf("letter and score must be stored together, got %+v", got)
			}
		})
	}
}

func TestResolverSkipsUnpaidComplaint(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	complaint := h.submit(t)

	if err := h.resolver.Resolve(context.Background(), complaint.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, _ := h.svc.Get(context.Background(), complaint.ID)
	if got.Status != domain.StatusPendingPayment || !guard.EnsureResponsePair(got) || got.AIResponse != nil {
		t.Fatalf("unpaid complaint must stay untouched, got %+v", got)
	}
}

func TestResolverLeavesComplaintReceivedWhenCancelled(t *testing.T) {
	h := newHarness(t, &fakeGenerator{block: true})
	complaint := h.submit(t)
	markReceived(t, h, complaint.ID)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := h.resolver.Resolve(ctx, complaint.ID)
	if !errors.Is(err, domain.ErrResolveInterrupted) {
		t.Fatalf("expected interrupted resolve, got %v", err)
	}

	got, _ := h.svc.Get(context.Background(), complaint.ID)
	if got.Status != domain.StatusReceived || got.AIResponse != nil || got.ComplexityScore != nil {
		t.Fatalf("interrupted complaint must stay received without a letter, got %+v", got)
	}
}

func markReceived(t *testing.T, h *harness, id int64) {
	t.Helper()
	if err := h.db.Exec(`UPDATE complaints SET status = ? WHERE id = ?`, domain.StatusReceived, id).Error; err != nil {
		t.Fatalf("mark received: %v", err)
	}
}

func TestListAndPagination(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})
	for i := 0; i < 5; i++ {
		h.submit(t)
		h.clock.Advance(time.Minute)
	}

	all, err := h.svc.List(context.Background(), domain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all.Complaints) != 5 || all.Complaints[0].ID != 5 {
		t.Fatalf("expected newest first, got %d rows", len(all.Complaints))
	}

	page, err := h.svc.List(context.Background(), domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Complaints) != 2 || !page.PageInfo.HasMore {
		t.Fatalf("unexpected first page %+v", page.PageInfo)
	}

	seen := map[int64]bool{}
	for _, c := range page.Complaints {
		seen[c.ID] = true
	}
	token := page.PageInfo.NextPageToken
	for token != "" {
		next, err := h.svc.List(context.Background(), domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: token}})
		if err != nil {
			t.Fatalf("list next: %v", err)
		}
		for _, c := range next.Complaints {
			if seen[c.ID] {
				t.Fatalf("complaint %d returned twice", c.ID)
			}
			seen[c.ID] = true
		}
		token = next.PageInfo.NextPageToken
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 complaints across pages, got %d", len(seen))
	}
}

func TestDailyCounts(t *testing.T) {
	h := newHarness(t, &fakeGenerator{output: goodLetter})

	h.submit(t)
	h.submit(t)
	h.clock.Advance(-48 * time.Hour)
	h.submit(t)
	h.clock.Advance(-40 * 24 * time.Hour)
	h.submit(t)
	h.clock.Set(time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC))

	counts, err := h.svc.DailyCounts(context.Background())
	if err != nil {
		t.Fatalf("daily counts: %v", err)
	}
	if len(counts) != domain.StatsWindowDays {
		t.Fatalf("expected %d buckets, got %d", domain.StatsWindowDays, len(counts))
	}
	last := counts[len(counts)-1]
	if last.Date != "2026-03-15" || last.Count != 2 {
		t.Fatalf("unexpected today bucket %+v", last)
	}
	if counts[len(counts)-3].Date != "2026-03-13" || counts[len(counts)-3].Count != 1 {
		t.Fatalf("unexpected bucket %+v", counts[len(counts)-3])
	}
	if counts[0].Date != "2026-02-14" {
		t.Fatalf("unexpected first bucket %s", counts[0].Date)
	}

	var total int64
	for i, c := range counts {
		total += c.Count
		if i > 0 && c.Date <= counts[i-1].Date {
			t.Fatalf("buckets out of order at %d", i)
		}
	}
	if total != 3 {
		t.Fatalf("complaints outside the window must be excluded, total %d", total)
	}
}
