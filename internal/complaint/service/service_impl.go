package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/smallbiznis/grievance-portal/internal/businessmetrics"
	"github.com/smallbiznis/grievance-portal/internal/cache"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/internal/config"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	pkgdb "github.com/smallbiznis/grievance-portal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	contentMessage = "Complaint must be at least 10 characters long. We need details."
	emailMessage   = "Please provide a valid email for official correspondence."

	checkoutDescription = "Complaint Filing Fee"
)

// Reconcile outcomes reported to metrics.
const (
	outcomeAccepted       = "accepted"
	outcomeAlreadySettled = "already_settled"
	outcomeNotPaid        = "not_paid"
	outcomeMismatch       = "metadata_mismatch"
	outcomeLostRace       = "lost_race"
	outcomeGatewayError   = "gateway_error"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	Gateway     paymentdomain.Gateway
	Dispatcher  domain.Dispatcher
	StatsCache  cache.StatsCache    `optional:"true"`
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	gateway     paymentdomain.Gateway
	dispatcher  domain.Dispatcher
	statsCache  cache.StatsCache
	metrics     *obsmetrics.Metrics

	filingFee     int64
	currency      string
	publicBaseURL string
}

func New(p Params) domain.Service {
	fee := p.Cfg.Payment.FilingFee
	if fee <= 0 {
		fee = domain.DefaultFilingFee
	}
	currency := strings.ToLower(strings.TrimSpace(p.Cfg.Payment.Currency))
	if currency == "" {
		currency = "usd"
	}
	statsCache := p.StatsCache
	if statsCache == nil {
		statsCache = cache.NewStatsCache()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	return &Service{
		db:            p.DB,
		log:           p.Log.Named("complaint.service"),
		clock:         clk,
		repo:          p.Repo,
		paymentRepo:   p.PaymentRepo,
		gateway:       p.Gateway,
		dispatcher:    p.Dispatcher,
		statsCache:    statsCache,
		metrics:       p.Metrics,
		filingFee:     fee,
		currency:      currency,
		publicBaseURL: strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Complaint, error) {
	content := strings.TrimSpace(req.Content)
	if utf8.RuneCountInString(content) < domain.MinContentLength {
		return nil, &domain.ValidationError{Field: "content", Message: contentMessage}
	}
	email, ok := normalizeEmail(req.CustomerEmail)
	if !ok {
		return nil, &domain.ValidationError{Field: "customerEmail", Message: emailMessage}
	}

	now := s.clock.Now().UTC()
	complaint := &domain.Complaint{
		Content:       content,
		CustomerEmail: email,
		Status:        domain.StatusPendingPayment,
		FilingFee:     s.filingFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, complaint); err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}

	s.statsCache.Invalidate()
	s.metrics.RecordComplaintSubmitted(ctx)
	businessmetrics.RecordComplaintFiled()
	obslogger.WithComplaint(obslogger.WithContext(ctx, s.log), complaint.ID).Info("complaint submitted",
		zap.String("customer", obslogger.MaskEmail(email)),
	)

	return complaint, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Complaint, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	complaint, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if complaint == nil {
		return nil, domain.ErrNotFound
	}
	return complaint, nil
}

func (s *Service) CreateCheckoutSession(ctx context.Context, id int64) (*paymentdomain.CheckoutSession, error) {
	complaint, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard.EnsureCanCheckout(complaint.Status); err != nil {
		return nil, domain.ErrInvalidState
	}

	session, err := s.gateway.CreateSession(ctx, paymentdomain.CheckoutRequest{
		Amount:      complaint.FilingFee,
		Currency:    s.currency,
		Description: checkoutDescription,
		Metadata: paymentdomain.Metadata{
			ComplaintID:   complaint.ID,
			CustomerEmail: complaint.CustomerEmail,
		},
		SuccessURL: fmt.Sprintf("%s/status/%d?session_id=%s", s.publicBaseURL, complaint.ID, paymentdomain.SessionIDPlaceholder),
		CancelURL:  fmt.Sprintf("%s/payment/%d", s.publicBaseURL, complaint.ID),
	})
	if err != nil {
		return nil, &domain.GatewayError{Op: "create_session", Err: err}
	}

	s.metrics.RecordCheckoutSession(ctx, s.gateway.Provider())
	obslogger.WithComplaint(obslogger.WithContext(ctx, s.log), complaint.ID).Info("checkout session created",
		zap.String("provider", s.gateway.Provider()),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

// ReconcilePayment settles a complaint against the gateway's view of a
// checkout session. Any number of concurrent callers may race on the same
// complaint; only the one whose status write succeeds records a payment
// and dispatches generation.
func (s *Service) ReconcilePayment(ctx context.Context, req domain.ReconcileRequest) (*domain.ReconcileResult, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "sessionId", Message: "sessionId is required"}
	}
	source := req.Source
	if source == "" {
		source = domain.SourceVerify
	}

	complaint, err := s.Get(ctx, req.ComplaintID)
	if err != nil {
		return nil, err
	}
	log := obslogger.WithComplaint(obslogger.WithContext(ctx, s.log), complaint.ID).With(
		zap.String("source", source),
		zap.String("session_id", sessionID),
	)

	if complaint.Status != domain.StatusPendingPayment {
		s.metrics.RecordReconciliation(ctx, source, outcomeAlreadySettled)
		return &domain.ReconcileResult{Verified: true, Status: string(complaint.Status)}, nil
	}

	session, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		s.metrics.RecordReconciliation(ctx, source, outcomeGatewayError)
		return nil, &domain.GatewayError{Op: "get_session", Err: err}
	}
	if !session.Paid {
		s.metrics.RecordReconciliation(ctx, source, outcomeNotPaid)
		return &domain.ReconcileResult{Verified: false, Status: session.Status}, nil
	}
	if session.Metadata.ComplaintID != complaint.ID {
		s.metrics.RecordReconciliation(ctx, source, outcomeMismatch)
		log.Warn("checkout session belongs to another complaint",
			zap.Int64("session_complaint_id", session.Metadata.ComplaintID),
		)
		return &domain.ReconcileResult{Verified: false, Status: domain.StatusMetadataMismatch}, nil
	}

	won, err := s.settle(ctx, complaint, session)
	if err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("settle payment: %w", err)
		}
		log.Info("payment already recorded by a concurrent reconcile",
			zap.String("constraint", pkgdb.ViolatedConstraint(err)),
		)
	}
	if !won {
		s.metrics.RecordReconciliation(ctx, source, outcomeLostRace)
		current, err := s.Get(ctx, complaint.ID)
		if err != nil {
			return nil, err
		}
		return &domain.ReconcileResult{Verified: true, Status: string(current.Status)}, nil
	}

	s.metrics.RecordReconciliation(ctx, source, outcomeAccepted)
	obsmetrics.Jobs().IncStatusTransition(string(domain.StatusPendingPayment), string(domain.StatusReceived))
	businessmetrics.RecordPaymentConfirmed(s.gateway.Provider(), paymentAmount(session, complaint))
	log.Info("payment confirmed")

	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), complaint.ID); err != nil {
		// the recovery sweeper picks the complaint up once it goes stale
		log.Error("dispatch generation failed", zap.Error(err))
	}

	return &domain.ReconcileResult{Verified: true, Status: string(domain.StatusReceived)}, nil
}

// settle advances the complaint and records the payment in one transaction.
func (s *Service) settle(ctx context.Context, complaint *domain.Complaint, session *paymentdomain.SessionStatus) (bool, error) {
	now := s.clock.Now().UTC()
	won := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.TransitionStatus(ctx, tx, complaint.ID, domain.StatusPendingPayment, domain.StatusReceived, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		var transactionID *string
		if ref := strings.TrimSpace(session.TransactionID); ref != "" {
			transactionID = &ref
		}
		if err := s.paymentRepo.InsertPayment(ctx, tx, &paymentdomain.Payment{
			ComplaintID:   complaint.ID,
			Amount:        paymentAmount(session, complaint),
			Status:        paymentdomain.PaymentSucceeded,
			TransactionID: transactionID,
			Provider:      s.gateway.Provider(),
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func paymentAmount(session *paymentdomain.SessionStatus, complaint *domain.Complaint) int64 {
	if session != nil && session.AmountTotal > 0 {
		return session.AmountTotal
	}
	return complaint.FilingFee
}

func normalizeEmail(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || addr.Name != "" {
		return "", false
	}
	at := strings.LastIndexByte(addr.Address, '@')
	if at <= 0 {
		return "", false
	}
	domainPart := addr.Address[at+1:]
	if !strings.Contains(domainPart, ".") || strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") {
		return "", false
	}
	return addr.Address, true
}
