package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	Gateway    paymentdomain.Gateway
	Repo       paymentdomain.Repository
	Complaints complaintdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	gateway    paymentdomain.Gateway
	repo       paymentdomain.Repository
	complaints complaintdomain.Service
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		clock:      p.Clock,
		genID:      p.GenID,
		gateway:    p.Gateway,
		repo:       p.Repo,
		complaints: p.Complaints,
		metrics:    p.Metrics,
	}
}

// Ingest verifies, records and applies a gateway notification. A
// redelivered event that was already applied returns
// ErrEventAlreadyProcessed; callers acknowledge it like a success.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.gateway == nil || provider != s.gateway.Provider() {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	if err := s.gateway.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := s.gateway.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	if err := validateEvent(event); err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidComplaint) {
			// not one of ours; a rejection would only make the gateway retry
			s.log.Info("payment event without complaint reference ignored",
				zap.String("provider", provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
		return err
	}

	now := s.clock.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}
	if event.ComplaintID > 0 {
		complaintID := event.ComplaintID
		received.ComplaintID = &complaintID
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.apply(ctx, provider, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}
	if inserted {
		s.metrics.RecordPaymentEvent(ctx, provider, event.Type)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, provider string, event *paymentdomain.WebhookEvent) error {
	log := s.log.With(
		zap.String("provider", provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
		zap.Int64("complaint_id", event.ComplaintID),
	)

	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		result, err := s.complaints.ReconcilePayment(ctx, complaintdomain.ReconcileRequest{
			SessionID:   event.SessionID,
			ComplaintID: event.ComplaintID,
			Source:      complaintdomain.SourceWebhook,
		})
		if err != nil {
			var verr *complaintdomain.ValidationError
			if errors.Is(err, complaintdomain.ErrNotFound) || errors.As(err, &verr) {
				// nothing a redelivery could fix
				log.Warn("webhook references unusable complaint", zap.Error(err))
				return nil
			}
			return err
		}
		if !result.Verified {
			log.Warn("webhook session not verified", zap.String("status", result.Status))
		}
	case paymentdomain.EventTypeCheckoutExpired:
		log.Info("checkout session expired")
	default:
		log.Debug("payment event ignored")
	}
	return nil
}

func validateEvent(event *paymentdomain.WebhookEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.ProviderEventID) == "" || strings.TrimSpace(event.Type) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.Type == paymentdomain.EventTypeCheckoutCompleted {
		if strings.TrimSpace(event.SessionID) == "" || event.ComplaintID <= 0 {
			return paymentdomain.ErrInvalidComplaint
		}
	}
	return nil
}
