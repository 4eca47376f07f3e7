package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/businessmetrics"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/internal/config"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	responderdomain "github.com/smallbiznis/grievance-portal/internal/responder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	generationOutcomeGenerated   = "generated"
	generationOutcomeFallback    = "fallback"
	generationOutcomeSkipped     = "skipped"
	generationOutcomeInterrupted = "interrupted"
)

type ResolverParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	Generator responderdomain.Generator
	Tuning    *config.ResponderConfigHolder
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// Resolver writes the response letter for received complaints.
type Resolver struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	generator responderdomain.Generator
	tuning    *config.ResponderConfigHolder
	metrics   *obsmetrics.Metrics
}

func NewResolver(p ResolverParams) *Resolver {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Resolver{
		db:        p.DB,
		log:       p.Log.Named("complaint.resolver"),
		clock:     clk,
		repo:      p.Repo,
		generator: p.Generator,
		tuning:    p.Tuning,
		metrics:   p.Metrics,
	}
}

// Resolve generates and stores the letter for a received complaint. A
// generator failure stores the fallback letter instead, so the complaint
// never stays received because of a bad completion. Cancellation of ctx
// is not a generator failure: nothing is written and the sweeper or queue
// redelivery retries later.
func (r *Resolver) Resolve(ctx context.Context, complaintID int64) error {
	jobs := obsmetrics.Jobs()
	jobs.IncJobRun(obsmetrics.JobGenerateResponse)
	started := time.Now()
	defer func() {
		jobs.ObserveJobDuration(obsmetrics.JobGenerateResponse, time.Since(started))
	}()

	log := obslogger.WithComplaint(obslogger.WithContext(ctx, r.log), complaintID)

	complaint, err := r.repo.FindByID(ctx, r.db, complaintID)
	if err != nil {
		jobs.IncJobError(obsmetrics.JobGenerateResponse, err)
		log.Error("load complaint failed", zap.Error(err))
		return err
	}
	if complaint == nil {
		log.Warn("complaint not found")
		return nil
	}
	if err := guard.EnsureCanResolve(complaint.Status); err != nil {
		r.metrics.RecordGeneration(ctx, generationOutcomeSkipped)
		log.Info("complaint not awaiting a response", zap.String("status", string(complaint.Status)))
		return nil
	}

	text, score, outcome := r.compose(ctx, log, complaint.Content)
	if outcome == generationOutcomeInterrupted {
		log.Warn("generation interrupted, complaint left received", zap.Error(ctx.Err()))
		return fmt.Errorf("%w: %w", domain.ErrResolveInterrupted, ctx.Err())
	}

	// The write must land even when the generation deadline already fired.
	writeCtx := context.WithoutCancel(ctx)
	won, err := r.repo.Resolve(writeCtx, r.db, complaint.ID, text, score, r.clock.Now().UTC())
	if err != nil {
		jobs.IncJobError(obsmetrics.JobGenerateResponse, err)
		log.Error("store response failed", zap.Error(err))
		return err
	}
	if !won {
		log.Info("complaint already resolved")
		return nil
	}

	r.metrics.RecordGeneration(ctx, outcome)
	businessmetrics.RecordLetterIssued(outcome)
	jobs.IncStatusTransition(string(domain.StatusReceived), string(domain.StatusResolved))
	log.Info("complaint resolved", zap.String("outcome", outcome), zap.Int("complexity_score", score))
	return nil
}

func (r *Resolver) compose(ctx context.Context, log *zap.Logger, content string) (string, int, string) {
	tuning := r.tuning.Get()

	genCtx, cancel := context.WithTimeout(ctx, tuning.Timeout)
	defer cancel()

	raw, err := r.generator.Complete(genCtx, responderdomain.Request{
		System:      responderdomain.SystemDirective,
		Prompt:      responderdomain.BuildPrompt(content),
		Model:       tuning.Model,
		MaxTokens:   tuning.MaxTokens,
		Temperature: tuning.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, generationOutcomeInterrupted
		}
		if errors.Is(err, context.DeadlineExceeded) {
			obsmetrics.Jobs().IncJobTimeout(obsmetrics.JobGenerateResponse)
		}
		businessmetrics.RecordEngineError("complete")
		log.Warn("response generation failed, using fallback",
			zap.String("generator", r.generator.Name()),
			zap.Error(err),
		)
		return domain.FallbackResponseText, domain.FallbackComplexityScore, generationOutcomeFallback
	}

	letter, err := responderdomain.ParseLetter(raw)
	if err != nil {
		businessmetrics.RecordEngineError("parse")
		log.Warn("response output unusable, using fallback",
			zap.String("generator", r.generator.Name()),
			zap.Int("raw_length", len(raw)),
			zap.Error(err),
		)
		return domain.FallbackResponseText, domain.FallbackComplexityScore, generationOutcomeFallback
	}

	return letter.ResponseText, letter.ComplexityScore, generationOutcomeGenerated
}
