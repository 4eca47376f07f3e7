package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	obscontext "github.com/smallbiznis/grievance-portal/internal/observability/context"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	"github.com/smallbiznis/grievance-portal/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKey = "grievance:recovery:received"

var ErrInvalidConfig = errors.New("invalid_recovery_config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	Dispatcher domain.Dispatcher
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

// Sweeper re-dispatches complaints that were paid but never resolved,
// typically because the process died while generating.
type Sweeper struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	repo       domain.Repository
	dispatcher domain.Dispatcher
	locker     *ratelimit.Locker
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.Dispatcher == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:         p.DB,
		log:        p.Log.Named("recovery").With(zap.String("component", "recovery")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		repo:       p.Repo,
		dispatcher: p.Dispatcher,
		locker:     p.Locker,
	}, nil
}

// RunOnce sweeps one batch. It returns the number of complaints dispatched.
func (s *Sweeper) RunOnce(parent context.Context) (int, error) {
	start := time.Now()
	jobs := obsmetrics.Jobs()
	jobs.IncJobRun(obsmetrics.JobRecoverReceived)

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()
	ctx = obscontext.WithActor(ctx, "system", "recovery")

	dispatched := 0
	ran, err := s.locker.WithLock(ctx, lockKey, s.cfg.LockTTL, func(ctx context.Context) error {
		var sweepErr error
		dispatched, sweepErr = s.sweep(ctx)
		return sweepErr
	})
	if !ran {
		if err != nil {
			jobs.IncJobError(obsmetrics.JobRecoverReceived, err)
			return 0, fmt.Errorf("acquire recovery lock: %w", err)
		}
		return 0, nil
	}

	jobs.ObserveJobDuration(obsmetrics.JobRecoverReceived, time.Since(start))
	jobs.AddBatchProcessed(obsmetrics.JobRecoverReceived, "complaints", dispatched)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			jobs.IncJobTimeout(obsmetrics.JobRecoverReceived)
		}
		jobs.IncJobError(obsmetrics.JobRecoverReceived, err)
		return dispatched, err
	}

	if dispatched > 0 {
		obslogger.WithContext(ctx, s.log).Info("recovery.sweep.finish",
			zap.Int("dispatched", dispatched),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return dispatched, nil
}

// sweep claims each stale complaint before dispatching it. The claim moves
// updated_at to now, so a complaint is re-dispatched at most once per
// threshold even while an earlier job is still queued.
func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	cutoff := now.Add(-s.cfg.Threshold)
	stale, err := s.repo.ListStale(ctx, s.db, domain.StatusReceived, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var jobErr error
	dispatched := 0
	for _, complaint := range stale {
		log := obslogger.WithComplaint(obslogger.WithContext(ctx, s.log), complaint.ID)
		claimed, err := s.repo.ClaimStale(ctx, s.db, complaint.ID, domain.StatusReceived, cutoff, now)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			log.Warn("claim failed", zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), complaint.ID); err != nil {
			jobErr = errors.Join(jobErr, err)
			log.Warn("re-dispatch failed", zap.Error(err))
			continue
		}
		log.Info("stranded complaint re-dispatched", zap.Time("updated_at", complaint.UpdatedAt))
		dispatched++
	}
	return dispatched, jobErr
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			obsmetrics.Jobs().ObserveRunLoopLag(lag)
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("recovery sweep failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
