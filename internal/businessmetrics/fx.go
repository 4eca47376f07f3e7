package businessmetrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("business.metrics",
	fx.Invoke(Register),
)

var registerOnce sync.Once

// Register installs the recorder and starts the push loop when an exporter
// is configured. Push failures are logged and never block requests.
func Register(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	pusher := NewPusher(cfg, log)
	if pusher == nil {
		return
	}

	registerOnce.Do(func() {
		registry := prometheus.NewRegistry()
		m := newMetrics(registry)
		setRecorder(&recorder{metrics: m})

		interval := cfg.Metrics.Interval
		if interval <= 0 {
			interval = time.Minute
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		pushOnce := func(ctx context.Context) {
			refreshGauges(ctx, m, db)
			if err := pusher.Push(ctx, registry); err != nil {
				log.Warn("business metrics push failed", zap.Error(err))
			}
		}

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ticker.C:
							pushOnce(ctx)
						case <-ctx.Done():
							return
						}
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				<-done
				pushOnce(stopCtx)
				return nil
			},
		})
	})
}

func refreshGauges(ctx context.Context, m *metrics, db *gorm.DB) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryBytes.Set(float64(mem.Sys))

	if db == nil {
		return
	}
	var open int64
	if err := db.WithContext(ctx).Table("complaints").Where("status <> ?", "resolved").Count(&open).Error; err != nil {
		return
	}
	m.openComplaints.Set(float64(open))
}
