package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	"go.uber.org/zap"
)

// Inline resolves complaints on a goroutine inside the current process.
type Inline struct {
	resolver domain.Resolver
	log      *zap.Logger
	wg       sync.WaitGroup
}

func NewInline(resolver domain.Resolver, log *zap.Logger) *Inline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inline{resolver: resolver, log: log.Named("dispatch.inline")}
}

func (d *Inline) Dispatch(ctx context.Context, complaintID int64) error {
	if complaintID <= 0 {
		return domain.ErrInvalidID
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				obslogger.WithComplaint(d.log, complaintID).Error("resolver panicked",
					zap.String("panic", fmt.Sprint(rec)),
				)
			}
		}()
		if err := d.resolver.Resolve(ctx, complaintID); err != nil {
			obslogger.WithComplaint(d.log, complaintID).Warn("resolve failed, left for recovery", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every dispatched resolution has returned.
func (d *Inline) Wait() {
	d.wg.Wait()
}
