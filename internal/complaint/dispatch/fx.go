package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("complaint.dispatch",
	fx.Provide(NewInline),
	fx.Provide(NewDispatcher),
	fx.Invoke(registerDrain),
)

// ConsumerModule runs the SQS generation consumer. Only the worker app
// includes it.
var ConsumerModule = fx.Module("complaint.dispatch.consumer",
	fx.Provide(newConsumer),
	fx.Invoke(runConsumer),
)

type Params struct {
	fx.In

	Cfg    config.Config
	AWS    aws.Config
	Inline *Inline
	Log    *zap.Logger
}

func NewDispatcher(p Params) (domain.Dispatcher, error) {
	switch p.Cfg.Dispatch.Mode {
	case "", config.DispatchInline:
		return p.Inline, nil
	case config.DispatchSQS:
		return NewQueue(sqs.NewFromConfig(p.AWS), p.Cfg.Dispatch.QueueURL, p.Inline, p.Log)
	default:
		return nil, fmt.Errorf("unknown generation dispatch mode %q", p.Cfg.Dispatch.Mode)
	}
}

func registerDrain(lc fx.Lifecycle, inline *Inline) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				inline.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

type consumerParams struct {
	fx.In

	Cfg      config.Config
	AWS      aws.Config
	Resolver domain.Resolver
	Log      *zap.Logger
}

func newConsumer(p consumerParams) (*Consumer, error) {
	return NewConsumer(sqs.NewFromConfig(p.AWS), p.Cfg.Dispatch.QueueURL, p.Resolver, p.Log)
}

func runConsumer(lc fx.Lifecycle, consumer *Consumer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = consumer.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
