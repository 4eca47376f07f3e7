package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	"github.com/smallbiznis/grievance-portal/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	defaultMaxMessages = 10
	defaultWaitSeconds = 20
	defaultErrorDelay  = 5 * time.Second
)

// Consumer long-polls the generation queue and resolves each job.
type Consumer struct {
	client     QueueAPI
	queueURL   string
	resolver   domain.Resolver
	log        *zap.Logger
	errorDelay time.Duration
}

func NewConsumer(client QueueAPI, queueURL string, resolver domain.Resolver, log *zap.Logger) (*Consumer, error) {
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		resolver:   resolver,
		log:        log.Named("dispatch.consumer"),
		errorDelay: defaultErrorDelay,
	}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("generation consumer started", zap.String("queue_url", c.queueURL))
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Warn("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.errorDelay):
			}
		}
	}
}

// Poll receives one batch and handles every message in it. It returns the
// number of messages received.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.queueURL),
		MaxNumberOfMessages:   defaultMaxMessages,
		WaitTimeSeconds:       defaultWaitSeconds,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return 0, err
	}

	for _, message := range output.Messages {
		c.handle(ctx, message)
	}
	if n := len(output.Messages); n > 0 {
		obsmetrics.Jobs().AddBatchProcessed(obsmetrics.JobConsumeGeneration, "messages", n)
	}
	return len(output.Messages), nil
}

func (c *Consumer) handle(ctx context.Context, message sqstypes.Message) {
	jobs := obsmetrics.Jobs()
	jobs.IncJobRun(obsmetrics.JobConsumeGeneration)

	msgCtx := correlation.ExtractTrace(ctx, fromMessageAttributes(message.MessageAttributes))
	log := obslogger.WithContext(msgCtx, c.log).With(zap.String("message_id", aws.ToString(message.MessageId)))

	var job Job
	if err := json.Unmarshal([]byte(aws.ToString(message.Body)), &job); err != nil || job.ComplaintID <= 0 {
		// malformed jobs are dropped, redelivery would not fix them
		jobs.IncJobError(obsmetrics.JobConsumeGeneration, err)
		log.Error("discarding malformed generation job", zap.Error(err))
		c.delete(ctx, log, message)
		return
	}

	if err := c.resolver.Resolve(msgCtx, job.ComplaintID); err != nil {
		// left on the queue; it reappears after the visibility timeout
		jobs.IncJobError(obsmetrics.JobConsumeGeneration, err)
		log.Warn("generation job not completed", zap.Int64("complaint_id", job.ComplaintID), zap.Error(err))
		return
	}
	c.delete(ctx, log, message)
}

func (c *Consumer) delete(ctx context.Context, log *zap.Logger, message sqstypes.Message) {
	_, err := c.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: message.ReceiptHandle,
	})
	if err != nil {
		log.Warn("delete message failed", zap.Error(err))
	}
}
