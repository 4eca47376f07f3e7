package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	"github.com/smallbiznis/grievance-portal/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

var ErrQueueURLRequired = errors.New("generation queue url is required")

// QueueAPI is the subset of the SQS client used for generation jobs.
type QueueAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Job is the queue message body.
type Job struct {
	ComplaintID int64 `json:"complaintId"`
}

// Queue publishes generation jobs to SQS. When a send fails the job runs
// inline so a paid complaint is never left without a response attempt.
type Queue struct {
	client   QueueAPI
	queueURL string
	fallback domain.Dispatcher
	log      *zap.Logger
}

func NewQueue(client QueueAPI, queueURL string, fallback domain.Dispatcher, log *zap.Logger) (*Queue, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		client:   client,
		queueURL: queueURL,
		fallback: fallback,
		log:      log.Named("dispatch.sqs"),
	}, nil
}

func (q *Queue) Dispatch(ctx context.Context, complaintID int64) error {
	if complaintID <= 0 {
		return domain.ErrInvalidID
	}

	body, err := json.Marshal(Job{ComplaintID: complaintID})
	if err != nil {
		return err
	}

	attrs := map[string]string{}
	correlation.InjectTrace(ctx, attrs)

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: toMessageAttributes(attrs),
	})
	if err == nil {
		return nil
	}

	log := obslogger.WithComplaint(obslogger.WithContext(ctx, q.log), complaintID)
	if q.fallback == nil {
		log.Error("enqueue generation failed", zap.Error(err))
		return err
	}
	log.Warn("enqueue generation failed, resolving inline", zap.Error(err))
	return q.fallback.Dispatch(ctx, complaintID)
}

func toMessageAttributes(attrs map[string]string) map[string]sqstypes.MessageAttributeValue {
	out := make(map[string]sqstypes.MessageAttributeValue, len(attrs))
	for key, value := range attrs {
		if value == "" {
			continue
		}
		out[key] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	return out
}

func fromMessageAttributes(attrs map[string]sqstypes.MessageAttributeValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		if value.StringValue != nil {
			out[key] = *value.StringValue
		}
	}
	return out
}
