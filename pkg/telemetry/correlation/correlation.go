// Package correlation carries a correlation id and the W3C trace context
// across the SQS hop between the api and the worker.
package correlation

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/propagation"
)

type ctxKey struct{}

// Message attribute names.
const (
	KeyCorrelationID = "correlation_id"
	KeyPublishedAt   = "published_at"
)

var carrierPropagator = propagation.TraceContext{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// EnsureCorrelationID returns ctx with a correlation id, minting a ULID
// when none is set.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return ContextWithCorrelationID(ctx, id), id
}

// InjectTrace writes the correlation id, the traceparent header and the
// publish time into attrs. An id already present in attrs is kept when ctx
// has none.
func InjectTrace(ctx context.Context, attrs map[string]string) {
	if attrs == nil {
		return
	}
	id := ExtractCorrelationID(ctx)
	if id == "" {
		id = attrs[KeyCorrelationID]
	}
	if id == "" {
		id = ulid.Make().String()
	}
	attrs[KeyCorrelationID] = id
	carrierPropagator.Inject(ctx, propagation.MapCarrier(attrs))
	attrs[KeyPublishedAt] = time.Now().UTC().Format(time.RFC3339)
}

// ExtractTrace restores what InjectTrace wrote. The parent span, if any,
// is marked remote.
func ExtractTrace(ctx context.Context, attrs map[string]string) context.Context {
	if attrs == nil {
		return ctx
	}
	ctx = carrierPropagator.Extract(ctx, propagation.MapCarrier(attrs))
	return ContextWithCorrelationID(ctx, attrs[KeyCorrelationID])
}
