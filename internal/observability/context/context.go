package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type actorKey struct{}
type complaintKey struct{}

type actor struct {
	kind string
	id   string
}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if ctx == nil || requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor records who is acting: "admin", "webhook", "system" or "public".
func WithActor(ctx stdcontext.Context, kind, id string) stdcontext.Context {
	if ctx == nil {
		return ctx
	}
	return stdcontext.WithValue(ctx, actorKey{}, actor{
		kind: strings.TrimSpace(kind),
		id:   strings.TrimSpace(id),
	})
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}

// WithComplaintID tags the context with the complaint being worked on.
func WithComplaintID(ctx stdcontext.Context, complaintID int64) stdcontext.Context {
	if ctx == nil || complaintID <= 0 {
		return ctx
	}
	return stdcontext.WithValue(ctx, complaintKey{}, complaintID)
}

func ComplaintIDFromContext(ctx stdcontext.Context) int64 {
	if ctx == nil {
		return 0
	}
	value, _ := ctx.Value(complaintKey{}).(int64)
	return value
}
