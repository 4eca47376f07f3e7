package context

import (
	stdcontext "context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := stdcontext.Background()
	require.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithActor(ctx, "admin", "42")
	ctx = WithComplaintID(ctx, 7)

	require.Equal(t, "req-1", RequestIDFromContext(ctx))
	kind, id := ActorFromContext(ctx)
	require.Equal(t, "admin", kind)
	require.Equal(t, "42", id)
	require.Equal(t, int64(7), ComplaintIDFromContext(ctx))

	require.Equal(t, ctx, WithComplaintID(ctx, 0))
}
