package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	responderdomain "github.com/smallbiznis/grievance-portal/internal/responder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsMessagesRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "model-x", body.Model)
		assert.Equal(t, 256, body.MaxTokens)
		assert.Equal(t, responderdomain.SystemDirective, body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"responseText\":\"Noted\","},{"type":"text","text":"\"complexityScore\":2}"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	client, err := New("test-key", srv.URL, srv.Client())
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), responderdomain.Request{
		System:    responderdomain.SystemDirective,
		Prompt:    responderdomain.BuildPrompt("my complaint text"),
		Model:     "model-x",
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"responseText":"Noted","complexityScore":2}`, text)
}

func TestCompleteRetriesOverload(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	client, err := New("test-key", srv.URL, srv.Client())
	require.NoError(t, err)
	client.initDelay = time.Millisecond

	text, err := client.Complete(context.Background(), responderdomain.Request{Model: "m", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := New("test-key", srv.URL, srv.Client())
	require.NoError(t, err)
	client.initDelay = time.Millisecond

	_, err = client.Complete(context.Background(), responderdomain.Request{Model: "m", MaxTokens: 10})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(" ", "", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
