package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luma_assistant/internal/interfaces"
	"luma_assistant/internal/logging"
)

const completionJSON = `{"id":"c1","object":"chat.completion","created":1,"model":"test-model",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Salut toi !  "}}]}`

func TestOpenRouterClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	}))
	defer srv.Close()

	c, err := NewOpenRouterClient("sk-test", srv.URL+"/", "test-model")
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), interfaces.CompletionRequest{
		System: "persona", User: "hello", Temperature: 0.7, MaxTokens: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, "Salut toi !", out)
	assert.Equal(t, "test-model", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	assert.EqualValues(t, 120, body["max_tokens"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenRouterClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewOpenRouterClient("sk-test", srv.URL+"/", "m", option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), interfaces.CompletionRequest{User: "x"})
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient(" ", "", "m")
	assert.Error(t, err)
}

type stubAI struct {
	text  string
	err   error
	calls int
}

func (s *stubAI) Complete(context.Context, interfaces.CompletionRequest) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallbackAIClient(t *testing.T) {
	primary := &stubAI{err: interfaces.ErrBackendUnavailable}
	fallback := &stubAI{text: "from fallback"}
	f := NewFallbackAIClient(primary, fallback, logging.Discard())

	out, err := f.Complete(context.Background(), interfaces.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", out)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackAIClient_SkipsFallbackWhenContextDone(t *testing.T) {
	primary := &stubAI{err: interfaces.ErrBackendTimeout}
	fallback := &stubAI{text: "late"}
	f := NewFallbackAIClient(primary, fallback, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Complete(ctx, interfaces.CompletionRequest{})
	assert.True(t, errors.Is(err, interfaces.ErrBackendTimeout))
	assert.Zero(t, fallback.calls)
}

func TestNewAIClient_NoneConfigured(t *testing.T) {
	c, err := NewAIClient(context.Background(), "", "", "", "", "", logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, c)
}
