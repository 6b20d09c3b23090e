package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.GenAIConfig{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		CompletionModel: "test-completion",
		EmbeddingModel:  "test-embedding",
		Timeout:         5 * time.Second,
		MaxRetries:      2,
	}, logging.NewNopLogger())
	c.retryDelay = time.Millisecond
	return c, srv
}

func TestCompleteSendsPromptAndParsesReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatRequest

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the answer"}}]}`))
	}))

	reply, err := c.Complete(context.Background(), "analyze this clause")
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-completion", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "analyze this clause", gotBody.Messages[0].Content)
}

func TestCompleteEmptyChoices(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))

	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
}

func TestEmbedParsesVector(t *testing.T) {
	var gotBody embeddingRequest

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))

	vec, err := c.Embed(context.Background(), "security deposit")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "test-embedding", gotBody.Model)
	assert.Equal(t, []string{"security deposit"}, gotBody.Input)
}

func TestPostRetriesOnServerError(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))

	reply, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 3, calls)
}

func TestPostRetriesExhausted(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTooManyRequests))
	assert.Equal(t, 3, calls)
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`invalid model`))
	}))

	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelCallFailed))
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "invalid model")
}
