package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"honeymatch/internal/config"
)

// fakeEmbedder returns a fixed vector or error and counts calls
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake:test" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func newEmbeddingServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testEmbeddingConfig(baseURL string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:        config.ProviderOpenAI,
		OpenAIAPIKey:    "sk-test",
		OpenAIAPIBase:   baseURL + "/v1/",
		OpenAIModel:     "text-embedding-3-small",
		Dimensions:      3,
		Timeout:         2 * time.Second,
		MaxRetryElapsed: 600 * time.Millisecond,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var gotBody map[string]any
	srv, _ := newEmbeddingServer(t, func(w http.ResponseWriter, body map[string]any) {
		gotBody = body
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	})

	e := NewOpenAIEmbedder(testEmbeddingConfig(srv.URL))
	got, err := e.Embed(context.Background(), "quiet beach honeymoon")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.25, -0.5, 1}, got)
	assert.Equal(t, "text-embedding-3-small", gotBody["model"])
	assert.EqualValues(t, 3, gotBody["dimensions"])
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())
}

func TestOpenAIEmbedder_EmptyData(t *testing.T) {
	srv, _ := newEmbeddingServer(t, func(w http.ResponseWriter, body map[string]any) {
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})

	_, err := NewOpenAIEmbedder(testEmbeddingConfig(srv.URL)).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestResilientEmbedder_RetriesServerErrors(t *testing.T) {
	var failures atomic.Int32
	srv, calls := newEmbeddingServer(t, func(w http.ResponseWriter, body map[string]any) {
		if failures.Add(1) <= 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0,0]}]}`))
	})

	cfg := testEmbeddingConfig(srv.URL)
	cfg.MaxRetryElapsed = 3 * time.Second
	e := NewResilientEmbedder(NewOpenAIEmbedder(cfg), cfg, zaptest.NewLogger(t))

	got, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestResilientEmbedder_ClientErrorIsNotRetried(t *testing.T) {
	srv, calls := newEmbeddingServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	})

	cfg := testEmbeddingConfig(srv.URL)
	e := NewResilientEmbedder(NewOpenAIEmbedder(cfg), cfg, zaptest.NewLogger(t))

	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.EqualValues(t, 1, calls.Load())
}

func TestResilientEmbedder_BreakerOpens(t *testing.T) {
	fake := &fakeEmbedder{err: ErrEmptyEmbedding}
	cfg := config.EmbeddingConfig{
		Timeout:         time.Second,
		MaxRetryElapsed: 100 * time.Millisecond,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
	e := NewResilientEmbedder(fake, cfg, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := e.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrEmptyEmbedding)
	}
	assert.Equal(t, gobreaker.StateOpen, e.State())

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, fake.calls.Load())
}

func TestResilientEmbedder_CanceledContextDoesNotTrip(t *testing.T) {
	fake := &fakeEmbedder{err: context.Canceled}
	cfg := config.EmbeddingConfig{MaxRetryElapsed: 100 * time.Millisecond, BreakerFailures: 1, BreakerCooldown: time.Minute}
	e := NewResilientEmbedder(fake, cfg, zaptest.NewLogger(t))

	_, err := e.Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, gobreaker.StateClosed, e.State())
}

func TestNewEmbedder(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e, err := NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: config.ProviderDisabled}, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "cohere"}, nil, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("openai with cache", func(t *testing.T) {
		srv, _ := newEmbeddingServer(t, func(w http.ResponseWriter, body map[string]any) {
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0,1,0]}]}`))
		})
		e, err := NewEmbedder(context.Background(), testEmbeddingConfig(srv.URL), newMapCache(), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.IsType(t, &CachedEmbedder{}, e)
		assert.Equal(t, "openai:text-embedding-3-small", e.Name())

		got, err := e.Embed(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0}, got)
	})
}

type closableEmbedder struct {
	fakeEmbedder
	closed bool
}

func (c *closableEmbedder) Close() error {
	c.closed = true
	return nil
}

func TestEmbedderWrappers_CloseReachesProvider(t *testing.T) {
	base := &closableEmbedder{}
	resilient := NewResilientEmbedder(base, config.EmbeddingConfig{Timeout: time.Second}, zaptest.NewLogger(t))
	var e Embedder = NewCachedEmbedder(resilient, newMapCache(), 3, zaptest.NewLogger(t))

	closer, ok := e.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.True(t, base.closed)

	// wrappers around providers without resources close cleanly
	assert.NoError(t, NewResilientEmbedder(&fakeEmbedder{}, config.EmbeddingConfig{}, nil).Close())
}
