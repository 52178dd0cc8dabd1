package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"honeymatch/internal/config"
	"honeymatch/internal/logger"
)

// ResilientEmbedder retries transient provider failures with exponential
// backoff and stops calling a provider that keeps failing.
type ResilientEmbedder struct {
	next       Embedder
	breaker    *gobreaker.CircuitBreaker[[]float32]
	timeout    time.Duration
	maxElapsed time.Duration
	logger     *zap.Logger
}

// NewResilientEmbedder wraps next with retries and a circuit breaker
func NewResilientEmbedder(next Embedder, cfg config.EmbeddingConfig, l *zap.Logger) *ResilientEmbedder {
	l = logger.OrNop(l)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// the caller giving up is not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &ResilientEmbedder{
		next:       next,
		breaker:    gobreaker.NewCircuitBreaker[[]float32](settings),
		timeout:    cfg.Timeout,
		maxElapsed: cfg.MaxRetryElapsed,
		logger:     l,
	}
}

// Name implements Embedder
func (e *ResilientEmbedder) Name() string {
	return e.next.Name()
}

// Embed implements Embedder
func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return e.breaker.Execute(func() ([]float32, error) {
		return e.embedWithRetry(ctx, text)
	})
}

// Close releases the wrapped embedder
func (e *ResilientEmbedder) Close() error {
	return closeNext(e.next)
}

// State reports the circuit breaker state
func (e *ResilientEmbedder) State() gobreaker.State {
	return e.breaker.State()
}

func (e *ResilientEmbedder) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	attempt := 0

	op := func() error {
		attempt++
		vec, err := e.next.Embed(ctx, text)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			e.logger.Debug("embedding attempt failed, retrying",
				zap.String("provider", e.next.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		out = vec
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = e.maxElapsed

	var policy backoff.BackOff = expo
	if e.maxElapsed <= 0 {
		// zero elapsed means unbounded in backoff, cap by attempts instead
		policy = backoff.WithMaxRetries(expo, 2)
	}
	bo := backoff.WithContext(policy, ctx)

	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("embedding failed after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}

// isRetryable reports whether a provider error is worth another attempt.
// Client errors other than rate limiting will fail the same way again.
func isRetryable(err error) bool {
	if errors.Is(err, ErrEmptyEmbedding) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return true
	}
	return code < 400 || code >= 500
}
