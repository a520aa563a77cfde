package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"docexchange/internal/ratelimit/metrics"
	"docexchange/internal/ratelimit/models"
	"docexchange/pkg/platform/circuit"
	"docexchange/pkg/platform/httputil"
	"docexchange/pkg/platform/middleware/metadata"
	"docexchange/pkg/requestcontext"
)

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	limit    int
	window   time.Duration
}

type Option func(*Middleware)

// WithFallback serves checks from fallback once the breaker has seen enough
// consecutive primary failures. Without it, failures let requests through.
func WithFallback(fallback BucketStore, breaker *circuit.Breaker) Option {
	return func(mw *Middleware) {
		mw.fallback = fallback
		mw.breaker = breaker
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New limits each client IP to limit requests per window. A non-positive
// limit disables the middleware.
func New(store BucketStore, logger *slog.Logger, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit <= 0 {
		logger.Info("share route rate limiting disabled")
	}
	return m
}

// RateLimit must run after metadata.ClientMetadata. Limiter failures let the
// request through.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := metadata.FromContext(ctx).IP

		result, degraded, err := m.check(ctx, models.ShareKey(ip))
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}
		if err != nil {
			m.metrics.IncrementCheckFailures()
			m.logger.ErrorContext(ctx, "failed to check share rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.metrics.IncrementRejected()
			m.logger.WarnContext(ctx, "share rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", ip,
			)
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check asks the primary store and, when the circuit is open, answers
// failures from the fallback store.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.store.Allow(ctx, key, m.limit, m.window)
	if m.breaker == nil {
		return result, false, err
	}
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
		}
		return result, false, nil
	}

	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback",
			"breaker", m.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return nil, false, err
	}
	result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests from this address, try again later",
		RetryAfter:       result.RetryAfter,
	})
}
