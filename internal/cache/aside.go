package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	breakerMu sync.Mutex
	breaker   *gobreaker.CircuitBreaker[[]byte]
)

func newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			middleware.Logger.Warn("cache circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

func resetBreaker() {
	breakerMu.Lock()
	breaker = newBreaker()
	breakerMu.Unlock()
}

func currentBreaker() *gobreaker.CircuitBreaker[[]byte] {
	breakerMu.Lock()
	defer breakerMu.Unlock()
	if breaker == nil {
		breaker = newBreaker()
	}
	return breaker
}

// Aside loads key into dst, calling fetch on a miss and storing what fetch
// left in dst for ttl. Redis failures fall through to fetch; fetch errors are
// returned untouched and nothing is cached.
func Aside(ctx context.Context, key string, dst any, ttl time.Duration, fetch func() error) error {
	c := client
	if c == nil {
		observability.CacheLookups.WithLabelValues("bypass").Inc()
		return fetch()
	}

	raw, err := currentBreaker().Execute(func() ([]byte, error) {
		return c.Get(ctx, key).Bytes()
	})
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dst); jsonErr == nil {
			observability.CacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		observability.CacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues("miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues("error").Inc()
		middleware.Logger.DebugContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dst)
	if err != nil {
		return nil
	}
	if _, err := currentBreaker().Execute(func() ([]byte, error) {
		return nil, c.Set(ctx, key, payload, ttl).Err()
	}); err != nil {
		middleware.Logger.DebugContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
