// Package ratelimit implements the outer wrapper (C6) around each external
// service call: a per-service token bucket bounding how fast this process
// calls out to LLM providers and geocoders, independent of whether those
// calls are currently succeeding (that's the Circuit Breaker's job, one
// layer in — spec.md §4.6: "Rate Limiter is the outer wrapper").
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/observability/metrics"
)

// Config sets one service's token bucket: RequestsPerSecond refills the
// bucket, Burst caps how many requests can fire back-to-back, and WaitCap
// bounds how long a caller will block for a token before giving up.
type Config struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
	WaitCap           time.Duration
}

// DefaultConfig returns sane defaults for an LLM provider call: 2 req/s,
// burst of 2, capped at waiting 5s for a token before surfacing
// entity.ErrRateLimitExceeded.
func DefaultConfig(name string) Config {
	return Config{Name: name, RequestsPerSecond: 2, Burst: 2, WaitCap: 5 * time.Second}
}

// GeocoderConfig returns defaults tuned for a geocoding provider: most
// geocoding APIs allow a higher steady rate but still need a short wait cap
// so the Location Resolver's shrinking budget isn't consumed by queuing.
func GeocoderConfig(name string) Config {
	return Config{Name: name, RequestsPerSecond: 5, Burst: 5, WaitCap: 2 * time.Second}
}

// Limiter wraps a golang.org/x/time/rate.Limiter with a bounded wait and
// metrics, one per external service.
type Limiter struct {
	config  Config
	limiter *rate.Limiter
}

// New builds a Limiter from cfg. Zero-value RequestsPerSecond/Burst fall
// back to DefaultConfig's values so a caller can override only WaitCap.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.WaitCap <= 0 {
		cfg.WaitCap = 5 * time.Second
	}
	return &Limiter{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Wait blocks until a token is available. When the token would not be
// available within WaitCap it returns at once rather than blocking out the
// cap. Every failure (cap, or ctx ending first) returns
// entity.ErrRateLimitExceeded rather than ctx's own error, so callers can
// match on the sentinel regardless of which one fired.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.config.WaitCap)
	defer cancel()

	err := l.limiter.Wait(waitCtx)
	metrics.RecordRateLimiterWait(l.config.Name, time.Since(start))
	if err != nil {
		metrics.RecordRateLimiterRejected(l.config.Name)
		slog.Warn("rate limiter wait exceeded cap", "service", l.config.Name, "wait_cap", l.config.WaitCap)
		return fmt.Errorf("%w: %s", entity.ErrRateLimitExceeded, l.config.Name)
	}
	return nil
}

// Name returns the service name this limiter protects.
func (l *Limiter) Name() string { return l.config.Name }
