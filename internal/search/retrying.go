package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Retrying wraps a Provider with pacing and bounded retries. A query that
// keeps failing yields an empty result instead of an error so one bad query
// never aborts a crawl; only context cancellation is returned.
type Retrying struct {
	Provider Provider
	// Attempts is the total number of tries per query. Zero means 3.
	Attempts int
	// MinDelay spaces consecutive queries apart. Zero disables pacing.
	MinDelay time.Duration
	// BaseDelay is the first backoff step; it doubles on each rate-limit
	// response. Zero means one second.
	BaseDelay time.Duration
	// MaxDelay caps a single wait, Retry-After included. Zero means 60s.
	MaxDelay time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	once    sync.Once
	limiter *rate.Limiter
}

// NewRetrying wraps p with the given attempt count and minimum spacing.
func NewRetrying(p Provider, attempts int, minDelay time.Duration) *Retrying {
	return &Retrying{Provider: p, Attempts: attempts, MinDelay: minDelay}
}

func (r *Retrying) Name() string { return r.Provider.Name() }

func (r *Retrying) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	r.once.Do(func() {
		if r.MinDelay > 0 {
			r.limiter = rate.NewLimiter(rate.Every(r.MinDelay), 1)
		}
	})

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, ctxErrOr(ctx, err)
			}
		}
		res, err := r.Provider.Search(ctx, query, limit)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		wait := r.BaseDelay
		if wait <= 0 {
			wait = time.Second
		}
		if limited, retryAfter := isRateLimited(err); limited {
			wait = delay
			if retryAfter > wait {
				wait = retryAfter
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
		if wait > maxDelay {
			wait = maxDelay
		}
		log.Warn().Err(err).Str("provider", r.Provider.Name()).Str("query", query).Int("attempt", attempt).Dur("wait", wait).Msg("search failed; retrying")
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	log.Warn().Err(lastErr).Str("provider", r.Provider.Name()).Str("query", query).Int("attempts", attempts).Msg("search gave up")
	return []Result{}, nil
}

func isRateLimited(err error) (bool, time.Duration) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RateLimited(), se.RetryAfter
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"), 0
}

func ctxErrOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
