// Package retrylimit throttles and retries calls to flaky upstream catalogs.
//
// A Limiter paces requests with a token bucket whose rate shrinks when the
// upstream pushes back and grows again after a quiet period. Do retries a
// call with exponential backoff, waiting on the limiter before every attempt.
//
//	lim := retrylimit.NewLimiter(5, 1, 20)
//	err := retrylimit.Do(ctx, lim, retrylimit.Policy{Attempts: 3}, func(ctx context.Context) error {
//	    return search(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var log = logrus.WithField("component", "retry")

const recoverAfter = 10 * time.Second

// Limiter is a token bucket that slows down on throttling and speeds up on success.
type Limiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	lastError time.Time
}

// NewLimiter starts at initial requests per second, bounded by [min, max].
func NewLimiter(initial, min, max rate.Limit) *Limiter {
	if min < 1 {
		min = 1
	}
	if initial < min {
		initial = min
	}
	if max < initial {
		max = initial
	}
	return &Limiter{
		limiter: rate.NewLimiter(initial, int(initial)),
		min:     min,
		max:     max,
	}
}

// Wait blocks until a token is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Success nudges the rate up once the last throttle is old enough.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastError) > recoverAfter {
		l.setLimit(l.limiter.Limit() + 1)
	}
}

// Throttled halves the rate.
func (l *Limiter) Throttled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = time.Now()
	l.setLimit(l.limiter.Limit() / 2)
}

// Limit returns the current requests per second.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Limit()
}

func (l *Limiter) setLimit(r rate.Limit) {
	r = max(l.min, min(l.max, r))
	if r == l.limiter.Limit() {
		return
	}
	l.limiter.SetLimit(r)
	l.limiter.SetBurst(max(1, int(r)))
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Policy configures Do. Zero fields fall back to defaults.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Throttle reports whether err means the upstream is overloaded.
	Throttle func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 250 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	return p
}

// ErrAttemptsExhausted wraps the last error once every attempt failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Do runs fn until it succeeds, returns a *Permanent error, ctx ends or the
// attempt budget runs out. lim may be nil.
func Do(ctx context.Context, lim *Limiter, p Policy, fn func(context.Context) error) error {
	p = p.withDefaults()
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debugf("Succeeded after %d attempts", attempt)
			}
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if lim != nil && p.Throttle != nil && p.Throttle(err) {
			lim.Throttled()
			log.Warnf("Upstream throttled (attempt %d), limit now %.2f rps", attempt, float64(lim.Limit()))
		} else {
			log.Warnf("Attempt %d/%d failed: %v", attempt, p.Attempts, err)
		}

		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delay)):
		}
		delay = min(delay*2, p.MaxDelay)
	}
	return fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastErr)
}

// jitter adds up to 25% random slack to d.
func jitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d/4)))
}
