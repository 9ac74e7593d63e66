// Package resilience retries remote calls with exponential backoff and
// jitter, and decides which failures are worth retrying at all.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = time.Second
)

// Retrier runs an operation up to MaxAttempts times. Before retry n (the
// n-th failure, 1-based) it waits BaseDelay*2^(n-1) plus a random jitter in
// [0, MaxJitter).
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// Sleep and Jitter can be swapped out in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(max time.Duration) time.Duration
}

func New() *Retrier {
	return &Retrier{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// Delay returns how long to wait after the given failed attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.BaseDelay << (attempt - 1)
	if r.MaxJitter > 0 {
		jitter := r.Jitter
		if jitter == nil {
			jitter = randomJitter
		}
		d += jitter(r.MaxJitter)
	}
	return d
}

// Do runs op until it succeeds, fails terminally, or runs out of attempts.
// The last error is returned unchanged.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if IsTerminal(err) || ctx.Err() != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("terminal-error-not-retrying")
			return unwrapPermanent(err)
		}
		if attempt == attempts {
			break
		}
		delay := r.Delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying-remote-call")
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

// WithRetry is Do for operations that return a value.
func WithRetry[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) && p == err {
		return p.err
	}
	return err
}

// IsTerminal reports whether retrying err is pointless. That covers auth
// failures and any verdict the service would repeat on every attempt
// (invalid, missing, duplicate or out-of-state requests), as well as errors
// marked Permanent and cancellation.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		switch cerr.Code() {
		case connect.CodeUnauthenticated, connect.CodePermissionDenied,
			connect.CodeInvalidArgument, connect.CodeNotFound,
			connect.CodeAlreadyExists, connect.CodeFailedPrecondition,
			connect.CodeCanceled:
			return true
		}
	}
	return false
}

// IsAuthError reports whether err means the caller is not allowed in.
func IsAuthError(err error) bool {
	code := connect.CodeOf(err)
	return code == connect.CodeUnauthenticated || code == connect.CodePermissionDenied
}

func randomJitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(max)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
