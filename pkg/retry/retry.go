// Package retry provides a shared retry engine with configurable backoff
// strategies. Transports use it to survive a peer that is slow to come up:
// a subprocess that needs a moment before it reads stdin, or an HTTP
// endpoint that refuses connections while its listener binds.
//
// Three strategies are supported:
//   - Exponential: delay doubles each attempt (1s, 2s, 4s, …)
//   - Linear: delay grows linearly (1s, 2s, 3s, …)
//   - Constant: delay stays the same each attempt
//
// Usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return tr.connect(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
)

// Strategy defines the backoff algorithm.
type Strategy int

const (
	// Exponential doubles the delay each attempt: initDelay * 2^attempt.
	Exponential Strategy = iota
	// Linear increases the delay linearly: initDelay * (attempt+1).
	Linear
	// Constant uses the same delay between every attempt.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts (including the first). 0 means no-op.
	InitDelay   time.Duration // Base delay before first retry.
	MaxDelay    time.Duration // Upper bound on any single delay.
	Strategy    Strategy      // Backoff algorithm.
	Jitter      bool          // Add ±25% random jitter to each delay.
}

// DefaultConfig returns the standard connect policy: 3 attempts,
// exponential backoff from 1s capped at 30s, with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryMedium,
		InitDelay:   duration.RetryFast,
		MaxDelay:    duration.ContextShort,
		Strategy:    Exponential,
		Jitter:      true,
	}
}

// StopError wraps an error to signal that retrying should stop immediately.
// Use this when the caller knows the error is permanent (e.g. the peer
// binary does not exist).
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further retries.
func Stop(err error) error {
	return &StopError{Err: err}
}

// sleeper is an interface for waiting, allowing tests to override time.After.
type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses time.After for production code.
type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between failures
// according to the configured strategy. It returns nil on the first
// successful call, or the last error if all attempts fail. If the context
// is cancelled, ctx.Err() is returned immediately.
//
// If fn returns a StopError, Do returns the wrapped error without retrying.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return doWithSleeper(ctx, cfg, fn, realSleeper{})
}

func doWithSleeper(ctx context.Context, cfg Config, fn func() error, s sleeper) error {
	if cfg.MaxAttempts <= 0 {
		return nil
	}

	var lastErr error
	for attempt := range cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Check for StopError — caller says don't retry.
		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}

		// Sleep before next attempt (skip after final attempt).
		if attempt < cfg.MaxAttempts-1 {
			delay := CalcDelay(cfg, attempt)
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// CalcDelay computes the sleep duration for a given attempt (0-indexed).
// The math runs in float64 so extreme attempt counts cap at MaxDelay
// instead of overflowing into negative durations.
func CalcDelay(cfg Config, attempt int) time.Duration {
	var delay time.Duration
	switch cfg.Strategy {
	case Exponential:
		f := float64(cfg.InitDelay) * math.Pow(2, float64(attempt))
		if math.IsInf(f, 1) || f >= float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(f)
		}
	case Linear:
		f := float64(cfg.InitDelay) * float64(attempt+1)
		if f >= float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(f)
		}
	case Constant:
		delay = cfg.InitDelay
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	if cfg.Jitter && delay > 0 {
		quarter := int64(delay) / 4
		if quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 {
				delay += j
			} else {
				delay -= j
			}
		}
		// Jitter must respect the cap too.
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return delay
}
