// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// maxDelay caps a single backoff wait.
const maxDelay = time.Minute

// permanentError stops Retry immediately.
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

// Retry runs fn up to attempts times, doubling delay after each failure.
// It stops early on success, on a Permanent error, on an open circuit
// breaker, or when ctx is done. The last error is returned wrapped.
func Retry(ctx context.Context, logger zerolog.Logger, op string, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.Debug().Str("op", op).Int("attempt", attempt).Int("max_attempts", attempts).
				Dur("delay", delay).Msg("Retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if IsOpen(err) || ctx.Err() != nil {
			return err
		}
		logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("Attempt failed")
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", op, attempts, lastErr)
}
