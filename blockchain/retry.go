package blockchain

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// retry.go implements submit_extrinsic_with_retry (spec.md §4.5). retry-go
// drives the attempt loop and timeout plumbing; the tip-bump schedule itself
// is linear-in-attempt rather than retry-go's exponential backoff, so it is
// computed here and fed back into the extrinsic builder on each attempt
// instead of being left to retry-go's delay-type hooks.

// ErrShouldNotRetry is returned by submitExtrinsicWithRetry when the
// caller-supplied predicate declines a retry after a timeout.
var ErrShouldNotRetry = errors.New("should_retry predicate declined further attempts")

// RetryStrategy mirrors spec.md §4.5's retry_strategy argument to
// submit_extrinsic_with_retry.
type RetryStrategy struct {
	MaxRetries uint
	MaxTip     uint64
	// ShouldRetry is consulted after a timeout, to re-verify the submission
	// is still worth retrying (e.g. the proof has not gone stale).
	ShouldRetry func(ctx context.Context) bool
}

// ExtrinsicOptions mirrors the per-submission options spec.md §4.5
// describes: a timeout, and the module/call name pair purely for logging.
type ExtrinsicOptions struct {
	Timeout    time.Duration
	ModuleName string
	CallName   string
}

// buildAndSend constructs, signs, and submits one attempt of an extrinsic at
// the given tip, blocking until the chain reports inclusion or the attempt's
// own timeout elapses.
type buildAndSend func(ctx context.Context, tip uint64) error

// tipForAttempt computes the linear tip-bump schedule: attempt 0 uses tip 0,
// and each subsequent attempt moves linearly toward maxTip, reaching it
// exactly at maxRetries.
func tipForAttempt(attempt uint, maxRetries uint, maxTip uint64) uint64 {
	if maxRetries == 0 {
		return maxTip
	}
	if attempt >= maxRetries {
		return maxTip
	}
	return maxTip * uint64(attempt) / uint64(maxRetries)
}

// submitExtrinsicWithRetry drives send through up to strategy.MaxRetries
// additional attempts after a timeout, bumping the tip linearly toward
// strategy.MaxTip on each retry, and consulting strategy.ShouldRetry before
// every retry. Any terminal (non-timeout) failure stops immediately without
// consulting ShouldRetry.
func submitExtrinsicWithRetry(ctx context.Context, opts ExtrinsicOptions, strategy RetryStrategy, send buildAndSend) error {
	attempt := uint(0)
	return retry.Do(
		func() error {
			tip := tipForAttempt(attempt, strategy.MaxRetries, strategy.MaxTip)
			attemptCtx := ctx
			cancel := func() {}
			if opts.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			}
			defer cancel()

			err := send(attemptCtx, tip)
			attempt++
			if err == nil {
				return nil
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				return retry.Unrecoverable(err)
			}
			if strategy.ShouldRetry != nil && !strategy.ShouldRetry(ctx) {
				return retry.Unrecoverable(ErrShouldNotRetry)
			}
			return err
		},
		retry.Attempts(strategy.MaxRetries+1),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
