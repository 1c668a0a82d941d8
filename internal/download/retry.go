package download

import (
	"context"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/enatools/enafetch/internal/ledger"
	"github.com/enatools/enafetch/internal/logctx"
	"github.com/enatools/enafetch/internal/telemetry"
)

// State of the per-target retry machine. Verified and Exhausted are terminal.
type State string

const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateVerifying  State = "verifying"
	StateVerified   State = "verified"
	StateRetrying   State = "retrying"
	StateExhausted  State = "exhausted"
)

// RetryPolicy bounds the retry loop for one target.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// persistently failing source is attempted exactly MaxRetries+1 times.
	MaxRetries int

	// Backoff is the initial delay before a retry; it doubles per retry up to
	// MaxBackoff and is jittered to avoid thundering-herd retries.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// SeparateChecksumBudget gives checksum mismatches their own MaxRetries
	// budget instead of sharing the transport one.
	SeparateChecksumBudget bool
}

// DefaultRetryPolicy matches the archive-friendly defaults of the CLI.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Backoff:    time.Second,
		MaxBackoff: time.Minute,
	}
}

// controller runs the retry state machine for a single target. Exactly one
// worker owns a target at a time, so the machine is strictly sequential.
type controller struct {
	fetcher Fetcher
	limiter Limiter
	ledger  ledger.Ledger
	policy  RetryPolicy
	tel     *telemetry.Telemetry
}

// run drives one target to a terminal state. A cancelled context yields an
// Outcome with empty Status and Err set: the target is not terminal, nothing
// is recorded in the ledger, and the scheduler leaves it out of the report.
func (c *controller) run(ctx context.Context, t Target) Outcome {
	logger := logctx.LoggerFromContext(ctx).With("target", t.ID)

	var (
		attempts   int
		transients int
		mismatches int
		lastErr    error
	)

	partPath := t.LocalPath + PartSuffix
	state := StatePending

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return Outcome{Target: t, Attempts: attempts, Err: err}
		}

		state = StateAttempting
		attempts++

		written, err := c.fetcher.FetchOnce(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Target: t, Attempts: attempts, Err: ctx.Err()}
			}

			lastErr = err

			if IsPermanent(err) {
				logger.Error("download failed permanently", "attempts", attempts, "err", err)

				return c.exhaust(ctx, t, attempts, err)
			}

			transients++
			if transients > c.policy.MaxRetries {
				logger.Error("download retries exhausted", "attempts", attempts, "err", err)

				return c.exhaust(ctx, t, attempts, err)
			}

			state = StateRetrying
			c.tel.RecordRetry("transient")
			logger.Warn("download attempt failed, retrying", "attempt", attempts, "state", state, "err", err)

			if err := c.backoff(ctx, transients+mismatches); err != nil {
				return Outcome{Target: t, Attempts: attempts, Err: err}
			}

			continue
		}

		state = StateVerifying

		got, verr := MD5Sum(partPath)
		if verr == nil && strings.EqualFold(got, t.MD5) {
			if err := os.Rename(partPath, t.LocalPath); err != nil {
				_ = os.Remove(partPath)

				return c.exhaust(ctx, t, attempts, err)
			}

			// Detached from cancellation: a verified file must be recorded
			// even when the job is being torn down.
			if err := c.ledger.Record(context.WithoutCancel(ctx), t.ID, ledger.StatusVerified, t.MD5); err != nil {
				logger.Error("failed to record verified file", "err", err)
			}

			state = StateVerified
			logger.Info("file verified", "attempts", attempts, "state", state)

			return Outcome{Target: t, Status: StatusVerified, Attempts: attempts, Bytes: written}
		}

		// Mismatch or unreadable temp file: discard and treat like a
		// transient failure, corruption during transfer is assumed.
		_ = os.Remove(partPath)

		if verr != nil {
			lastErr = verr
		} else {
			lastErr = &ChecksumError{Path: t.LocalPath, Want: t.MD5, Got: got}
		}

		mismatches++

		budget := transients + mismatches
		if c.policy.SeparateChecksumBudget {
			budget = mismatches
		}

		if budget > c.policy.MaxRetries {
			logger.Error("checksum verification exhausted", "attempts", attempts, "err", lastErr)

			return c.exhaust(ctx, t, attempts, lastErr)
		}

		state = StateRetrying
		c.tel.RecordRetry("checksum")
		logger.Warn("checksum mismatch, retrying", "attempt", attempts, "state", state)

		if err := c.backoff(ctx, transients+mismatches); err != nil {
			return Outcome{Target: t, Attempts: attempts, Err: err}
		}
	}
}

// exhaust records the incomplete entry and returns the terminal failure.
func (c *controller) exhaust(ctx context.Context, t Target, attempts int, cause error) Outcome {
	logger := logctx.LoggerFromContext(ctx)

	if err := c.ledger.Record(context.WithoutCancel(ctx), t.ID, ledger.StatusIncomplete, ""); err != nil {
		logger.Error("failed to record exhausted file", "target", t.ID, "err", err)
	}

	return Outcome{Target: t, Status: StatusFailed, Attempts: attempts, Err: cause}
}

// backoff sleeps 2^(retry-1) * base, capped and jittered between 0.5x and
// 1.5x, or returns early when the context is cancelled.
func (c *controller) backoff(ctx context.Context, retry int) error {
	delay := c.policy.Backoff * time.Duration(1<<uint(retry-1))
	if delay > c.policy.MaxBackoff || delay <= 0 {
		delay = c.policy.MaxBackoff
	}

	jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jittered):
		return nil
	}
}
