package workflow

import (
	"errors"
	"math/rand"
	"time"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate when the
// configured bounds are inconsistent.
var ErrInvalidRetryPolicy = errors.New("workflow: invalid retry policy")

// RetryPolicy configures automatic retries for a Handler's transient
// failures, using exponential backoff with jitter to avoid synchronized
// retry storms across concurrent executors.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts, including
	// the first. Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff:
	// delay = min(BaseDelay*2^attempt, MaxDelay) + jitter(0, BaseDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether a given error should trigger a retry. A
	// nil Retryable treats every error as non-retryable.
	Retryable func(error) bool
}

// Validate reports whether the policy's bounds are self-consistent.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// computeBackoff returns the delay before the next attempt, given a
// zero-based attempt number. Passing a non-nil rng makes the jitter
// component reproducible (e.g. seeded from the run id) for deterministic
// replay; passing nil falls back to the package-level RNG.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	exponential := base * (1 << attempt)
	if maxDelay > 0 && exponential > maxDelay {
		exponential = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter timing, not security-sensitive
		}
	}
	return exponential + jitter
}

// SupervisorDecision tells the runner how to react to an ErrorEvent raised
// by a failing Handler after its retry budget is exhausted.
type SupervisorDecision int

const (
	// SupervisorAbort stops the run and surfaces the error to the caller.
	SupervisorAbort SupervisorDecision = iota
	// SupervisorContinue drops the failing message and keeps the run
	// going, e.g. for a best-effort notification executor.
	SupervisorContinue
)

// SupervisorFunc lets a Workflow downgrade specific handler failures from
// fatal to recoverable, grounded on the teacher's NodePolicy/RetryPolicy
// split between retryable and terminal errors (graph/policy.go).
type SupervisorFunc func(executorID string, err error) SupervisorDecision
