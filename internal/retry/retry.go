// Package retry implements an opt-in exponential-backoff policy for
// transient syscall errors: 3 attempts, 100ms base delay, ×2 factor. It is
// never applied automatically — callers wrap the specific operation they
// want retried.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
	defaultFactor      = 2.0
)

// Retryable is satisfied by gobpf.Error; kept as a local interface so this
// package doesn't import the root package (which would be a cycle).
type Retryable interface {
	Retryable() bool
}

// Do runs fn, retrying up to defaultMaxAttempts times with exponential
// backoff (base 100ms, factor 2) as long as the returned error reports
// Retryable() == true. A non-retryable error returns immediately.
func Do(fn func() error) error {
	return DoWithAttempts(fn, defaultMaxAttempts)
}

// DoWithAttempts is Do with an explicit attempt cap, for call sites that need
// a different budget than the default.
func DoWithAttempts(fn func() error, maxAttempts int) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultBaseDelay
	b.Multiplier = defaultFactor
	b.RandomizationFactor = 0

	policy := backoff.WithMaxRetries(b, uint64(maxAttempts-1))

	var lastErr error
	op := func() error {
		err := fn()
		lastErr = err
		if err == nil {
			return nil
		}
		if r, ok := err.(Retryable); ok && r.Retryable() {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, policy); err != nil {
		return lastErr
	}
	return nil
}
