package retry

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

type retryableErr struct{ retryable bool }

func (e retryableErr) Error() string { return "retryable-err" }
func (e retryableErr) Retryable() bool { return e.retryable }

func TestDoReturnsNilOnEventualSuccess(t *testing.T) {
	attempts := 0
	err := DoWithAttempts(func() error {
		attempts++
		if attempts < 2 {
			return retryableErr{retryable: true}
		}
		return nil
	}, 3)
	assert.NilError(t, err)
	assert.Equal(t, attempts, 2)
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("permanent")
	err := DoWithAttempts(func() error {
		attempts++
		return sentinel
	}, 3)
	assert.Assert(t, errors.Is(err, sentinel))
	assert.Equal(t, attempts, 1)
}

func TestDoExhaustsAttemptsOnPersistentRetryableError(t *testing.T) {
	attempts := 0
	err := DoWithAttempts(func() error {
		attempts++
		return retryableErr{retryable: true}
	}, 3)
	assert.ErrorContains(t, err, "retryable-err")
	assert.Equal(t, attempts, 3)
}
