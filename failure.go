package bus

import (
	"context"
	"errors"
	"fmt"
)

// FailureAction defines how a failed dispatch attempt should be handled.
type FailureAction int

const (
	// FailureRetry schedules the envelope for another attempt.
	FailureRetry FailureAction = iota
	// FailureDead dead-letters the envelope immediately, skipping the
	// remaining backoff schedule.
	FailureDead
)

// FailureClassifier decides whether a failed attempt is retryable.
type FailureClassifier func(ctx context.Context, env Envelope, err error) FailureAction

// defaultFailureClassifier retries everything except errors marked Permanent.
func defaultFailureClassifier(_ context.Context, _ Envelope, err error) FailureAction {
	if IsPermanent(err) {
		return FailureDead
	}

	return FailureRetry
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("permanent: %s", e.err)
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks a handler error as non-retryable. The default classifier
// dead-letters envelopes failing with a permanent error instead of walking
// the backoff schedule.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err or any wrapped error was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError

	return errors.As(err, &pe)
}
