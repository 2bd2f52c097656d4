package bus

import (
	"encoding/json"
	"time"
)

// Envelope is the durable record wrapping one published message plus its
// processing and retry state. It is created by the Bus on publish and
// mutated only by the Processor afterwards.
type Envelope struct {
	ID          ID
	Queue       string
	MessageType string
	Payload     json.RawMessage
	CreatedAt   time.Time
	// NextAttemptAt is nil for "attempt immediately"; a future time delays
	// the next attempt (delayed publish or retry backoff).
	NextAttemptAt *time.Time
	AttemptCount  int
	MaxAttempts   int
	Status        Status
	// LastError holds the failure description of the most recent attempt.
	LastError   string
	CompletedAt *time.Time
}

// Actionable reports whether the envelope is eligible for processing at the
// given instant: pending or due for retry, with no future NextAttemptAt.
func (e Envelope) Actionable(now time.Time) bool {
	if e.Status != StatusPending && e.Status != StatusFailed {
		return false
	}
	if e.NextAttemptAt == nil {
		return true
	}

	return !e.NextAttemptAt.After(now)
}
