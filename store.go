package bus

import (
	"context"
	"time"
)

// Writer persists new envelopes. It is the only store capability the publish
// path needs.
type Writer interface {
	// Insert durably stores a new envelope.
	Insert(ctx context.Context, env Envelope) error
}

// Store is the durable envelope store consumed by the Processor. All state
// transitions are single-envelope operations; the Processor is the only
// writer after insert.
type Store interface {
	Writer

	// ActiveQueues returns the distinct queue names that have at least one
	// actionable envelope at now. The scan is bounded: at most limit
	// candidate envelopes are considered, so a queue missed by one scan is
	// picked up on a later wake.
	ActiveQueues(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ClaimNext atomically claims the oldest actionable envelope in the
	// queue, marking it Processing, and returns the claimed state. It
	// returns ErrNoEnvelopes when the queue has nothing actionable.
	ClaimNext(ctx context.Context, queue string, now time.Time) (Envelope, error)

	// Update persists the envelope's processing state (status, attempts,
	// error, scheduling timestamps) by ID.
	Update(ctx context.Context, env Envelope) error
}

// Watcher is a best-effort change feed over the envelope store.
type Watcher interface {
	// Watch blocks, signaling wake whenever envelopes are inserted or
	// updated, until ctx is canceled. Signals must be non-blocking sends;
	// a missed signal is fine because the processor coalesces wakes.
	// A return before ctx is done means the feed broke; the caller decides
	// whether to re-subscribe.
	Watch(ctx context.Context, wake chan<- struct{}) error
}
