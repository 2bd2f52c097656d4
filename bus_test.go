package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestBroadcastPersistsPendingEnvelope(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t), WithBusClock(fixedClock{now: now}))

	id, err := b.Broadcast(context.Background(), orderPlaced{OrderID: "O-1"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if id.IsZero() {
		t.Fatalf("expected assigned id")
	}

	env, ok := store.get(id)
	if !ok {
		t.Fatalf("envelope not stored")
	}
	if env.Status != StatusPending {
		t.Fatalf("expected pending, got %s", env.Status)
	}
	if env.Queue != "orders" {
		t.Fatalf("expected queue from QueueName, got %q", env.Queue)
	}
	if env.MessageType != "orderPlaced" {
		t.Fatalf("expected type tag orderPlaced, got %q", env.MessageType)
	}
	if !env.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %v, got %v", now, env.CreatedAt)
	}
	if env.NextAttemptAt != nil {
		t.Fatalf("expected immediate envelope, got nextAttemptAt %v", env.NextAttemptAt)
	}
	if env.AttemptCount != 0 {
		t.Fatalf("expected zero attempts, got %d", env.AttemptCount)
	}
	if env.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", env.MaxAttempts)
	}

	var msg orderPlaced
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.OrderID != "O-1" {
		t.Fatalf("expected payload round-trip, got %+v", msg)
	}
}

func TestBroadcastQueueFallsBackToTypeName(t *testing.T) {
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t))

	id, err := b.Broadcast(context.Background(), stockAdjusted{SKU: "S-1", Delta: 2})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	env, _ := store.get(id)
	if env.Queue != "stockAdjusted" {
		t.Fatalf("expected type-name queue, got %q", env.Queue)
	}
}

func TestBroadcastTypeTagOverride(t *testing.T) {
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t))

	id, err := b.Broadcast(context.Background(), auditEvent{Action: "login"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	env, _ := store.get(id)
	if env.MessageType != "audit.event" {
		t.Fatalf("expected MessageType override, got %q", env.MessageType)
	}
	if env.Queue != "audit.event" {
		t.Fatalf("expected queue to follow type tag, got %q", env.Queue)
	}
}

func TestBroadcastDelayedSetsNextAttempt(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t), WithBusClock(fixedClock{now: now}))

	id, err := b.BroadcastDelayed(context.Background(), orderPlaced{OrderID: "O-2"}, 10*time.Second)
	if err != nil {
		t.Fatalf("broadcast delayed: %v", err)
	}

	env, _ := store.get(id)
	if env.NextAttemptAt == nil {
		t.Fatalf("expected nextAttemptAt")
	}
	if !env.NextAttemptAt.Equal(now.Add(10 * time.Second)) {
		t.Fatalf("expected nextAttemptAt now+10s, got %v", env.NextAttemptAt)
	}
}

func TestBroadcastDelayedZeroBehavesLikeBroadcast(t *testing.T) {
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t))

	id, err := b.BroadcastDelayed(context.Background(), orderPlaced{OrderID: "O-3"}, 0)
	if err != nil {
		t.Fatalf("broadcast delayed: %v", err)
	}

	env, _ := store.get(id)
	if env.NextAttemptAt != nil {
		t.Fatalf("expected immediate envelope, got %v", env.NextAttemptAt)
	}
}

func TestBroadcastNegativeDelayRejected(t *testing.T) {
	b := NewBus(newMemStore(), newTestRegistry(t))

	if _, err := b.BroadcastDelayed(context.Background(), orderPlaced{}, -time.Second); !errors.Is(err, ErrNegativeDelay) {
		t.Fatalf("expected ErrNegativeDelay, got %v", err)
	}
}

func TestBroadcastUnregisteredType(t *testing.T) {
	b := NewBus(newMemStore(), newTestRegistry(t))

	type unknownMessage struct{}
	if _, err := b.Broadcast(context.Background(), unknownMessage{}); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestBroadcastStoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("store down")
	b := NewBus(store, newTestRegistry(t))

	if _, err := b.Broadcast(context.Background(), orderPlaced{}); !errors.Is(err, store.insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}
}

func TestBroadcastMaxAttemptsOption(t *testing.T) {
	store := newMemStore()
	b := NewBus(store, newTestRegistry(t), WithMaxAttempts(3))

	id, err := b.Broadcast(context.Background(), orderPlaced{})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	env, _ := store.get(id)
	if env.MaxAttempts != 3 {
		t.Fatalf("expected max attempts 3, got %d", env.MaxAttempts)
	}
}
