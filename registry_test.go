package bus

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterDuplicateType(t *testing.T) {
	registry := NewRegistry()
	if err := Register[orderPlaced](registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register[orderPlaced](registry); !errors.Is(err, ErrDuplicateMessageType) {
		t.Fatalf("expected ErrDuplicateMessageType, got %v", err)
	}
}

func TestRegisterDuplicateTag(t *testing.T) {
	registry := NewRegistry()
	if err := Register[orderPlaced](registry); err != nil {
		t.Fatalf("register: %v", err)
	}

	type other struct{}
	if err := Register[other](registry, WithMessageType("orderPlaced")); !errors.Is(err, ErrDuplicateMessageType) {
		t.Fatalf("expected ErrDuplicateMessageType, got %v", err)
	}
}

func TestRegisterOptionsOverrideDeclarations(t *testing.T) {
	registry := NewRegistry()
	if err := Register[orderPlaced](registry, WithQueue("priority-orders"), WithMessageType("order.placed")); err != nil {
		t.Fatalf("register: %v", err)
	}

	store := newMemStore()
	b := NewBus(store, registry)
	id, err := b.Broadcast(context.Background(), orderPlaced{OrderID: "O-1"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	env, _ := store.get(id)
	if env.Queue != "priority-orders" {
		t.Fatalf("expected option queue, got %q", env.Queue)
	}
	if env.MessageType != "order.placed" {
		t.Fatalf("expected option tag, got %q", env.MessageType)
	}
}

func TestResolveUnknownTypeIsEmpty(t *testing.T) {
	registry := NewRegistry()
	if factories := registry.Resolve("nope"); len(factories) != 0 {
		t.Fatalf("expected no factories, got %d", len(factories))
	}
}

func TestSubscribeUnregisteredType(t *testing.T) {
	registry := NewRegistry()
	err := Subscribe[orderPlaced](registry, FactoryOf(HandlerFunc(func(context.Context, any) error { return nil })))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestSubscribeAccumulatesFactories(t *testing.T) {
	registry := newTestRegistry(t)
	noop := FactoryOf(HandlerFunc(func(context.Context, any) error { return nil }))

	if err := Subscribe[orderPlaced](registry, noop); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := Subscribe[orderPlaced](registry, noop); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if got := len(registry.Resolve("orderPlaced")); got != 2 {
		t.Fatalf("expected 2 factories, got %d", got)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	registry := newTestRegistry(t)

	msg, err := registry.Decode("orderPlaced", []byte(`{"order_id":"O-9"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	typed, ok := msg.(orderPlaced)
	if !ok {
		t.Fatalf("expected orderPlaced, got %T", msg)
	}
	if typed.OrderID != "O-9" {
		t.Fatalf("expected O-9, got %q", typed.OrderID)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	registry := newTestRegistry(t)
	if _, err := registry.Decode("ghost", []byte(`{}`)); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestDecodeInvalidPayload(t *testing.T) {
	registry := newTestRegistry(t)
	if _, err := registry.Decode("orderPlaced", []byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHandlerForTypeMismatch(t *testing.T) {
	handler := HandlerFor(func(_ context.Context, _ orderPlaced) error { return nil })
	if err := handler.Handle(context.Background(), stockAdjusted{}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
