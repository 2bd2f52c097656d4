package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Bus is the publish side of the message bus. Broadcast returns once the
// envelope is durably stored; processing happens asynchronously.
type Bus struct {
	writer   Writer
	registry *Registry
	cfg      BusConfig
}

// NewBus constructs a Bus with defaults and optional settings.
func NewBus(writer Writer, registry *Registry, opts ...BusOption) *Bus {
	if writer == nil {
		panic("bus: nil Writer")
	}
	if registry == nil {
		panic("bus: nil Registry")
	}

	var cfg BusConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Bus{
		writer:   writer,
		registry: registry,
		cfg:      cfg,
	}
}

// Broadcast publishes a registered message for immediate processing.
func (b *Bus) Broadcast(ctx context.Context, msg any) (ID, error) {
	return b.publish(ctx, msg, 0)
}

// BroadcastDelayed publishes a registered message that must not be attempted
// before now+delay. A zero delay behaves like Broadcast.
func (b *Bus) BroadcastDelayed(ctx context.Context, msg any, delay time.Duration) (ID, error) {
	return b.publish(ctx, msg, delay)
}

func (b *Bus) publish(ctx context.Context, msg any, delay time.Duration) (ID, error) {
	if delay < 0 {
		return ID{}, ErrNegativeDelay
	}

	reg, err := b.registry.registrationFor(msg)
	if err != nil {
		return ID{}, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return ID{}, fmt.Errorf("bus: encode %s payload: %w", reg.name, err)
	}

	id, err := b.cfg.Generator.New()
	if err != nil {
		return ID{}, fmt.Errorf("bus: generate id: %w", err)
	}

	now := b.cfg.Clock.Now()
	env := Envelope{
		ID:          id,
		Queue:       reg.queue,
		MessageType: reg.name,
		Payload:     payload,
		CreatedAt:   now,
		MaxAttempts: b.cfg.MaxAttempts,
		Status:      StatusPending,
	}
	if delay > 0 {
		at := now.Add(delay)
		env.NextAttemptAt = &at
	}

	if err := b.writer.Insert(ctx, env); err != nil {
		return ID{}, fmt.Errorf("bus: insert envelope: %w", err)
	}

	return id, nil
}
