package bus

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// QueueNamer declares the ordering queue for a message type. Message types
// without it fall back to their own type name.
type QueueNamer interface {
	// QueueName returns the queue the message type belongs to.
	QueueName() string
}

// TypeNamer overrides the stable type tag stored on envelopes. Use it when
// the Go type name is not a safe persistent identifier (e.g. it may be
// renamed while envelopes for it are still in flight).
type TypeNamer interface {
	// MessageType returns the stable type tag for the message type.
	MessageType() string
}

type registration struct {
	name      string
	queue     string
	decode    func([]byte) (any, error)
	factories []HandlerFactory
}

// Registry maps message types to their queue, payload codec and handler
// factories. It is built once at startup; Resolve on an unknown type returns
// no factories, which is a valid no-op.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*registration
	byType map[reflect.Type]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*registration),
		byType: make(map[reflect.Type]*registration),
	}
}

// RegisterOption configures a message type registration.
type RegisterOption func(*registration)

// WithQueue overrides the queue name for the message type.
func WithQueue(name string) RegisterOption {
	return func(r *registration) {
		r.queue = name
	}
}

// WithMessageType overrides the stable type tag for the message type.
func WithMessageType(name string) RegisterOption {
	return func(r *registration) {
		r.name = name
	}
}

// Register binds message type T to the registry so it can be published and
// dispatched. The type tag defaults to T's type name (or T's MessageType
// method); the queue defaults to the type tag (or T's QueueName method).
// Registering the same type or tag twice returns ErrDuplicateMessageType.
func Register[T any](r *Registry, opts ...RegisterOption) error {
	rt := reflect.TypeOf((*T)(nil)).Elem()

	var zero T
	reg := &registration{
		name: rt.Name(),
		decode: func(payload []byte) (any, error) {
			var msg T
			if err := json.Unmarshal(payload, &msg); err != nil {
				return nil, fmt.Errorf("bus: decode payload: %w", err)
			}

			return msg, nil
		},
	}
	if named, ok := any(zero).(TypeNamer); ok {
		reg.name = named.MessageType()
	}
	if queued, ok := any(zero).(QueueNamer); ok {
		reg.queue = queued.QueueName()
	}

	for _, opt := range opts {
		opt(reg)
	}
	if reg.queue == "" {
		reg.queue = reg.name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[rt]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMessageType, rt)
	}
	if _, exists := r.byName[reg.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMessageType, reg.name)
	}
	r.byType[rt] = reg
	r.byName[reg.name] = reg

	return nil
}

// MustRegister is Register but panics on error. Intended for package-level
// startup wiring.
func MustRegister[T any](r *Registry, opts ...RegisterOption) {
	if err := Register[T](r, opts...); err != nil {
		panic(err)
	}
}

// Subscribe appends a handler factory for message type T. T must already be
// registered.
func Subscribe[T any](r *Registry, factory HandlerFactory) error {
	rt := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byType[rt]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, rt)
	}
	reg.factories = append(reg.factories, factory)

	return nil
}

// MustSubscribe is Subscribe but panics on error.
func MustSubscribe[T any](r *Registry, factory HandlerFactory) {
	if err := Subscribe[T](r, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the handler factories registered for a message type tag.
// Unknown tags resolve to an empty set.
func (r *Registry) Resolve(messageType string) []HandlerFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.byName[messageType]
	if !ok {
		return nil
	}
	factories := make([]HandlerFactory, len(reg.factories))
	copy(factories, reg.factories)

	return factories
}

// Decode reconstructs the typed message for a stored payload.
func (r *Registry) Decode(messageType string, payload []byte) (any, error) {
	r.mu.RLock()
	reg, ok := r.byName[messageType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, messageType)
	}

	return reg.decode(payload)
}

// registrationFor resolves the registration for a published message value.
func (r *Registry) registrationFor(msg any) (*registration, error) {
	rt := reflect.TypeOf(msg)

	r.mu.RLock()
	reg, ok := r.byType[rt]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, rt)
	}

	return reg, nil
}
