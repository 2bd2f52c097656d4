package bus

import "context"

// Scope is the isolated execution context constructed for one envelope
// dispatch attempt. All handlers of that attempt share the same scope; it is
// closed before the next envelope is claimed, so no state leaks across
// envelopes, attempts, or queues. The concrete type is owned by the host
// (typically a service-resolution scope or unit of work); handler factories
// assert it to what they need.
type Scope interface {
	// Close tears the scope down after the attempt.
	Close() error
}

// ScopeFactory creates one Scope per envelope dispatch attempt.
type ScopeFactory interface {
	// NewScope returns a fresh scope for a single dispatch attempt.
	NewScope(ctx context.Context) (Scope, error)
}

// ScopeFactoryFunc adapts a function to ScopeFactory.
type ScopeFactoryFunc func(ctx context.Context) (Scope, error)

// NewScope implements ScopeFactory.
func (fn ScopeFactoryFunc) NewScope(ctx context.Context) (Scope, error) {
	return fn(ctx)
}

// NopScope is a scope with no resources.
type NopScope struct{}

// Close implements Scope.
func (NopScope) Close() error {
	return nil
}

// NopScopeFactory produces NopScope instances. It is the default when the
// host does not wire a service-resolution scope.
type NopScopeFactory struct{}

// NewScope implements ScopeFactory.
func (NopScopeFactory) NewScope(context.Context) (Scope, error) {
	return NopScope{}, nil
}
