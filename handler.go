package bus

import (
	"context"
	"fmt"
)

// Handler processes a single delivered message. The context carries the
// processor's shutdown signal; long-running handlers should honor it.
type Handler interface {
	// Handle processes one message and returns an error on failure.
	Handle(ctx context.Context, msg any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg any) error

// Handle implements Handler.
func (fn HandlerFunc) Handle(ctx context.Context, msg any) error {
	return fn(ctx, msg)
}

// HandlerFor adapts a typed function to Handler. A message of any other type
// fails the attempt.
func HandlerFor[T any](fn func(ctx context.Context, msg T) error) Handler {
	return HandlerFunc(func(ctx context.Context, msg any) error {
		typed, ok := msg.(T)
		if !ok {
			return fmt.Errorf("bus: handler expects %T, got %T", typed, msg)
		}

		return fn(ctx, typed)
	})
}

// HandlerFactory constructs a handler instance bound to the dispatch scope of
// one envelope attempt. The factory is invoked once per attempt so handlers
// can carry per-attempt state resolved from the scope.
type HandlerFactory func(scope Scope) (Handler, error)

// FactoryOf wraps a ready handler into a factory that ignores the scope.
func FactoryOf(h Handler) HandlerFactory {
	return func(Scope) (Handler, error) {
		return h, nil
	}
}
