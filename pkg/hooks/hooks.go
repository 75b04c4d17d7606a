// Package hooks provides typed observer lists for lifecycle notifications.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Handler observes one event. Returning an error aborts the emitting
// operation.
type Handler[T any] func(ctx context.Context, v T) error

// Event is an ordered list of handlers for one notification.
type Event[T any] struct {
	name     string
	mu       sync.RWMutex
	handlers []Handler[T]
}

// NewEvent returns an event identified by name in errors.
func NewEvent[T any](name string) *Event[T] {
	return &Event[T]{name: name}
}

// Name returns the event name.
func (e *Event[T]) Name() string {
	return e.name
}

// On appends h. Handlers run in registration order.
func (e *Event[T]) On(h Handler[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Len returns the number of registered handlers.
func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// Emit calls every handler in order and stops at the first error.
// Handlers registered while Emit runs are not called until the next Emit.
func (e *Event[T]) Emit(ctx context.Context, v T) error {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, v); err != nil {
			return fmt.Errorf("hook %s: %w", e.name, err)
		}
	}
	return nil
}

// EmitAll calls every handler in order even when some fail or ctx is
// done, and combines their errors. Teardown notifications use it.
func (e *Event[T]) EmitAll(ctx context.Context, v T) error {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	var errs error
	for _, h := range handlers {
		if err := h(ctx, v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("hook %s: %w", e.name, err))
		}
	}
	return errs
}
