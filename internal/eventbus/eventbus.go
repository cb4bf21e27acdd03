package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

// Bus is a small in-process dispatcher keyed by the event's dynamic type.
// Publishing with no subscribers is free; handlers run synchronously on the
// publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]func(context.Context, any)
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(context.Context, any))}
}

func (b *Bus) add(t reflect.Type, h func(context.Context, any)) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

func (b *Bus) emit(ctx context.Context, e any) {
	t := reflect.TypeOf(e)
	b.mu.RLock()
	hs := append(([]func(context.Context, any))(nil), b.handlers[t]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h with the global bus. A handler registered before
// Use keeps working after the bus is swapped only if re-registered.
func Subscribe[T any](h Handler[T]) {
	b := global.Load()
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.add(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Publish sends e through the global bus.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
