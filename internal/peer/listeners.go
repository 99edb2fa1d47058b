package peer

import "sync"

type listener[T any] struct {
	id uint64
	fn func(T)
}

// listeners is a registry that keeps subscription order.
type listeners[T any] struct {
	mu    sync.Mutex
	next  uint64
	items []listener[T]
}

// add - registers fn and returns its unsubscribe func. Unsubscribing twice is a no-op.
func (that *listeners[T]) add(fn func(T)) func() {
	that.mu.Lock()
	that.next++
	id := that.next
	that.items = append(that.items, listener[T]{id: id, fn: fn})
	that.mu.Unlock()

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		for i, item := range that.items {
			if item.id == id {
				that.items = append(that.items[:i:i], that.items[i+1:]...)
				return
			}
		}
	}
}

func (that *listeners[T]) snapshot() []func(T) {
	that.mu.Lock()
	defer that.mu.Unlock()

	fns := make([]func(T), len(that.items))
	for i, item := range that.items {
		fns[i] = item.fn
	}

	return fns
}

func (that *listeners[T]) notify(value T) {
	for _, fn := range that.snapshot() {
		fn(value)
	}
}

func (that *listeners[T]) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.items)
}
