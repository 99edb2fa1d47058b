package session

import "sync"

// hooks is a set of callbacks invoked in subscription order.
type hooks[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
	ids  []int
}

func (that *hooks[T]) add(fn func(T)) func() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.fns == nil {
		that.fns = make(map[int]func(T))
	}

	that.next++
	id := that.next
	that.fns[id] = fn
	that.ids = append(that.ids, id)

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.fns, id)
	}
}

func (that *hooks[T]) notify(value T) {
	that.mu.Lock()
	fns := make([]func(T), 0, len(that.fns))
	live := that.ids[:0]
	for _, id := range that.ids {
		if fn, ok := that.fns[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	that.ids = live
	that.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
