package peer

import "sync"

// Inbox holds channel events until a handler is attached and then delivers them
// in order from a single goroutine. Nothing is delivered after a close.
type Inbox struct {
	mu      sync.Mutex
	handler ChannelHandler
	ready   bool
	running bool
	closed  bool
	queue   []func(ChannelHandler)
}

func (that *Inbox) SetHandler(handler ChannelHandler) {
	that.mu.Lock()
	that.handler = handler
	that.ready = true
	that.mu.Unlock()

	that.kick()
}

func (that *Inbox) PushData(data []byte) {
	that.push(func(handler ChannelHandler) {
		handler.HandleData(data)
	}, false)
}

func (that *Inbox) PushError(err error) {
	that.push(func(handler ChannelHandler) {
		handler.HandleError(err)
	}, false)
}

func (that *Inbox) PushClose() {
	that.push(func(handler ChannelHandler) {
		handler.HandleClose()
	}, true)
}

func (that *Inbox) push(event func(ChannelHandler), closing bool) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}

	that.closed = closing
	that.queue = append(that.queue, event)
	that.mu.Unlock()

	that.kick()
}

func (that *Inbox) kick() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.ready || that.running || len(that.queue) == 0 {
		return
	}

	that.running = true
	go that.run()
}

func (that *Inbox) run() {
	for {
		that.mu.Lock()
		if len(that.queue) == 0 {
			that.running = false
			that.mu.Unlock()
			return
		}

		event := that.queue[0]
		that.queue = that.queue[1:]
		handler := that.handler
		that.mu.Unlock()

		event(handler)
	}
}
