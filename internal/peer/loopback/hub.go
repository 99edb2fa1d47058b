// Package loopback is an in-process peer.Network for tests and same-process play.
package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
)

type Option func(*Hub)

// WithLatency - delays every Open and Connect, honoring context cancellation.
func WithLatency(latency time.Duration) Option {
	return func(that *Hub) {
		that.latency = latency
	}
}

// Hub routes channels between the nodes opened on it.
type Hub struct {
	latency time.Duration

	mu    sync.Mutex
	nodes map[string]*node
}

func NewHub(opts ...Option) *Hub {
	that := &Hub{
		nodes: make(map[string]*node),
	}

	for _, opt := range opts {
		opt(that)
	}

	return that
}

func (that *Hub) Open(ctx context.Context, id string, handler peer.NodeHandler) (peer.Node, error) {
	if err := that.wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to open node: %w", err)
	}

	if id == "" {
		id = uuid.NewString()
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.nodes[id]; ok {
		return nil, fmt.Errorf("failed to claim %q: %w", id, apperror.ErrRoomTaken)
	}

	n := &node{
		id:       id,
		hub:      that,
		handler:  handler,
		channels: make(map[*channel]struct{}),
	}
	that.nodes[id] = n

	return n, nil
}

// Has - reports whether id is currently claimed.
func (that *Hub) Has(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.nodes[id]

	return ok
}

// Kick - closes a node from the network side, as if the signaling server dropped it.
func (that *Hub) Kick(id string) {
	that.mu.Lock()
	n := that.nodes[id]
	that.mu.Unlock()

	if n != nil {
		n.shutdown(true)
	}
}

// Fail - raises a node level error.
func (that *Hub) Fail(id string, err error) {
	that.mu.Lock()
	n := that.nodes[id]
	that.mu.Unlock()

	if n != nil {
		n.handler.HandleError(err)
	}
}

func (that *Hub) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if that.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(that.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (that *Hub) release(n *node) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.nodes[n.id] == n {
		delete(that.nodes, n.id)
	}
}

type node struct {
	id      string
	hub     *Hub
	handler peer.NodeHandler

	mu       sync.Mutex
	closed   bool
	channels map[*channel]struct{}
}

func (that *node) ID() string {
	return that.id
}

func (that *node) Connect(ctx context.Context, remoteID string) (peer.Channel, error) {
	if err := that.hub.wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, err)
	}

	that.hub.mu.Lock()
	remote, ok := that.hub.nodes[remoteID]
	that.hub.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, apperror.ErrRoomNotFound)
	}

	local, far := newPair(that.id, remoteID)

	if !that.track(local) {
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, apperror.ErrDisconnected)
	}

	if !remote.track(far) {
		_ = local.Close()
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, apperror.ErrRoomNotFound)
	}

	remote.handler.HandleChannel(far)

	return local, nil
}

func (that *node) Close() error {
	that.shutdown(false)

	return nil
}

// shutdown - closes the node and its channels. Only a network side close is reported to the handler.
func (that *node) shutdown(notify bool) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}

	that.closed = true
	channels := that.channels
	that.channels = nil
	that.mu.Unlock()

	that.hub.release(that)

	for ch := range channels {
		_ = ch.Close()
	}

	if notify {
		that.handler.HandleClose()
	}
}

func (that *node) track(ch *channel) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	that.channels[ch] = struct{}{}

	return true
}
