package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/protocol"
)

type ConnectionEvent struct {
	Status      entity.ConnectionStatus
	LocalPeerID string
	PeerID      string
	Err         error
}

type Option func(*Manager)

// WithOpenTimeout - bounds how long CreateRoom and JoinRoom wait for the identity and channel to open.
func WithOpenTimeout(timeout time.Duration) Option {
	return func(that *Manager) {
		that.openTimeout = timeout
	}
}

// Manager supervises one two-party link and turns its events into a status and message stream.
type Manager struct {
	logger      *slog.Logger
	network     Network
	openTimeout time.Duration

	mu          sync.Mutex
	status      entity.ConnectionStatus
	hostMode    bool
	node        Node
	channels    map[string]Channel
	generation  uint64
	cancel      context.CancelFunc
	queue       []func()
	dispatching bool

	connectionListeners listeners[ConnectionEvent]
	messageListeners    listeners[inbound]
}

type inbound struct {
	data   []byte
	peerID string
}

func NewManager(logger *slog.Logger, network Network, opts ...Option) *Manager {
	that := &Manager{
		logger:   logger.With("component", "peer-manager"),
		network:  network,
		status:   entity.StatusDisconnected,
		channels: make(map[string]Channel),
	}

	for _, opt := range opts {
		opt(that)
	}

	return that
}

// CreateRoom - claims roomID as the local identity and accepts incoming channels.
func (that *Manager) CreateRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return apperror.ErrRoomIDRequired
	}

	log := that.logger.With("method", "CreateRoom", "room_id", roomID)

	that.Disconnect()

	ctx, gen := that.begin(ctx, true)
	defer that.finish(gen)

	node, err := that.network.Open(ctx, roomID, that.nodeHandler(gen))
	if err != nil {
		return that.fail(ctx, gen, "failed to open room", err)
	}

	if !that.adopt(gen, node) {
		_ = node.Close()
		return fmt.Errorf("failed to open room: %w", apperror.ErrDisconnected)
	}

	log.Info("room opened")

	that.emit(gen, ConnectionEvent{Status: entity.StatusConnected, LocalPeerID: node.ID()})

	return nil
}

// JoinRoom - opens an anonymous identity and connects to the room host.
func (that *Manager) JoinRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return apperror.ErrRoomIDRequired
	}

	log := that.logger.With("method", "JoinRoom", "room_id", roomID)

	that.Disconnect()

	ctx, gen := that.begin(ctx, false)
	defer that.finish(gen)

	node, err := that.network.Open(ctx, "", that.nodeHandler(gen))
	if err != nil {
		return that.fail(ctx, gen, "failed to open peer", err)
	}

	if !that.adopt(gen, node) {
		_ = node.Close()
		return fmt.Errorf("failed to open peer: %w", apperror.ErrDisconnected)
	}

	channel, err := node.Connect(ctx, roomID)
	if err != nil {
		return that.fail(ctx, gen, "failed to connect to room", err)
	}

	if !that.registerChannel(gen, channel) {
		return fmt.Errorf("failed to connect to room: %w", apperror.ErrDisconnected)
	}

	log.Info("joined room", "local_peer_id", node.ID())

	that.emit(gen, ConnectionEvent{Status: entity.StatusConnected, LocalPeerID: node.ID(), PeerID: roomID})

	return nil
}

// Send - encodes msg and writes it to every open channel.
func (that *Manager) Send(msg protocol.Message) error {
	that.mu.Lock()
	channels := make([]Channel, 0, len(that.channels))
	for _, channel := range that.channels {
		channels = append(channels, channel)
	}
	that.mu.Unlock()

	if len(channels) == 0 {
		return apperror.ErrNotConnected
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	var errs []error

	for _, channel := range channels {
		if !channel.IsOpen() {
			continue
		}

		if err = channel.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("failed to send to %s: %w", channel.RemoteID(), err))
		}
	}

	return errors.Join(errs...)
}

// OnConnection - subscribes to status events. The current status is replayed to fn right away.
func (that *Manager) OnConnection(fn func(ConnectionEvent)) func() {
	unsubscribe := that.connectionListeners.add(fn)

	that.mu.Lock()
	current := ConnectionEvent{Status: that.status, LocalPeerID: that.localIDLocked()}
	that.queue = append(that.queue, func() { fn(current) })
	that.mu.Unlock()

	that.drain()

	return unsubscribe
}

// OnMessage - subscribes to raw data received from any channel.
func (that *Manager) OnMessage(fn func(data []byte, peerID string)) func() {
	return that.messageListeners.add(func(msg inbound) {
		fn(msg.data, msg.peerID)
	})
}

// Disconnect - closes every channel and the local identity. Safe to call at any time and more than once.
func (that *Manager) Disconnect() {
	that.mu.Lock()
	that.generation++

	cancel := that.cancel
	that.cancel = nil

	channels := that.channels
	that.channels = make(map[string]Channel)

	node := that.node
	that.node = nil

	that.setStatusLocked(ConnectionEvent{Status: entity.StatusDisconnected})
	that.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for _, channel := range channels {
		_ = channel.Close()
	}

	if node != nil {
		if err := node.Close(); err != nil {
			that.logger.Debug("failed to close node", "error", err)
		}
	}

	that.drain()
}

func (that *Manager) Status() entity.ConnectionStatus {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

func (that *Manager) IsHost() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.hostMode
}

// PeerID - the local identity, empty while none is open.
func (that *Manager) PeerID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.localIDLocked()
}

func (that *Manager) ConnectedPeerIDs() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	ids := make([]string, 0, len(that.channels))
	for id := range that.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// begin - starts a new connect attempt and moves to connecting.
func (that *Manager) begin(ctx context.Context, host bool) (context.Context, uint64) {
	var cancel context.CancelFunc
	if that.openTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, that.openTimeout, apperror.ErrConnectTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	that.mu.Lock()
	that.generation++
	gen := that.generation
	that.cancel = cancel
	that.hostMode = host
	that.setStatusLocked(ConnectionEvent{Status: entity.StatusConnecting})
	that.mu.Unlock()

	that.drain()

	return ctx, gen
}

// finish - releases the attempt context once the connect call returns.
func (that *Manager) finish(gen uint64) {
	that.mu.Lock()
	cancel := that.cancel
	if gen == that.generation {
		that.cancel = nil
	} else {
		cancel = nil
	}
	that.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// fail - reports a failed attempt. A retired attempt only reports ErrDisconnected.
func (that *Manager) fail(ctx context.Context, gen uint64, action string, err error) error {
	if !that.isCurrent(gen) {
		return fmt.Errorf("%s: %w", action, apperror.ErrDisconnected)
	}

	if errors.Is(context.Cause(ctx), apperror.ErrConnectTimeout) {
		err = apperror.ErrConnectTimeout
	}

	err = fmt.Errorf("%s: %w", action, err)

	that.logger.Warn("connect attempt failed", "error", err)

	that.mu.Lock()
	local := that.localIDLocked()
	that.mu.Unlock()

	that.emit(gen, ConnectionEvent{Status: entity.StatusError, LocalPeerID: local, Err: err})

	return err
}

func (that *Manager) adopt(gen uint64, node Node) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if gen != that.generation {
		return false
	}

	that.node = node

	return true
}

func (that *Manager) isCurrent(gen uint64) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return gen == that.generation
}

func (that *Manager) nodeHandler(gen uint64) NodeHandler {
	return NodeHandler{
		OnChannel: func(channel Channel) {
			if !that.registerChannel(gen, channel) {
				return
			}

			that.logger.Info("peer connected", "peer_id", channel.RemoteID())
		},
		OnError: func(err error) {
			that.mu.Lock()
			local := that.localIDLocked()
			that.mu.Unlock()

			that.emit(gen, ConnectionEvent{Status: entity.StatusError, LocalPeerID: local, Err: err})
		},
		OnClose: func() {
			that.mu.Lock()
			if gen != that.generation {
				that.mu.Unlock()
				return
			}

			that.channels = make(map[string]Channel)
			that.setStatusLocked(ConnectionEvent{Status: entity.StatusDisconnected})
			that.mu.Unlock()

			that.drain()
		},
	}
}

// registerChannel - tracks channel and reports it as connected. Channels of a retired attempt are closed.
func (that *Manager) registerChannel(gen uint64, channel Channel) bool {
	that.mu.Lock()
	if gen != that.generation {
		that.mu.Unlock()
		_ = channel.Close()

		return false
	}

	peerID := channel.RemoteID()
	previous := that.channels[peerID]
	that.channels[peerID] = channel
	that.mu.Unlock()

	if previous != nil && previous != channel {
		_ = previous.Close()
	}

	channel.SetHandler(ChannelHandler{
		OnData: func(data []byte) {
			that.mu.Lock()
			if gen != that.generation || that.channels[peerID] != channel {
				that.mu.Unlock()
				return
			}

			msg := inbound{data: data, peerID: peerID}
			that.queue = append(that.queue, func() { that.messageListeners.notify(msg) })
			that.mu.Unlock()

			that.drain()
		},
		OnClose: func() {
			that.mu.Lock()
			if gen != that.generation || that.channels[peerID] != channel {
				that.mu.Unlock()
				return
			}

			delete(that.channels, peerID)

			next := entity.StatusDisconnected
			if len(that.channels) > 0 || that.hostMode {
				next = entity.StatusConnected
			}

			that.setStatusLocked(ConnectionEvent{Status: next, LocalPeerID: that.localIDLocked(), PeerID: peerID})
			that.mu.Unlock()

			that.logger.Info("peer channel closed", "peer_id", peerID, "status", next)

			that.drain()
		},
		OnError: func(err error) {
			that.mu.Lock()
			local := that.localIDLocked()
			that.mu.Unlock()

			that.emit(gen, ConnectionEvent{Status: entity.StatusError, LocalPeerID: local, PeerID: peerID, Err: err})
		},
	})

	that.emit(gen, ConnectionEvent{Status: entity.StatusConnected, LocalPeerID: that.PeerID(), PeerID: peerID})

	return true
}

// emit - sets the status and notifies listeners unless the attempt is retired.
func (that *Manager) emit(gen uint64, event ConnectionEvent) {
	that.mu.Lock()
	if gen != that.generation {
		that.mu.Unlock()
		return
	}

	that.setStatusLocked(event)
	that.mu.Unlock()

	that.drain()
}

// setStatusLocked - must be called with mu held; the event is delivered by the next drain.
func (that *Manager) setStatusLocked(event ConnectionEvent) {
	that.status = event.Status
	that.queue = append(that.queue, func() { that.connectionListeners.notify(event) })
}

// drain - delivers queued events in order. Calls made while another drain runs return at once
// and leave their events to it, so listeners can call back into the manager.
func (that *Manager) drain() {
	that.mu.Lock()
	if that.dispatching {
		that.mu.Unlock()
		return
	}

	that.dispatching = true

	for len(that.queue) > 0 {
		next := that.queue[0]
		that.queue = that.queue[1:]
		that.mu.Unlock()

		next()

		that.mu.Lock()
	}

	that.dispatching = false
	that.mu.Unlock()
}

func (that *Manager) localIDLocked() string {
	if that.node == nil {
		return ""
	}

	return that.node.ID()
}
