// Package session glues a game engine, the state synchronizer and the peer connection manager together.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
	"github.com/rocketscienceinc/arcade-backend/internal/protocol"
	"github.com/rocketscienceinc/arcade-backend/internal/statesync"
)

type Mode string

const (
	ModeHost  Mode = "host"
	ModeGuest Mode = "guest"
)

func (that Mode) IsValid() bool {
	return that == ModeHost || that == ModeGuest
}

const (
	defaultPlayerName = "Player"
	remoteNameLength  = 6
)

type connection interface {
	CreateRoom(ctx context.Context, roomID string) error
	JoinRoom(ctx context.Context, roomID string) error
	Send(msg protocol.Message) error
	OnConnection(fn func(peer.ConnectionEvent)) func()
	OnMessage(fn func(data []byte, peerID string)) func()
	Disconnect()
	ConnectedPeerIDs() []string
}

type Config struct {
	Mode       Mode
	RoomID     string
	PlayerName string
}

type Option func(*options)

type options struct {
	clock statesync.Clock
}

// WithClock - replaces the millisecond clock used to stamp outgoing state.
func WithClock(clock statesync.Clock) Option {
	return func(that *options) {
		that.clock = clock
	}
}

// Session is one participant's view of a match: who is in the room, the connection
// status and the latest local and remote versions of the game state S.
type Session[S any] struct {
	logger *slog.Logger
	conn   connection
	sync   *statesync.Synchronizer[S]
	clock  statesync.Clock

	mode   Mode
	roomID string
	name   string

	mu      sync.Mutex
	status  entity.ConnectionStatus
	players []entity.Player

	inputHandlers hooks[protocol.PlayerInput]
	eventHandlers hooks[protocol.GameEvent]

	unsubscribe []func()
	closeOnce   sync.Once
}

// New - subscribes to conn right away; call Close to let go of it.
func New[S any](logger *slog.Logger, conn connection, cfg Config, opts ...Option) *Session[S] {
	o := options{clock: statesync.Now}
	for _, opt := range opts {
		opt(&o)
	}

	mode := cfg.Mode
	if !mode.IsValid() {
		mode = ModeGuest
	}

	name := cfg.PlayerName
	if name == "" {
		name = defaultPlayerName
	}

	that := &Session[S]{
		logger: logger.With("component", "session", "mode", string(mode)),
		conn:   conn,
		sync:   statesync.New[S](statesync.WithClock(o.clock)),
		clock:  o.clock,
		mode:   mode,
		roomID: cfg.RoomID,
		name:   name,
		status: entity.StatusDisconnected,
	}

	that.unsubscribe = append(that.unsubscribe,
		conn.OnConnection(that.handleConnection),
		conn.OnMessage(that.handleMessage),
	)

	return that
}

// Connect - host creates the room, guest joins it. A failure leaves the status at error.
func (that *Session[S]) Connect(ctx context.Context) error {
	if that.roomID == "" {
		return apperror.ErrRoomIDRequired
	}

	var err error
	if that.mode == ModeHost {
		err = that.conn.CreateRoom(ctx, that.roomID)
	} else {
		err = that.conn.JoinRoom(ctx, that.roomID)
	}

	if err != nil {
		that.mu.Lock()
		that.status = entity.StatusError
		that.mu.Unlock()

		return fmt.Errorf("failed to connect to room %s: %w", that.roomID, err)
	}

	return nil
}

func (that *Session[S]) SendMessage(msg protocol.Message) error {
	if msg == nil {
		return fmt.Errorf("failed to send message: %w", apperror.ErrInvalidMessage)
	}

	if err := that.conn.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// SyncState - stamps state, records it as the latest local version and sends it to the peer.
// The versioned state is returned even when sending fails.
func (that *Session[S]) SyncState(state S) (statesync.VersionedState[S], error) {
	versioned := that.sync.SyncState(state)

	raw, err := json.Marshal(versioned.State)
	if err != nil {
		return versioned, fmt.Errorf("failed to marshal state: %w", err)
	}

	err = that.SendMessage(protocol.StateSync{State: raw, Timestamp: versioned.Timestamp})

	return versioned, err
}

// Reconcile - settles local against the latest remote state. Without a remote state local is kept.
func (that *Session[S]) Reconcile(local statesync.VersionedState[S]) (statesync.VersionedState[S], bool) {
	remote, ok := that.sync.LatestRemote()
	if !ok {
		return local, false
	}

	return that.sync.Reconcile(local, remote), true
}

func (that *Session[S]) LatestRemoteState() (statesync.VersionedState[S], bool) {
	return that.sync.LatestRemote()
}

func (that *Session[S]) LatestLocalState() (statesync.VersionedState[S], bool) {
	return that.sync.LatestLocal()
}

// Now - the clock used for outgoing messages, in milliseconds.
func (that *Session[S]) Now() float64 {
	return that.clock()
}

func (that *Session[S]) OnInput(fn func(protocol.PlayerInput)) func() {
	return that.inputHandlers.add(fn)
}

func (that *Session[S]) OnEvent(fn func(protocol.GameEvent)) func() {
	return that.eventHandlers.add(fn)
}

func (that *Session[S]) Players() []entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	players := make([]entity.Player, len(that.players))
	copy(players, that.players)

	return players
}

func (that *Session[S]) Status() entity.ConnectionStatus {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

func (that *Session[S]) IsConnected() bool {
	return that.Status().IsConnected()
}

func (that *Session[S]) IsHost() bool {
	return that.mode == ModeHost
}

func (that *Session[S]) Mode() Mode {
	return that.mode
}

// Close - unsubscribes, disconnects and forgets the players.
func (that *Session[S]) Close() {
	that.closeOnce.Do(func() {
		for _, unsubscribe := range that.unsubscribe {
			unsubscribe()
		}

		that.conn.Disconnect()

		that.mu.Lock()
		that.players = nil
		that.status = entity.StatusDisconnected
		that.mu.Unlock()
	})
}

func (that *Session[S]) handleConnection(event peer.ConnectionEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.status = event.Status

	if event.LocalPeerID != "" {
		that.upsertLocked(entity.Player{
			ID:     event.LocalPeerID,
			Name:   that.name,
			IsHost: that.mode == ModeHost,
			Ready:  true,
		})
	}

	if event.PeerID == "" {
		return
	}

	switch event.Status {
	case entity.StatusConnected:
		// a host stays connected when its guest leaves; the event then names a peer that is gone
		if !that.isLinked(event.PeerID) {
			that.removeLocked(event.PeerID)
			return
		}

		that.upsertLocked(entity.Player{
			ID:     event.PeerID,
			Name:   remoteName(event.PeerID),
			IsHost: that.mode != ModeHost,
			Ready:  true,
		})
	case entity.StatusDisconnected:
		that.removeLocked(event.PeerID)
	}
}

func (that *Session[S]) handleMessage(data []byte, peerID string) {
	log := that.logger.With("method", "handleMessage", "peer_id", peerID)

	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug("dropping invalid message", "error", err)
		return
	}

	switch typed := msg.(type) {
	case protocol.StateSync:
		var state S
		if err = json.Unmarshal(typed.State, &state); err != nil {
			log.Debug("dropping undecodable state", "error", err)
			return
		}

		if _, err = that.sync.ReceiveState(statesync.VersionedState[S]{State: state, Timestamp: typed.Timestamp}); err != nil {
			log.Debug("dropping state", "error", err)
		}
	case protocol.PlayerInput:
		that.inputHandlers.notify(typed)
	case protocol.GameEvent:
		that.eventHandlers.notify(typed)
	}
}

func (that *Session[S]) isLinked(peerID string) bool {
	for _, id := range that.conn.ConnectedPeerIDs() {
		if id == peerID {
			return true
		}
	}

	return false
}

func (that *Session[S]) upsertLocked(player entity.Player) {
	for i := range that.players {
		if that.players[i].ID == player.ID {
			that.players[i] = player
			return
		}
	}

	that.players = append(that.players, player)
}

func (that *Session[S]) removeLocked(playerID string) {
	for i := range that.players {
		if that.players[i].ID == playerID {
			that.players = append(that.players[:i:i], that.players[i+1:]...)
			return
		}
	}
}

func remoteName(peerID string) string {
	runes := []rune(peerID)
	if len(runes) > remoteNameLength {
		runes = runes[:remoteNameLength]
	}

	return "Player-" + string(runes)
}
