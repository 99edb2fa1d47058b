package peer_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
	"github.com/rocketscienceinc/arcade-backend/internal/peer/loopback"
	"github.com/rocketscienceinc/arcade-backend/internal/protocol"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []peer.ConnectionEvent
}

func (that *recorder) record(event peer.ConnectionEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, event)
}

func (that *recorder) statuses() []entity.ConnectionStatus {
	that.mu.Lock()
	defer that.mu.Unlock()

	statuses := make([]entity.ConnectionStatus, len(that.events))
	for i, event := range that.events {
		statuses[i] = event.Status
	}

	return statuses
}

func (that *recorder) last() peer.ConnectionEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.events) == 0 {
		return peer.ConnectionEvent{}
	}

	return that.events[len(that.events)-1]
}

type inbox struct {
	mu   sync.Mutex
	msgs []string
	from []string
}

func (that *inbox) record(data []byte, peerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.msgs = append(that.msgs, string(data))
	that.from = append(that.from, peerID)
}

func (that *inbox) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.msgs)
}

// connectedPair returns a host and a guest manager linked through a loopback hub.
func connectedPair(t *testing.T) (*loopback.Hub, *peer.Manager, *peer.Manager) {
	t.Helper()

	hub := loopback.NewHub()
	host := peer.NewManager(newLogger(), hub)
	guest := peer.NewManager(newLogger(), hub)

	t.Cleanup(func() {
		guest.Disconnect()
		host.Disconnect()
	})

	require.NoError(t, host.CreateRoom(context.Background(), "room-1"))
	require.NoError(t, guest.JoinRoom(context.Background(), "room-1"))

	require.Eventually(t, func() bool {
		return len(host.ConnectedPeerIDs()) == 1
	}, waitFor, tick)

	return hub, host, guest
}

func TestManager_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty room id is rejected before anything happens", func(t *testing.T) {
		// Given: a manager with a listener
		manager := peer.NewManager(newLogger(), loopback.NewHub())
		var events recorder
		manager.OnConnection(events.record)

		// When: creating a room without an id
		err := manager.CreateRoom(ctx, "")

		// Then: it fails and only the replayed status was seen
		require.ErrorIs(t, err, apperror.ErrRoomIDRequired)
		assert.Equal(t, []entity.ConnectionStatus{entity.StatusDisconnected}, events.statuses())
		assert.Equal(t, entity.StatusDisconnected, manager.Status())
	})

	t.Run("Host goes through connecting to connected", func(t *testing.T) {
		manager := peer.NewManager(newLogger(), loopback.NewHub())
		var events recorder
		manager.OnConnection(events.record)

		require.NoError(t, manager.CreateRoom(ctx, "room-1"))
		defer manager.Disconnect()

		assert.Equal(t, []entity.ConnectionStatus{
			entity.StatusDisconnected,
			entity.StatusDisconnected,
			entity.StatusConnecting,
			entity.StatusConnected,
		}, events.statuses())
		assert.Equal(t, "room-1", events.last().LocalPeerID)
		assert.Equal(t, "room-1", manager.PeerID())
		assert.True(t, manager.IsHost())
	})

	t.Run("Taken room id ends in error", func(t *testing.T) {
		hub := loopback.NewHub()
		first := peer.NewManager(newLogger(), hub)
		require.NoError(t, first.CreateRoom(ctx, "room-1"))
		defer first.Disconnect()

		second := peer.NewManager(newLogger(), hub)
		var events recorder
		second.OnConnection(events.record)

		err := second.CreateRoom(ctx, "room-1")

		require.ErrorIs(t, err, apperror.ErrRoomTaken)
		assert.Equal(t, entity.StatusError, second.Status())
		require.ErrorIs(t, events.last().Err, apperror.ErrRoomTaken)
	})

	t.Run("Open timeout ends in error", func(t *testing.T) {
		// Given: a network slower than the open timeout
		hub := loopback.NewHub(loopback.WithLatency(time.Second))
		manager := peer.NewManager(newLogger(), hub, peer.WithOpenTimeout(20*time.Millisecond))

		// When: creating a room
		err := manager.CreateRoom(ctx, "room-1")

		// Then: the attempt times out
		require.ErrorIs(t, err, apperror.ErrConnectTimeout)
		assert.Equal(t, entity.StatusError, manager.Status())
	})
}

func TestManager_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Guest and host see each other", func(t *testing.T) {
		_, host, guest := connectedPair(t)

		assert.Equal(t, entity.StatusConnected, host.Status())
		assert.Equal(t, entity.StatusConnected, guest.Status())
		assert.False(t, guest.IsHost())
		assert.Equal(t, []string{"room-1"}, guest.ConnectedPeerIDs())
		assert.Equal(t, []string{guest.PeerID()}, host.ConnectedPeerIDs())
	})

	t.Run("Guest reports the room as its peer", func(t *testing.T) {
		hub := loopback.NewHub()
		host := peer.NewManager(newLogger(), hub)
		require.NoError(t, host.CreateRoom(ctx, "room-1"))
		defer host.Disconnect()

		guest := peer.NewManager(newLogger(), hub)
		var events recorder
		guest.OnConnection(events.record)

		require.NoError(t, guest.JoinRoom(ctx, "room-1"))
		defer guest.Disconnect()

		last := events.last()
		assert.Equal(t, entity.StatusConnected, last.Status)
		assert.Equal(t, "room-1", last.PeerID)
		assert.Equal(t, guest.PeerID(), last.LocalPeerID)
	})

	t.Run("Missing room ends in error", func(t *testing.T) {
		manager := peer.NewManager(newLogger(), loopback.NewHub())
		defer manager.Disconnect()

		err := manager.JoinRoom(ctx, "nobody")

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, entity.StatusError, manager.Status())
	})

	t.Run("Empty room id is rejected", func(t *testing.T) {
		manager := peer.NewManager(newLogger(), loopback.NewHub())

		require.ErrorIs(t, manager.JoinRoom(ctx, ""), apperror.ErrRoomIDRequired)
	})

	t.Run("Disconnect cancels an in-flight join", func(t *testing.T) {
		// Given: a join stuck on a slow network
		hub := loopback.NewHub(loopback.WithLatency(time.Minute))
		manager := peer.NewManager(newLogger(), hub)

		result := make(chan error, 1)
		go func() {
			result <- manager.JoinRoom(ctx, "room-1")
		}()

		require.Eventually(t, func() bool {
			return manager.Status() == entity.StatusConnecting
		}, waitFor, tick)

		// When: disconnecting mid-flight
		manager.Disconnect()

		// Then: the join fails as disconnected and the status stays disconnected
		select {
		case err := <-result:
			require.ErrorIs(t, err, apperror.ErrDisconnected)
		case <-time.After(waitFor):
			t.Fatal("join did not return after disconnect")
		}

		assert.Equal(t, entity.StatusDisconnected, manager.Status())
	})
}

func TestManager_Send(t *testing.T) {
	t.Run("Without channels it is a misuse", func(t *testing.T) {
		manager := peer.NewManager(newLogger(), loopback.NewHub())

		err := manager.Send(protocol.GameEvent{Name: protocol.EventReset})

		require.ErrorIs(t, err, apperror.ErrNotConnected)
	})

	t.Run("Malformed messages are refused", func(t *testing.T) {
		_, host, _ := connectedPair(t)

		err := host.Send(protocol.PlayerInput{PlayerID: 1, Timestamp: math.NaN()})

		require.ErrorIs(t, err, apperror.ErrInvalidMessage)
	})

	t.Run("Messages arrive in order with the sender id", func(t *testing.T) {
		// Given: a connected pair with a message listener on the host
		_, host, guest := connectedPair(t)
		var received inbox
		host.OnMessage(received.record)

		// When: the guest sends a burst of inputs
		for i := 0; i < 50; i++ {
			require.NoError(t, guest.Send(protocol.PlayerInput{PlayerID: 1, Timestamp: float64(i)}))
		}

		// Then: they arrive in send order tagged with the guest id
		require.Eventually(t, func() bool { return received.count() == 50 }, waitFor, tick)

		received.mu.Lock()
		defer received.mu.Unlock()

		for i, raw := range received.msgs {
			msg, err := protocol.Decode([]byte(raw))
			require.NoError(t, err)
			assert.InDelta(t, float64(i), msg.SentAt(), 1e-9)
			assert.Equal(t, guest.PeerID(), received.from[i])
		}
	})

	t.Run("Unsubscribed listeners stop receiving", func(t *testing.T) {
		_, host, guest := connectedPair(t)
		var kept, dropped inbox
		host.OnMessage(kept.record)
		unsubscribe := host.OnMessage(dropped.record)
		unsubscribe()
		unsubscribe()

		require.NoError(t, guest.Send(protocol.GameEvent{Name: protocol.EventServe}))

		require.Eventually(t, func() bool { return kept.count() == 1 }, waitFor, tick)
		assert.Equal(t, 0, dropped.count())
	})
}

func TestManager_OnConnection(t *testing.T) {
	t.Run("Late subscribers get the current status", func(t *testing.T) {
		_, host, _ := connectedPair(t)

		var events recorder
		host.OnConnection(events.record)

		assert.Equal(t, []entity.ConnectionStatus{entity.StatusConnected}, events.statuses())
		assert.Equal(t, "room-1", events.last().LocalPeerID)
	})

	t.Run("Listeners may call back into the manager", func(t *testing.T) {
		// Given: a listener that reads status and disconnects on error
		manager := peer.NewManager(newLogger(), loopback.NewHub())
		var seen []entity.ConnectionStatus
		manager.OnConnection(func(event peer.ConnectionEvent) {
			seen = append(seen, manager.Status())
			if event.Status == entity.StatusError {
				manager.Disconnect()
			}
		})

		// When: a join fails
		err := manager.JoinRoom(context.Background(), "nobody")

		// Then: the nested disconnect is delivered after the error, without deadlock
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, entity.StatusDisconnected, manager.Status())
		assert.NotEmpty(t, seen)
	})
}

func TestManager_Disconnect(t *testing.T) {
	t.Run("Is idempotent and always reports disconnected", func(t *testing.T) {
		manager := peer.NewManager(newLogger(), loopback.NewHub())
		var events recorder
		manager.OnConnection(events.record)

		manager.Disconnect()
		manager.Disconnect()

		assert.Equal(t, []entity.ConnectionStatus{
			entity.StatusDisconnected,
			entity.StatusDisconnected,
			entity.StatusDisconnected,
		}, events.statuses())
		assert.Empty(t, manager.PeerID())
	})

	t.Run("Guest leaving keeps the host connected", func(t *testing.T) {
		// Given: a connected pair
		_, host, guest := connectedPair(t)
		guestID := guest.PeerID()
		var events recorder
		host.OnConnection(events.record)

		// When: the guest disconnects
		guest.Disconnect()

		// Then: the host stays connected without peers and the event names the guest
		require.Eventually(t, func() bool { return events.last().PeerID == guestID }, waitFor, tick)

		assert.Equal(t, entity.StatusConnected, events.last().Status)
		assert.Equal(t, entity.StatusConnected, host.Status())
		assert.Empty(t, host.ConnectedPeerIDs())
	})

	t.Run("Host leaving disconnects the guest", func(t *testing.T) {
		_, host, guest := connectedPair(t)

		host.Disconnect()

		require.Eventually(t, func() bool { return guest.Status() == entity.StatusDisconnected }, waitFor, tick)
		assert.Empty(t, guest.ConnectedPeerIDs())
	})

	t.Run("Network dropping the node disconnects", func(t *testing.T) {
		hub, host, _ := connectedPair(t)

		hub.Kick("room-1")

		require.Eventually(t, func() bool { return host.Status() == entity.StatusDisconnected }, waitFor, tick)
	})

	t.Run("Node errors surface as error status", func(t *testing.T) {
		hub, host, _ := connectedPair(t)
		var events recorder
		host.OnConnection(events.record)

		hub.Fail("room-1", io.ErrUnexpectedEOF)

		assert.Equal(t, entity.StatusError, host.Status())
		require.ErrorIs(t, events.last().Err, io.ErrUnexpectedEOF)
	})
}
