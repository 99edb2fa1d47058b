package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
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
	"github.com/rocketscienceinc/arcade-backend/internal/statesync"
	"github.com/rocketscienceinc/arcade-backend/internal/tennis"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
	roomID  = "room-1"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// connectedSessions - a host and a guest session linked through an in-process hub.
func connectedSessions(t *testing.T, hostOpts ...Option) (*Session[tennis.GameState], *Session[tennis.GameState]) {
	t.Helper()

	hub := loopback.NewHub()
	ctx := context.Background()

	host := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), hub), Config{Mode: ModeHost, RoomID: roomID, PlayerName: "Alice"}, hostOpts...)
	guest := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), hub), Config{Mode: ModeGuest, RoomID: roomID, PlayerName: "Bob"})
	t.Cleanup(func() {
		guest.Close()
		host.Close()
	})

	require.NoError(t, host.Connect(ctx))
	require.NoError(t, guest.Connect(ctx))

	require.Eventually(t, func() bool {
		return len(host.Players()) == 2 && len(guest.Players()) == 2
	}, waitFor, tick)

	return host, guest
}

func tennisVersion(timestamp float64, score int) statesync.VersionedState[tennis.GameState] {
	state := tennis.NewEngine().State()
	state.Scores = [2]int{score, score}

	return statesync.VersionedState[tennis.GameState]{State: state, Timestamp: timestamp}
}

func findPlayer(players []entity.Player, id string) (entity.Player, bool) {
	for _, player := range players {
		if player.ID == id {
			return player, true
		}
	}

	return entity.Player{}, false
}

func TestSession_Connect(t *testing.T) {
	t.Run("Requires a room id", func(t *testing.T) {
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: ModeHost})
		t.Cleanup(session.Close)

		err := session.Connect(context.Background())

		require.ErrorIs(t, err, apperror.ErrRoomIDRequired)
		assert.Equal(t, entity.StatusDisconnected, session.Status())
	})

	t.Run("Joining a missing room leaves the status at error", func(t *testing.T) {
		// Given: a guest pointed at a room nobody hosts
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: ModeGuest, RoomID: "nobody"})
		t.Cleanup(session.Close)

		// When: connecting
		err := session.Connect(context.Background())

		// Then: the error surfaces and the status says so
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, entity.StatusError, session.Status())
		assert.False(t, session.IsConnected())
	})

	t.Run("Unknown mode falls back to guest", func(t *testing.T) {
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: "spectator"})
		t.Cleanup(session.Close)

		assert.Equal(t, ModeGuest, session.Mode())
		assert.False(t, session.IsHost())
	})
}

func TestSession_Players(t *testing.T) {
	t.Run("Both sides list themselves and the other", func(t *testing.T) {
		// When: a host and a guest connect
		host, guest := connectedSessions(t)

		// Then: the host lists itself by name and the guest by its id prefix
		hostSelf, ok := findPlayer(host.Players(), roomID)
		require.True(t, ok)
		assert.Equal(t, entity.Player{ID: roomID, Name: "Alice", IsHost: true, Ready: true}, hostSelf)

		var guestID string
		for _, player := range host.Players() {
			if player.ID != roomID {
				guestID = player.ID
			}
		}
		require.NotEmpty(t, guestID)

		remote, ok := findPlayer(host.Players(), guestID)
		require.True(t, ok)
		assert.Equal(t, "Player-"+guestID[:6], remote.Name)
		assert.False(t, remote.IsHost)

		// And: the guest sees the host flagged as host
		hostSeen, ok := findPlayer(guest.Players(), roomID)
		require.True(t, ok)
		assert.True(t, hostSeen.IsHost)
		assert.Equal(t, "Player-room-1", hostSeen.Name)
		assert.True(t, guest.IsConnected())
	})

	t.Run("Host forgets a guest that leaves", func(t *testing.T) {
		host, guest := connectedSessions(t)

		// When: the guest closes its session
		guest.Close()

		// Then: the host stays connected with only itself listed
		require.Eventually(t, func() bool {
			return len(host.Players()) == 1
		}, waitFor, tick)
		assert.Equal(t, roomID, host.Players()[0].ID)
		assert.True(t, host.IsConnected())
	})

	t.Run("Close clears the list", func(t *testing.T) {
		host, _ := connectedSessions(t)

		host.Close()

		assert.Empty(t, host.Players())
		assert.Equal(t, entity.StatusDisconnected, host.Status())
	})
}

func TestSession_SyncState(t *testing.T) {
	// Given: connected sessions with a fixed host clock
	host, guest := connectedSessions(t, WithClock(func() float64 { return 1234 }))

	state := tennis.NewEngine().State()
	state.Scores = [2]int{3, 2}

	// When: the host syncs a state
	versioned, err := host.SyncState(state)

	// Then: it is recorded locally with the clock time
	require.NoError(t, err)
	assert.InDelta(t, 1234.0, versioned.Timestamp, 0)

	local, ok := host.LatestLocalState()
	require.True(t, ok)
	assert.Equal(t, state, local.State)

	// And: the guest receives the same version
	require.Eventually(t, func() bool {
		_, ok := guest.LatestRemoteState()
		return ok
	}, waitFor, tick)

	remote, _ := guest.LatestRemoteState()
	assert.Equal(t, versioned, remote)
}

func TestSession_Reconcile(t *testing.T) {
	host, guest := connectedSessions(t)

	t.Run("Keeps local without a remote state", func(t *testing.T) {
		local := tennisVersion(10, 1)

		winner, ok := guest.Reconcile(local)

		assert.False(t, ok)
		assert.Equal(t, local, winner)
	})

	t.Run("Newer remote wins", func(t *testing.T) {
		state := tennis.NewEngine().State()
		state.Scores = [2]int{4, 4}
		sent, err := host.SyncState(state)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, ok := guest.LatestRemoteState()
			return ok
		}, waitFor, tick)

		winner, ok := guest.Reconcile(tennisVersion(sent.Timestamp-1, 0))

		assert.True(t, ok)
		assert.Equal(t, [2]int{4, 4}, winner.State.Scores)
	})
}

func TestSession_Messages(t *testing.T) {
	t.Run("Inputs and events reach their handlers", func(t *testing.T) {
		host, guest := connectedSessions(t)

		var mu sync.Mutex
		var inputs []protocol.PlayerInput
		var events []protocol.GameEvent

		host.OnInput(func(msg protocol.PlayerInput) {
			mu.Lock()
			defer mu.Unlock()
			inputs = append(inputs, msg)
		})
		host.OnEvent(func(msg protocol.GameEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, msg)
		})

		// When: the guest sends an input and an event
		require.NoError(t, guest.SendMessage(protocol.PlayerInput{PlayerID: 1, Input: protocol.Input{Up: true}, Timestamp: 5}))
		require.NoError(t, guest.SendMessage(protocol.GameEvent{Name: protocol.EventServe, Timestamp: 6}))

		// Then: the host hands each to the matching handler
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(inputs) == 1 && len(events) == 1
		}, waitFor, tick)

		assert.Equal(t, protocol.PlayerInput{PlayerID: 1, Input: protocol.Input{Up: true}, Timestamp: 5}, inputs[0])
		assert.Equal(t, protocol.EventServe, events[0].Name)
	})

	t.Run("Unsubscribed handlers are not called", func(t *testing.T) {
		host, guest := connectedSessions(t)

		var mu sync.Mutex
		calls := 0
		unsubscribe := host.OnEvent(func(protocol.GameEvent) {
			mu.Lock()
			defer mu.Unlock()
			calls++
		})
		unsubscribe()

		seen := make(chan struct{}, 1)
		host.OnEvent(func(protocol.GameEvent) { seen <- struct{}{} })

		require.NoError(t, guest.SendMessage(protocol.GameEvent{Name: protocol.EventReset, Timestamp: 1}))

		select {
		case <-seen:
		case <-time.After(waitFor):
			t.Fatal("event was not delivered")
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, calls)
	})

	t.Run("Invalid messages are dropped", func(t *testing.T) {
		// Given: a session fed raw data directly
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: ModeGuest})
		t.Cleanup(session.Close)

		for _, raw := range []string{
			`not json`,
			`{"type":"chat","payload":{},"timestamp":1}`,
			`{"type":"state-sync","payload":{"state":"not a state","timestamp":1},"timestamp":1}`,
			`{"type":"state-sync","payload":{"state":{}},"timestamp":1}`,
		} {
			// When: handling the message
			session.handleMessage([]byte(raw), "peer")
		}

		// Then: no remote state was recorded
		_, ok := session.LatestRemoteState()
		assert.False(t, ok)
	})

	t.Run("Sending nil is rejected", func(t *testing.T) {
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: ModeGuest})
		t.Cleanup(session.Close)

		require.ErrorIs(t, session.SendMessage(nil), apperror.ErrInvalidMessage)
	})

	t.Run("Sending while disconnected is rejected", func(t *testing.T) {
		session := New[tennis.GameState](newLogger(), peer.NewManager(newLogger(), loopback.NewHub()), Config{Mode: ModeGuest})
		t.Cleanup(session.Close)

		_, err := session.SyncState(tennis.NewEngine().State())

		require.ErrorIs(t, err, apperror.ErrNotConnected)
	})
}

func TestRemoteName(t *testing.T) {
	assert.Equal(t, "Player-abc", remoteName("abc"))
	assert.Equal(t, "Player-abcdef", remoteName("abcdefgh"))
	assert.True(t, strings.HasPrefix(remoteName("0123456789"), "Player-012345"))
}
