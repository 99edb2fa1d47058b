package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

func TestMemoryPeerRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Claims are exclusive until released", func(t *testing.T) {
		peerRepo := NewMemoryPeerRepository()

		// Given: session a holds room-1
		require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-a"), time.Minute))

		// Then: session b cannot claim or release it
		require.ErrorIs(t, peerRepo.Claim(ctx, newClaim("room-1", "session-b"), time.Minute), apperror.ErrRoomTaken)
		require.ErrorIs(t, peerRepo.Release(ctx, "room-1", "session-b"), apperror.ErrNotClaimed)

		// When: session a releases it
		require.NoError(t, peerRepo.Release(ctx, "room-1", "session-a"))

		// Then: session b can take it
		require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-b"), time.Minute))
	})

	t.Run("Claims expire unless refreshed", func(t *testing.T) {
		// Given: a registry with a controllable clock
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		peerRepo := &memoryPeer{
			now:    func() time.Time { return now },
			claims: make(map[string]memoryClaim),
		}
		require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-a"), 10*time.Second))
		require.NoError(t, peerRepo.Claim(ctx, newClaim("room-2", "session-a"), 10*time.Second))

		// When: room-1 is refreshed and 15 seconds pass
		now = now.Add(8 * time.Second)
		require.NoError(t, peerRepo.Refresh(ctx, "room-1", "session-a", 10*time.Second))
		now = now.Add(7 * time.Second)

		// Then: only the refreshed claim is alive
		claim, err := peerRepo.GetByID(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, "session-a", claim.Session)

		_, err = peerRepo.GetByID(ctx, "room-2")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		require.ErrorIs(t, peerRepo.Refresh(ctx, "room-2", "session-a", time.Minute), apperror.ErrNotClaimed)
	})
}

func TestMemorySignalRelay(t *testing.T) {
	ctx := context.Background()
	relay := NewMemorySignalRelay()

	// Given: a subscriber for room-1
	sub, err := relay.Subscribe(ctx, "room-1")
	require.NoError(t, err)

	// When: signals are published to room-1 and to an unknown id
	answer := entity.Signal{From: "room-1", To: "room-1", Kind: entity.SignalAnswer, SDP: "v=0"}
	delivered, err := relay.Publish(ctx, answer)
	require.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = relay.Publish(ctx, entity.Signal{To: "room-2", Kind: entity.SignalOffer})
	require.NoError(t, err)
	assert.False(t, delivered)

	// Then: the subscriber got exactly the first one
	assert.Equal(t, answer, <-sub.Signals())

	// When: the subscription closes
	require.NoError(t, sub.Close())

	// Then: the channel is closed and publishing finds nobody
	_, ok := <-sub.Signals()
	assert.False(t, ok)

	delivered, err = relay.Publish(ctx, answer)
	require.NoError(t, err)
	assert.False(t, delivered)
}
