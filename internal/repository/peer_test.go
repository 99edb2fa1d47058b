package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/testing/suite"
)

func newClaim(peerID, session string) *entity.PeerClaim {
	return &entity.PeerClaim{
		PeerID:    peerID,
		Session:   session,
		ClaimedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPeerRepository_Claim(t *testing.T) {
	t.Run("Claim_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		peerRepo := NewPeerRepository(st.Storage)

		// When: a free id is claimed
		err := peerRepo.Claim(ctx, newClaim("room-1", "session-a"), time.Minute)

		// Then: the claim is stored with its ttl
		require.NoError(t, err)

		claim, err := peerRepo.GetByID(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, newClaim("room-1", "session-a"), claim)

		ttl, err := st.Storage.TTL(ctx, "peer:room-1").Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
	})

	t.Run("Claim_Taken", func(t *testing.T) {
		ctx, st := suite.New(t)

		peerRepo := NewPeerRepository(st.Storage)

		// Given: the id is held by another session
		require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-a"), time.Minute))

		// When: a second session claims it
		err := peerRepo.Claim(ctx, newClaim("room-1", "session-b"), time.Minute)

		// Then: ErrRoomTaken is returned and the first claim survives
		require.ErrorIs(t, err, apperror.ErrRoomTaken)

		claim, err := peerRepo.GetByID(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, "session-a", claim.Session)
	})
}

func TestPeerRepository_Refresh(t *testing.T) {
	ctx, st := suite.New(t)

	peerRepo := NewPeerRepository(st.Storage)

	// Given: a claim with a short ttl
	require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-a"), time.Second))

	// When: the owner refreshes it with a long ttl
	err := peerRepo.Refresh(ctx, "room-1", "session-a", time.Hour)

	// Then: the ttl is extended
	require.NoError(t, err)

	ttl, err := st.Storage.TTL(ctx, "peer:room-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)

	// And: other sessions or unknown ids cannot refresh
	require.ErrorIs(t, peerRepo.Refresh(ctx, "room-1", "session-b", time.Hour), apperror.ErrNotClaimed)
	require.ErrorIs(t, peerRepo.Refresh(ctx, "room-2", "session-a", time.Hour), apperror.ErrNotClaimed)
}

func TestPeerRepository_Release(t *testing.T) {
	ctx, st := suite.New(t)

	peerRepo := NewPeerRepository(st.Storage)

	// Given: a claimed id
	require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-a"), time.Minute))

	// When: another session tries to release it
	err := peerRepo.Release(ctx, "room-1", "session-b")

	// Then: the claim is kept
	require.ErrorIs(t, err, apperror.ErrNotClaimed)
	_, err = peerRepo.GetByID(ctx, "room-1")
	require.NoError(t, err)

	// When: the owner releases it
	err = peerRepo.Release(ctx, "room-1", "session-a")

	// Then: the id is free again
	require.NoError(t, err)
	_, err = peerRepo.GetByID(ctx, "room-1")
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	require.NoError(t, peerRepo.Claim(ctx, newClaim("room-1", "session-b"), time.Minute))
}

func TestPeerRepository_GetByID_NotFound(t *testing.T) {
	ctx, st := suite.New(t)

	peerRepo := NewPeerRepository(st.Storage)

	// When: GetByID is called with an id nobody claimed
	claim, err := peerRepo.GetByID(ctx, "nobody")

	// Then: ErrRoomNotFound is returned
	require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	assert.Nil(t, claim)
}
