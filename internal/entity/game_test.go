package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
)

func TestGetGame(t *testing.T) {
	t.Run("Returns the definition for a known slug", func(t *testing.T) {
		// When: looking up neon tennis
		game, err := GetGame(NeonTennis)

		// Then: the definition is returned for two players
		require.NoError(t, err)
		assert.Equal(t, "Neon Tennis", game.Name)
		assert.Equal(t, 2, game.MinPlayers)
		assert.Equal(t, 2, game.MaxPlayers)
	})

	t.Run("Returns ErrGameNotFound for an unknown slug", func(t *testing.T) {
		// When: looking up a game that does not exist
		_, err := GetGame("chess")

		// Then: ErrGameNotFound is returned
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.False(t, IsValidGame("chess"))
	})
}

func TestGames(t *testing.T) {
	// When: listing the catalog
	list := Games()

	// Then: both games are listed in slug order
	require.Len(t, list, 2)
	assert.Equal(t, NeonTennis, list[0].Slug)
	assert.Equal(t, RetroRace, list[1].Slug)
}

func TestGameDefinition_AllReady(t *testing.T) {
	game, err := GetGame(RetroRace)
	require.NoError(t, err)

	t.Run("False with a single player", func(t *testing.T) {
		// Given: only the host is present
		players := []Player{{ID: "a", Ready: true}}

		// Then: the room is not ready
		assert.False(t, game.AllReady(players))
	})

	t.Run("False when someone is not ready", func(t *testing.T) {
		players := []Player{{ID: "a", Ready: true}, {ID: "b"}}

		assert.False(t, game.AllReady(players))
	})

	t.Run("True when both players are ready", func(t *testing.T) {
		players := []Player{{ID: "a", Ready: true}, {ID: "b", Ready: true}}

		assert.True(t, game.AllReady(players))
	})
}

func TestConnectionStatus_IsConnected(t *testing.T) {
	assert.True(t, StatusConnected.IsConnected())
	assert.False(t, StatusConnecting.IsConnected())
	assert.False(t, StatusError.IsConnected())
}
