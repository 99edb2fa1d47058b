package entity

import (
	"fmt"
	"sort"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
)

const (
	RetroRace  = "retro-race"
	NeonTennis = "neon-tennis"
)

type GameDefinition struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MinPlayers  int    `json:"min_players"`
	MaxPlayers  int    `json:"max_players"`
}

var games = map[string]GameDefinition{
	RetroRace: {
		Slug:        RetroRace,
		Name:        "Retro Race",
		Description: "Race through a pixelated circuit. Outmaneuver your opponent on the track!",
		MinPlayers:  2,
		MaxPlayers:  2,
	},
	NeonTennis: {
		Slug:        NeonTennis,
		Name:        "Neon Tennis",
		Description: "Classic Pong with neon paint. First to 7 wins!",
		MinPlayers:  2,
		MaxPlayers:  2,
	},
}

func IsValidGame(slug string) bool {
	_, ok := games[slug]
	return ok
}

// GetGame - returns the catalog entry for slug.
func GetGame(slug string) (GameDefinition, error) {
	game, ok := games[slug]
	if !ok {
		return GameDefinition{}, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, slug)
	}

	return game, nil
}

// Games - returns the catalog sorted by slug.
func Games() []GameDefinition {
	list := make([]GameDefinition, 0, len(games))
	for _, game := range games {
		list = append(list, game)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Slug < list[j].Slug
	})

	return list
}

// AllReady reports whether the room has a full table of ready players.
func (that GameDefinition) AllReady(players []Player) bool {
	if len(players) < that.MinPlayers {
		return false
	}

	for _, player := range players {
		if !player.Ready {
			return false
		}
	}

	return true
}
