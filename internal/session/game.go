package session

import (
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/protocol"
	"github.com/rocketscienceinc/arcade-backend/internal/racing"
	"github.com/rocketscienceinc/arcade-backend/internal/tennis"
)

// Engine is the collaborator surface shared by both games.
type Engine[S any, I any] interface {
	HandleInput(playerID int, input I)
	Update(dt float64)
	Reset()
	State() S
	Load(state S)
}

// Game describes how one title is simulated, driven and put on the wire.
type Game[S any, I any] struct {
	Definition entity.GameDefinition
	Engine     Engine[S, I]
	Loop       Loop

	Autopilot func(state S, playerID int) I
	ToWire    func(input I) protocol.Input
	FromWire  func(input protocol.Input) I

	Finished func(state S) bool
	Winner   func(state S) *int
	// Events lists what happened between two consecutive snapshots.
	Events func(previous, current S) []protocol.EventName
}

func NewTennisGame(opts ...tennis.Option) Game[tennis.GameState, tennis.InputState] {
	definition, _ := entity.GetGame(entity.NeonTennis)
	engine := tennis.NewEngine(opts...)

	return Game[tennis.GameState, tennis.InputState]{
		Definition: definition,
		Engine:     engine,
		Loop:       NewCappedStepLoop(engine.Update),
		Autopilot:  TennisAutopilot,
		ToWire: func(input tennis.InputState) protocol.Input {
			return protocol.Input{Up: input.Up, Down: input.Down}
		},
		FromWire: func(input protocol.Input) tennis.InputState {
			return tennis.InputState{Up: input.Up, Down: input.Down}
		},
		Finished: tennis.GameState.IsFinished,
		Winner: func(state tennis.GameState) *int {
			return state.Winner
		},
		Events: func(previous, current tennis.GameState) []protocol.EventName {
			var events []protocol.EventName

			if previous.Status != tennis.StatusPlaying && current.Status == tennis.StatusPlaying {
				events = append(events, protocol.EventServe)
			}

			if !previous.IsFinished() && current.IsFinished() {
				events = append(events, protocol.EventFinished)
			}

			return events
		},
	}
}

func NewRacingGame() Game[racing.GameState, racing.InputState] {
	definition, _ := entity.GetGame(entity.RetroRace)
	engine := racing.NewEngine()

	return Game[racing.GameState, racing.InputState]{
		Definition: definition,
		Engine:     engine,
		Loop:       NewFixedStepLoop(engine.Update),
		Autopilot:  RacingAutopilot,
		ToWire: func(input racing.InputState) protocol.Input {
			return protocol.Input(input)
		},
		FromWire: func(input protocol.Input) racing.InputState {
			return racing.InputState(input)
		},
		Finished: racing.GameState.IsFinished,
		Winner: func(state racing.GameState) *int {
			return state.Winner
		},
		Events: func(previous, current racing.GameState) []protocol.EventName {
			if !previous.IsFinished() && current.IsFinished() {
				return []protocol.EventName{protocol.EventFinished}
			}

			return nil
		},
	}
}
