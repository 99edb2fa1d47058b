package protocol

import "encoding/json"

type Type string

const (
	TypeStateSync   Type = "state-sync"
	TypePlayerInput Type = "player-input"
	TypeGameEvent   Type = "game-event"
)

func (that Type) IsValid() bool {
	switch that {
	case TypeStateSync, TypePlayerInput, TypeGameEvent:
		return true
	}

	return false
}

// EventName is open; peers may send names this side does not know.
type EventName string

const (
	EventReset    EventName = "reset"
	EventServe    EventName = "serve"
	EventFinished EventName = "finished"
)

// Message is one of StateSync, PlayerInput or GameEvent.
type Message interface {
	Type() Type
	// SentAt - send time in milliseconds since the Unix epoch.
	SentAt() float64

	isMessage()
}

// StateSync carries a versioned snapshot. Its timestamp doubles as the envelope timestamp.
type StateSync struct {
	State     json.RawMessage `json:"state"`
	Timestamp float64         `json:"timestamp"`
}

func (that StateSync) Type() Type      { return TypeStateSync }
func (that StateSync) SentAt() float64 { return that.Timestamp }
func (that StateSync) isMessage()      {}

// Input covers both games; tennis only reads Up and Down.
type Input struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left,omitempty"`
	Right bool `json:"right,omitempty"`
}

type PlayerInput struct {
	PlayerID  int     `json:"playerId"`
	Input     Input   `json:"input"`
	Timestamp float64 `json:"-"`
}

func (that PlayerInput) Type() Type      { return TypePlayerInput }
func (that PlayerInput) SentAt() float64 { return that.Timestamp }
func (that PlayerInput) isMessage()      {}

type GameEvent struct {
	Name      EventName       `json:"name"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp float64         `json:"-"`
}

func (that GameEvent) Type() Type      { return TypeGameEvent }
func (that GameEvent) SentAt() float64 { return that.Timestamp }
func (that GameEvent) isMessage()      {}

type envelope struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp *float64        `json:"timestamp"`
}
