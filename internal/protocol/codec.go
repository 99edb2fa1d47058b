package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
)

// Encode - serializes a message into its wire envelope.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is nil", apperror.ErrInvalidMessage)
	}

	at := msg.SentAt()
	if math.IsNaN(at) || math.IsInf(at, 0) {
		return nil, fmt.Errorf("%w: timestamp must be finite", apperror.ErrInvalidMessage)
	}

	var payload any

	switch typed := msg.(type) {
	case StateSync:
		if typed.State == nil {
			typed.State = json.RawMessage("null")
		}
		payload = typed
	case PlayerInput:
		payload = typed
	case GameEvent:
		payload = typed
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", apperror.ErrInvalidMessage, msg)
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w: %w", apperror.ErrInvalidMessage, err)
	}

	data, err := json.Marshal(envelope{
		Type:      msg.Type(),
		Payload:   rawPayload,
		Timestamp: &at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w: %w", apperror.ErrInvalidMessage, err)
	}

	return data, nil
}

// Decode - parses a wire envelope. Every rejection wraps apperror.ErrInvalidMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w: %w", apperror.ErrInvalidMessage, err)
	}

	if !env.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", apperror.ErrInvalidMessage, env.Type)
	}

	if env.Payload == nil {
		return nil, fmt.Errorf("%w: payload is missing", apperror.ErrInvalidMessage)
	}

	if env.Timestamp == nil {
		return nil, fmt.Errorf("%w: timestamp is missing", apperror.ErrInvalidMessage)
	}

	switch env.Type {
	case TypeStateSync:
		return decodeStateSync(env.Payload)
	case TypePlayerInput:
		return decodePlayerInput(env.Payload, *env.Timestamp), nil
	default:
		return decodeGameEvent(env.Payload, *env.Timestamp), nil
	}
}

func decodeStateSync(payload json.RawMessage) (Message, error) {
	var versioned struct {
		State     json.RawMessage `json:"state"`
		Timestamp *float64        `json:"timestamp"`
	}

	if err := json.Unmarshal(payload, &versioned); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state-sync payload: %w: %w", apperror.ErrInvalidMessage, err)
	}

	if versioned.State == nil {
		return nil, fmt.Errorf("%w: state-sync payload has no state", apperror.ErrInvalidMessage)
	}

	if versioned.Timestamp == nil || math.IsNaN(*versioned.Timestamp) || math.IsInf(*versioned.Timestamp, 0) {
		return nil, fmt.Errorf("%w: state-sync payload has no finite timestamp", apperror.ErrInvalidMessage)
	}

	return StateSync{State: versioned.State, Timestamp: *versioned.Timestamp}, nil
}

// decodePlayerInput - any payload is accepted; fields that do not fit decode to zero values.
func decodePlayerInput(payload json.RawMessage, at float64) Message {
	var input PlayerInput

	decodeLoose(payload, &input)
	input.Timestamp = at

	return input
}

// decodeGameEvent - any payload and any event name are accepted.
func decodeGameEvent(payload json.RawMessage, at float64) Message {
	var event GameEvent

	decodeLoose(payload, &event)
	event.Timestamp = at

	return event
}

// decodeLoose - the envelope is already valid JSON, so the only failures left are
// type mismatches, which leave the mismatched fields unset.
func decodeLoose(payload json.RawMessage, target any) {
	_ = json.Unmarshal(payload, target)
}
