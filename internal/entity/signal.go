package entity

import (
	"encoding/json"
	"regexp"
)

// Rendezvous socket actions.
const (
	ActionClaim   = "claim"
	ActionClaimed = "claimed"
	ActionSignal  = "signal"
	ActionError   = "error"
)

// Rendezvous error codes.
const (
	CodeUnavailableID   = "unavailable-id"
	CodeInvalidID       = "invalid-id"
	CodePeerUnavailable = "peer-unavailable"
	CodeInvalidMessage  = "invalid-message"
)

type SignalKind string

const (
	SignalOffer  SignalKind = "offer"
	SignalAnswer SignalKind = "answer"
)

func (that SignalKind) IsValid() bool {
	return that == SignalOffer || that == SignalAnswer
}

// SignalMessage is the envelope of every rendezvous socket message.
type SignalMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ClaimPayload struct {
	ID string `json:"id"`
}

// Signal is an SDP offer or answer relayed between two claimed peers.
type Signal struct {
	From string     `json:"from,omitempty"`
	To   string     `json:"to,omitempty"`
	Kind SignalKind `json:"kind"`
	SDP  string     `json:"sdp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	// To is set when the error answers a signal.
	To string `json:"to,omitempty"`
}

var peerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// IsValidPeerID - ids are 1-64 characters of letters, digits, '-' and '_' starting with a letter or digit.
func IsValidPeerID(id string) bool {
	return peerIDPattern.MatchString(id)
}
