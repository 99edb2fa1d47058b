package entity

import "time"

// PeerClaim records which signaling session holds a peer id.
type PeerClaim struct {
	PeerID    string    `json:"peer_id"`
	Session   string    `json:"session"`
	ClaimedAt time.Time `json:"claimed_at"`
}
