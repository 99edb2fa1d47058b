package pkg

import (
	"strings"

	"github.com/google/uuid"
)

// GeneratePeerID - random identity for peers that join without a room id.
func GeneratePeerID() string {
	return uuid.NewString()
}

// GenerateRoomID - short shareable room id.
func GenerateRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GenerateSessionID - id of one rendezvous socket.
func GenerateSessionID() string {
	return uuid.NewString()
}
