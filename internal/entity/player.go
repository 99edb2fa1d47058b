package entity

// Player is a participant derived from connection events. It is never sent whole over the wire.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
	Ready  bool   `json:"ready"`
}

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

func (that ConnectionStatus) IsConnected() bool {
	return that == StatusConnected
}
