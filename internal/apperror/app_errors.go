package apperror

import "errors"

var (
	ErrRoomIDRequired   = errors.New("room id is required")
	ErrInvalidRoomID    = errors.New("room id has invalid characters")
	ErrRoomTaken        = errors.New("room id is already claimed")
	ErrRoomNotFound     = errors.New("room does not exist")
	ErrConnectTimeout   = errors.New("connection did not open in time")
	ErrDisconnected     = errors.New("connection attempt was cancelled by disconnect")
	ErrNotConnected     = errors.New("no active peers to send data to")
	ErrInvalidMessage   = errors.New("invalid game message")
	ErrInvalidTimestamp = errors.New("state timestamp must be a finite number")
	ErrGameNotFound     = errors.New("game not found")
	ErrNotClaimed       = errors.New("peer id is not claimed by this session")
)
