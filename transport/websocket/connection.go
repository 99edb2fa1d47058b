package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

const writeWait = 10 * time.Second

// connection is one rendezvous socket. gorilla allows one concurrent writer, so writes take writeMu.
type connection struct {
	ws      *websocket.Conn
	session string

	writeMu sync.Mutex

	mu      sync.Mutex
	claimed string
}

func newConnection(ws *websocket.Conn, session string) *connection {
	return &connection{
		ws:      ws,
		session: session,
	}
}

func (that *connection) peerID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.claimed
}

func (that *connection) setPeerID(peerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.claimed = peerID
}

func (that *connection) send(action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))

	if err = that.ws.WriteJSON(entity.SignalMessage{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write %s message: %w", action, err)
	}

	return nil
}

func (that *connection) sendError(code, message, to string) error {
	return that.send(entity.ActionError, entity.ErrorPayload{
		Code:    code,
		Message: message,
		To:      to,
	})
}

func (that *connection) ping() error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to write ping: %w", err)
	}

	return nil
}
