package rtcnet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

const writeWait = 10 * time.Second

// signalingClient is the peer side of the rendezvous socket. Writes are serialized; one goroutine reads.
type signalingClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newSignalingClient(conn *websocket.Conn) *signalingClient {
	return &signalingClient{conn: conn}
}

func (that *signalingClient) send(action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err = that.conn.WriteJSON(entity.SignalMessage{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write %s message: %w", action, err)
	}

	return nil
}

func (that *signalingClient) read() (entity.SignalMessage, error) {
	var msg entity.SignalMessage
	if err := that.conn.ReadJSON(&msg); err != nil {
		return entity.SignalMessage{}, fmt.Errorf("failed to read signaling message: %w", err)
	}

	return msg, nil
}

// claim - asks the server for id and waits for its verdict.
func (that *signalingClient) claim(ctx context.Context, id string) error {
	if err := that.send(entity.ActionClaim, entity.ClaimPayload{ID: id}); err != nil {
		return err
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		select {
		case <-ctx.Done():
			// unblocks the pending read
			_ = that.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		<-stopped
		_ = that.conn.SetReadDeadline(time.Time{})
	}()

	for {
		msg, err := that.read()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("failed to claim peer id: %w", ctxErr)
			}

			return err
		}

		switch msg.Action {
		case entity.ActionClaimed:
			return nil
		case entity.ActionError:
			var payload entity.ErrorPayload
			if err = json.Unmarshal(msg.Payload, &payload); err != nil {
				return fmt.Errorf("failed to unmarshal claim error: %w", err)
			}

			return claimError(payload)
		}
	}
}

func (that *signalingClient) close() error {
	that.writeMu.Lock()
	_ = that.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	that.writeMu.Unlock()

	if err := that.conn.Close(); err != nil {
		return fmt.Errorf("failed to close signaling connection: %w", err)
	}

	return nil
}
