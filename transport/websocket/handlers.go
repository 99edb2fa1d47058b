package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

// handleClaim - one claim per socket; the claimed answer goes out before any forwarded signal.
func (that *Server) handleClaim(ctx context.Context, conn *connection, msg *entity.SignalMessage) error {
	log := that.logger.With("method", "handleClaim", "session", conn.session)

	var payload entity.ClaimPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return conn.sendError(entity.CodeInvalidMessage, "claim payload is not valid", "")
		}
	}

	if conn.peerID() != "" {
		return conn.sendError(entity.CodeInvalidMessage, "socket already holds "+conn.peerID(), "")
	}

	claim, signals, err := that.rendezvous.Claim(ctx, payload.ID, conn.session)

	switch {
	case errors.Is(err, apperror.ErrRoomTaken):
		return conn.sendError(entity.CodeUnavailableID, "id "+payload.ID+" is taken", "")
	case errors.Is(err, apperror.ErrInvalidRoomID):
		return conn.sendError(entity.CodeInvalidID, "id "+payload.ID+" is not valid", "")
	case err != nil:
		_ = conn.sendError(entity.CodeInvalidMessage, "claim failed", "")
		return fmt.Errorf("failed to claim peer id: %w", err)
	}

	conn.setPeerID(claim.PeerID)

	if err = conn.send(entity.ActionClaimed, entity.ClaimPayload{ID: claim.PeerID}); err != nil {
		return err
	}

	go that.forwardSignals(conn, signals)

	log.Info("socket claimed peer id", "peer_id", claim.PeerID)

	return nil
}

// handleSignal - relays an offer or answer to the socket holding signal.To.
func (that *Server) handleSignal(ctx context.Context, conn *connection, msg *entity.SignalMessage) error {
	var signal entity.Signal
	if err := json.Unmarshal(msg.Payload, &signal); err != nil {
		return conn.sendError(entity.CodeInvalidMessage, "signal payload is not valid", "")
	}

	from := conn.peerID()
	if from == "" {
		return conn.sendError(entity.CodeInvalidMessage, "claim an id before signaling", signal.To)
	}

	err := that.rendezvous.Relay(ctx, from, signal)

	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return conn.sendError(entity.CodePeerUnavailable, "could not connect to peer "+signal.To, signal.To)
	case errors.Is(err, apperror.ErrInvalidMessage):
		return conn.sendError(entity.CodeInvalidMessage, "signal needs to, kind and sdp", signal.To)
	case err != nil:
		_ = conn.sendError(entity.CodePeerUnavailable, "relay failed", signal.To)
		return fmt.Errorf("failed to relay signal: %w", err)
	}

	return nil
}

// forwardSignals - runs until the claim is released and its channel closed.
func (that *Server) forwardSignals(conn *connection, signals <-chan entity.Signal) {
	for signal := range signals {
		signal.To = ""

		if err := conn.send(entity.ActionSignal, signal); err != nil {
			that.logger.Debug("failed to forward signal", "session", conn.session, "error", err)
		}
	}
}
