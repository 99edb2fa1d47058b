package rtcnet

import (
	"io"
	"log/slog"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
)

func TestNode_AnswerFailureForgetsPeerConnection(t *testing.T) {
	// Given: a host node that cannot use the offer it receives
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	network, err := New(logger, Config{SignalURL: "ws://localhost:0/ws"})
	require.NoError(t, err)

	n := &node{
		id:        "room-1",
		network:   network,
		logger:    logger,
		handler:   peer.NodeHandler{},
		pending:   make(map[string]chan signalResult),
		channels:  make(map[*channel]struct{}),
		peerConns: make(map[*webrtc.PeerConnection]struct{}),
	}

	// When: answering a malformed offer
	n.answer(entity.Signal{From: "guest-1", Kind: entity.SignalOffer, SDP: "not an sdp"})

	// Then: the peer connection is not left behind
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.peerConns)
}
