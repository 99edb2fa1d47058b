// Package rtcnet is a peer.Network over WebRTC data channels with a rendezvous socket for signaling.
package rtcnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
	"github.com/rocketscienceinc/arcade-backend/internal/pkg"
)

const dataChannelLabel = "game"

var (
	errSignalingClosed = errors.New("signaling connection closed")
	errRendezvous      = errors.New("rendezvous server reported an error")
)

type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

type Config struct {
	// SignalURL - websocket address of the rendezvous server, e.g. ws://localhost:8081/ws.
	SignalURL  string
	ICEServers []ICEServer
}

type Network struct {
	logger     *slog.Logger
	signalURL  string
	iceServers []webrtc.ICEServer
	api        *webrtc.API
	dialer     *websocket.Dialer
}

// New - validates the ICE servers and prepares the WebRTC API.
func New(logger *slog.Logger, cfg Config) (*Network, error) {
	if cfg.SignalURL == "" {
		return nil, errors.New("signal url is required")
	}

	iceServers, err := ParseICEServers(cfg.ICEServers)
	if err != nil {
		return nil, err
	}

	settings := webrtc.SettingEngine{
		LoggerFactory: pkg.NewPionLoggerFactory(logger.With("component", "webrtc")),
	}

	return &Network{
		logger:     logger.With("component", "rtcnet"),
		signalURL:  cfg.SignalURL,
		iceServers: iceServers,
		api:        webrtc.NewAPI(webrtc.WithSettingEngine(settings)),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// ParseICEServers - checks every URL is a valid stun/turn URI.
func ParseICEServers(servers []ICEServer) ([]webrtc.ICEServer, error) {
	result := make([]webrtc.ICEServer, 0, len(servers))

	for _, server := range servers {
		for _, raw := range server.URLs {
			if _, err := stun.ParseURI(raw); err != nil {
				return nil, fmt.Errorf("failed to parse ice server url %q: %w", raw, err)
			}
		}

		iceServer := webrtc.ICEServer{URLs: server.URLs}
		if server.Username != "" {
			iceServer.Username = server.Username
			iceServer.Credential = server.Credential
		}

		result = append(result, iceServer)
	}

	return result, nil
}

// Open - dials the rendezvous server and claims id. An empty id claims a random one.
func (that *Network) Open(ctx context.Context, id string, handler peer.NodeHandler) (peer.Node, error) {
	if id == "" {
		id = pkg.GeneratePeerID()
	}

	log := that.logger.With("method", "Open", "peer_id", id)

	conn, _, err := that.dialer.DialContext(ctx, that.signalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling server: %w", err)
	}

	signaling := newSignalingClient(conn)

	if err = signaling.claim(ctx, id); err != nil {
		_ = signaling.close()
		return nil, err
	}

	n := &node{
		id:        id,
		network:   that,
		logger:    log,
		handler:   handler,
		signaling: signaling,
		pending:   make(map[string]chan signalResult),
		channels:  make(map[*channel]struct{}),
		peerConns: make(map[*webrtc.PeerConnection]struct{}),
	}

	go n.readSignals()

	log.Info("peer identity claimed")

	return n, nil
}

func (that *Network) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := that.api.NewPeerConnection(webrtc.Configuration{ICEServers: that.iceServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return pc, nil
}

// claimError - maps a rendezvous error code onto the app errors.
func claimError(payload entity.ErrorPayload) error {
	switch payload.Code {
	case entity.CodeUnavailableID:
		return fmt.Errorf("failed to claim peer id: %w", apperror.ErrRoomTaken)
	case entity.CodeInvalidID:
		return fmt.Errorf("failed to claim peer id: %w", apperror.ErrInvalidRoomID)
	default:
		return fmt.Errorf("failed to claim peer id: %s", payload.Code)
	}
}
