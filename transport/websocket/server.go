package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/pkg"
)

const (
	maxMessageSize  = 64 << 10
	shutdownTimeout = 5 * time.Second
)

type rendezvous interface {
	Claim(ctx context.Context, peerID, session string) (*entity.PeerClaim, <-chan entity.Signal, error)
	Refresh(ctx context.Context, peerID, session string) error
	Release(ctx context.Context, peerID, session string) error

	Relay(ctx context.Context, from string, signal entity.Signal) error
}

type Server struct {
	logger     *slog.Logger
	rendezvous rendezvous
	keepalive  time.Duration
	upgrader   websocket.Upgrader

	handlers map[string]func(ctx context.Context, conn *connection, message *entity.SignalMessage) error
}

// New - keepalive is the ping and claim refresh period; a socket silent for three periods is dropped.
func New(logger *slog.Logger, rendezvous rendezvous, keepalive time.Duration) *Server {
	server := &Server{
		logger:     logger.With("component", "signal-server"),
		rendezvous: rendezvous,
		keepalive:  keepalive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers are native clients and browsers on any origin
			CheckOrigin: func(*http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *connection, *entity.SignalMessage) error),
	}

	server.handlers[entity.ActionClaim] = server.handleClaim
	server.handlers[entity.ActionSignal] = server.handleSignal

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start - starts the rendezvous WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down signal server", "error", err)
		}
	}()

	that.logger.Info("signal server listening", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the request and serves the socket until it closes.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(ws, pkg.GenerateSessionID())
	log = log.With("session", conn.session)
	log.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(req.Context())

	defer func() {
		cancel()
		that.release(conn)

		if err := ws.Close(); err != nil {
			log.Debug("failed to close socket", "error", err)
		}

		log.Info("WebSocket connection closed")
	}()

	go that.keepAlive(ctx, conn)

	if err = that.handleMessages(ctx, conn); err != nil {
		log.Debug("socket read loop ended", "error", err)
	}
}

// handleMessages - processes messages from the client until the socket fails.
func (that *Server) handleMessages(ctx context.Context, conn *connection) error {
	log := that.logger.With("method", "handleMessages", "session", conn.session)

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(that.readWait()))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(that.readWait()))
	})

	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		_ = conn.ws.SetReadDeadline(time.Now().Add(that.readWait()))

		if messageType != websocket.TextMessage {
			continue
		}

		var message entity.SignalMessage
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			_ = conn.sendError(entity.CodeInvalidMessage, "message is not valid json", "")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Debug("unknown action", "action", message.Action)
			_ = conn.sendError(entity.CodeInvalidMessage, "unknown action "+message.Action, "")
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// keepAlive - pings the socket and keeps the claim from expiring. The socket is closed once it returns.
func (that *Server) keepAlive(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "keepAlive", "session", conn.session)

	ticker := time.NewTicker(that.keepalive)
	defer ticker.Stop()

	// unblocks the read loop on shutdown or a failed ping
	defer conn.ws.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				log.Debug("failed to ping", "error", err)
				return
			}

			if peerID := conn.peerID(); peerID != "" {
				if err := that.rendezvous.Refresh(ctx, peerID, conn.session); err != nil {
					log.Warn("failed to refresh claim", "peer_id", peerID, "error", err)
				}
			}
		}
	}
}

func (that *Server) release(conn *connection) {
	peerID := conn.peerID()
	if peerID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := that.rendezvous.Release(ctx, peerID, conn.session); err != nil {
		that.logger.Warn("failed to release claim", "peer_id", peerID, "session", conn.session, "error", err)
	}
}

func (that *Server) readWait() time.Duration {
	return 3 * that.keepalive
}
