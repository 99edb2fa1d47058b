// Package turnserver runs an embedded TURN relay for peers that cannot reach each other directly.
package turnserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/pion/turn/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/pkg"
)

var (
	ErrPublicIPRequired = errors.New("turn public ip is required")
	ErrNoUsers          = errors.New("turn needs at least one user")
)

type Config struct {
	Port     int
	Realm    string
	PublicIP string
	// Users maps usernames to plain passwords.
	Users map[string]string
}

type Server struct {
	logger *slog.Logger
	server *turn.Server
	conn   net.PacketConn
}

// Start - listens on UDP and relays through cfg.PublicIP. Long-term credentials only.
func Start(logger *slog.Logger, cfg Config) (*Server, error) {
	log := logger.With("component", "turn")

	relayIP := net.ParseIP(cfg.PublicIP)
	if relayIP == nil {
		return nil, ErrPublicIPRequired
	}

	if len(cfg.Users) == 0 {
		return nil, ErrNoUsers
	}

	keys := make(map[string][]byte, len(cfg.Users))
	for username, password := range cfg.Users {
		keys[username] = turn.GenerateAuthKey(username, cfg.Realm, password)
	}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for turn: %w", err)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm: cfg.Realm,
		AuthHandler: func(username, _ string, srcAddr net.Addr) ([]byte, bool) {
			key, ok := keys[username]
			if !ok {
				log.Debug("rejected turn user", "username", username, "addr", srcAddr.String())
			}

			return key, ok
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: conn,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
		LoggerFactory: pkg.NewPionLoggerFactory(log),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start turn server: %w", err)
	}

	log.Info("turn server listening", "addr", conn.LocalAddr().String(), "realm", cfg.Realm)

	return &Server{
		logger: log,
		server: server,
		conn:   conn,
	}, nil
}

func (that *Server) Addr() net.Addr {
	return that.conn.LocalAddr()
}

// Close - closes the relay and its listener.
func (that *Server) Close() error {
	if err := that.server.Close(); err != nil {
		return fmt.Errorf("failed to close turn server: %w", err)
	}

	return nil
}
