package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/config"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
	"github.com/rocketscienceinc/arcade-backend/internal/peer/rtcnet"
	"github.com/rocketscienceinc/arcade-backend/internal/pkg"
	"github.com/rocketscienceinc/arcade-backend/internal/repository"
	"github.com/rocketscienceinc/arcade-backend/internal/repository/storage"
	"github.com/rocketscienceinc/arcade-backend/internal/service"
	"github.com/rocketscienceinc/arcade-backend/internal/session"
	"github.com/rocketscienceinc/arcade-backend/internal/turnserver"
	"github.com/rocketscienceinc/arcade-backend/transport/rest"
	"github.com/rocketscienceinc/arcade-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	if conf.Play.Mode == config.ModeSignal {
		log.Info("Starting arcade backend as rendezvous server", "mode", conf.Play.Mode, "store", conf.Rendezvous.Store)

		return runSignal(ctx, logger, conf)
	}

	log.Info("Starting arcade backend as headless player", "mode", conf.Play.Mode, "game", conf.Play.Game)

	return runPlayer(ctx, logger, conf)
}

// runSignal - serves the rendezvous socket, the REST surface and optionally a TURN relay.
func runSignal(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app", "mode", string(config.ModeSignal))

	peerRepo, relay, closeStore, err := newRendezvousStore(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	rendezvous := service.NewRendezvousService(logger, peerRepo, relay, conf.Rendezvous.ClaimTTL)

	iceServers := make([]rest.ICEServer, 0, len(conf.ICEServers)+1)
	for _, server := range conf.ICEServers {
		iceServers = append(iceServers, rest.ICEServer(server))
	}

	if conf.TURN.Enabled {
		turnServer, turnErr := turnserver.Start(logger, turnserver.Config{
			Port:     conf.TURN.Port,
			Realm:    conf.TURN.Realm,
			PublicIP: conf.TURN.PublicIP,
			Users:    conf.TURN.Users,
		})
		if turnErr != nil {
			return fmt.Errorf("could not start turn server: %w", turnErr)
		}

		defer func() {
			if err = turnServer.Close(); err != nil {
				log.Error("could not close turn server", "error", err)
			}
		}()

		iceServers = append(iceServers, turnICEServer(conf.TURN))
	}

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, rendezvous, iceServers).Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, rendezvous, conf.Rendezvous.KeepAlive)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newRendezvousStore(ctx context.Context, logger *slog.Logger, conf *config.Config) (repository.PeerRepository, repository.SignalRelay, func(), error) {
	log := logger.With("component", "app")

	if conf.Rendezvous.Store == config.StoreMemory {
		log.Warn("rendezvous state is kept in memory, run a single instance only")
		return repository.NewMemoryPeerRepository(), repository.NewMemorySignalRelay(), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeStore := func() {
		if closeErr := redisStorage.Close(); closeErr != nil {
			log.Error("could not close redis storage", "error", closeErr)
		}
	}

	return repository.NewPeerRepository(redisStorage), repository.NewSignalRelay(logger, redisStorage), closeStore, nil
}

// turnICEServer - the embedded relay as handed out to clients, with the first user's credentials.
func turnICEServer(conf config.TURN) rest.ICEServer {
	server := rest.ICEServer{URLs: []string{conf.TURNURL()}}

	users := make([]string, 0, len(conf.Users))
	for user := range conf.Users {
		users = append(users, user)
	}
	sort.Strings(users)

	if len(users) > 0 {
		server.Username = users[0]
		server.Credential = conf.Users[users[0]]
	}

	return server
}

// runPlayer - plays one match as a headless host or guest over WebRTC.
func runPlayer(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	iceServers := make([]rtcnet.ICEServer, 0, len(conf.ICEServers))
	for _, server := range conf.ICEServers {
		iceServers = append(iceServers, rtcnet.ICEServer(server))
	}

	network, err := rtcnet.New(logger, rtcnet.Config{SignalURL: conf.Play.SignalURL, ICEServers: iceServers})
	if err != nil {
		return fmt.Errorf("could not set up webrtc: %w", err)
	}

	manager := peer.NewManager(logger, network, peer.WithOpenTimeout(conf.Play.OpenTimeout))

	switch conf.Play.Game {
	case entity.NeonTennis:
		return playMatch(ctx, logger, manager, conf.Play, session.NewTennisGame())
	case entity.RetroRace:
		return playMatch(ctx, logger, manager, conf.Play, session.NewRacingGame())
	default:
		return fmt.Errorf("failed to start %q: %w", conf.Play.Game, apperror.ErrGameNotFound)
	}
}

func playMatch[S any, I any](ctx context.Context, logger *slog.Logger, manager *peer.Manager, conf config.Play, game session.Game[S, I]) error {
	log := logger.With("component", "app", "mode", string(conf.Mode), "game", game.Definition.Slug)

	roomID := conf.RoomID
	if roomID == "" && conf.Mode == config.ModeHost {
		roomID = pkg.GenerateRoomID()
	}

	sess := session.New[S](logger, manager, session.Config{
		Mode:       session.Mode(conf.Mode),
		RoomID:     roomID,
		PlayerName: conf.PlayerName,
	})
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("could not connect: %w", err)
	}

	log.Info("Connected", "room_id", roomID)

	match := session.NewMatch(logger, sess, game, conf.SyncEvery)
	if err := match.Run(ctx, conf.FrameInterval); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Application context canceled, leaving the match")
			return nil
		}

		return fmt.Errorf("match stopped: %w", err)
	}

	log.Info("Match finished", "winner", game.Winner(match.State()))

	return nil
}
