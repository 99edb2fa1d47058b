package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

const shutdownTimeout = 5 * time.Second

type roomLookup interface {
	Lookup(ctx context.Context, peerID string) (*entity.PeerClaim, error)
}

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
}

// New - builds the HTTP API: health, game catalog, room lookup and ICE configuration.
func New(logger *slog.Logger, rooms roomLookup, iceServers []ICEServer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second

	ping := NewPingHandler()
	games := NewGameHandler()
	room := NewRoomHandler(logger, rooms)
	ice := NewICEHandler(iceServers)

	e.GET("/ping", ping.Ping)

	v1 := e.Group("/v1")
	v1.GET("/games", games.List)
	v1.GET("/games/:slug", games.Get)
	v1.GET("/rooms/:id", room.Get)
	v1.GET("/ice", ice.List)

	return &Server{
		logger: logger.With("component", "rest"),
		echo:   e,
	}
}

func (that *Server) Handler() http.Handler {
	return that.echo
}

// Start - serves until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := that.echo.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	that.logger.Info("http server listening", "port", port)

	if err := that.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
