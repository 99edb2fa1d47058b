package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

type RoomHandler interface {
	Get(ctx echo.Context) error
}

// roomResponse hides the signaling session of the host.
type roomResponse struct {
	ID        string    `json:"id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type roomHandler struct {
	logger *slog.Logger
	rooms  roomLookup
}

func NewRoomHandler(logger *slog.Logger, rooms roomLookup) RoomHandler {
	return &roomHandler{
		logger: logger,
		rooms:  rooms,
	}
}

// Get - 200 while a host holds the room id, 404 otherwise.
func (that *roomHandler) Get(ctx echo.Context) error {
	log := that.logger.With("method", "RoomHandler.Get")

	id := ctx.Param("id")
	if !entity.IsValidPeerID(id) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}

	claim, err := that.rooms.Lookup(ctx.Request().Context(), id)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}

	if err != nil {
		log.Error("failed to look up room", "room_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up room")
	}

	return ctx.JSON(http.StatusOK, roomResponse{ID: claim.PeerID, ClaimedAt: claim.ClaimedAt})
}
