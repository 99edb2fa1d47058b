package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

type GameHandler interface {
	List(ctx echo.Context) error
	Get(ctx echo.Context) error
}

type gameHandler struct{}

func NewGameHandler() GameHandler {
	return &gameHandler{}
}

func (that *gameHandler) List(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, entity.Games())
}

func (that *gameHandler) Get(ctx echo.Context) error {
	game, err := entity.GetGame(ctx.Param("slug"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "game not found")
	}

	return ctx.JSON(http.StatusOK, game)
}
