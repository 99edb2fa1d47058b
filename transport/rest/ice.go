package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ICEServer is the browser RTCIceServer shape.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type ICEHandler interface {
	List(ctx echo.Context) error
}

type iceHandler struct {
	servers []ICEServer
}

func NewICEHandler(servers []ICEServer) ICEHandler {
	if servers == nil {
		servers = []ICEServer{}
	}

	return &iceHandler{servers: servers}
}

func (that *iceHandler) List(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string][]ICEServer{"ice_servers": that.servers})
}
