package relay

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", "error", err)
		return nil
	}
	client := newClient(uuid.NewString(), h, conn)
	h.register(client)
	go client.writePump()
	go client.readPump()
	return nil
}

// Health reports relay liveness and the number of connected clients.
func (h *Hub) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "clients": h.Count(), "rooms": h.Rooms()})
}

// Register mounts the relay routes on e.
func (h *Hub) Register(e *echo.Echo) {
	e.GET("/ws", h.ServeWS)
	e.GET("/healthz", h.Health)
}
