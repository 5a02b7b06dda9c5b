// internal/handlers/ws/ws_handler.go
package ws

import (
	"net/http"

	"fitbridge-service/internal/pkg/response"
	hub "fitbridge-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The socket carries no credentials and only ever receives
		// device-scoped handoff events, so origin is not restricted.
		return true
	},
}

type WebSocketHandler struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(h *hub.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: h, logger: logger}
}

// HandleConnection upgrades /ws?device_id=... and parks the socket until the
// client disconnects. The hub pushes handoff events to it; nothing the
// client sends is interpreted.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		response.ValidationError(c, "device_id is required", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := h.hub.Register(deviceID, conn)
	defer h.hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
