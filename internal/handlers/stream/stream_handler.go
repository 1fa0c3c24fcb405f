// internal/handlers/stream/stream_handler.go
package stream

import (
	"net/http"

	"collectsync-service/internal/auth"
	ws "collectsync-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler upgrades UI connections onto the hub. The token travels as a
// query parameter because browsers cannot set headers on websocket upgrades.
type StreamHandler struct {
	hub         *ws.Hub
	authService *auth.Service
	logger      *zap.Logger
}

func NewStreamHandler(hub *ws.Hub, authService *auth.Service, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, authService: authService, logger: logger}
}

func (h *StreamHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, claims.StaffID, claims.Role, h.logger)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
