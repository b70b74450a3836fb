package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "visaconnect/internal/infrastructure/websocket"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

var webSocketHandler *WebSocketHandler

// NewWebSocketHandler accepts handshakes from the listed origins. An empty
// list accepts any origin, which is only meant for development.
func NewWebSocketHandler(wsManager *ws.Manager, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func SetupWebSocketHandler(wsManager *ws.Manager, allowedOrigins []string) {
	webSocketHandler = NewWebSocketHandler(wsManager, allowedOrigins)
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	// Upgrade answers the handshake itself when it fails.
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("websocket upgrade for %s failed: %v", actor.ID, err)
		return nil
	}

	client := ws.NewClient(actor.ID, conn)
	if !h.wsManager.Register(client) {
		conn.WriteMessage(gorillaws.CloseMessage,
			gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "server shutting down"))
		conn.Close()
		return nil
	}
	logger.Debug("websocket connected for %s", actor.ID)

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
