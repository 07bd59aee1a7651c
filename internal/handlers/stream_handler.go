package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StreamHandler pushes session snapshots over a websocket.
type StreamHandler struct {
	BaseHandler
	sessions *services.SessionManager
	upgrader websocket.Upgrader
}

func NewStreamHandler(sessions *services.SessionManager, logger utils.Logger) *StreamHandler {
	return &StreamHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Stream sends the current snapshot on connect and every change after it.
// The stream ends when the session completes, closes or the client leaves.
// @Router /sessions/{id}/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	id := parseSessionID(c)
	if id == "" {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.LogError(c, err, "WebSocket upgrade failed")
		return
	}

	updates, cancel := s.Subscribe()
	h.LogDebug(c, "Snapshot stream opened")

	clientGone := make(chan struct{})
	go h.readPump(conn, clientGone)
	h.writePump(conn, updates, clientGone)

	cancel()
	conn.Close()
	h.LogDebug(c, "Snapshot stream closed")
}

// readPump only handles control frames; clients do not send data.
func (h *StreamHandler) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, updates <-chan services.Snapshot, gone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if snap.State == services.StateCompleted {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session completed"))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
