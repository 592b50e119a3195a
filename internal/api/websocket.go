package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/ladderscan/backend/internal/logging"
	"github.com/ladderscan/backend/internal/models"
)

// WebSocket message types for the session progress protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// DefaultProgressInterval is how often a session is polled for changes
const DefaultProgressInterval = 100 * time.Millisecond

// WSMessage is the envelope for every message in both directions
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandler streams conversion session progress
type WebSocketHandler struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	interval   time.Duration
	logger     *slog.Logger
}

// NewWebSocketHandler creates a progress stream handler. interval <= 0 uses
// DefaultProgressInterval.
func NewWebSocketHandler(sessionMgr SessionManager, interval time.Duration, logger *slog.Logger) *WebSocketHandler {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &WebSocketHandler{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		interval: interval,
		logger:   logger.With("component", "websocket"),
	}
}

// HandleProgress upgrades to a WebSocket and pushes the session every time
// it changes, ending with a "complete" message once it has finished.
func (wsh *WebSocketHandler) HandleProgress(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if _, ok := wsh.sessionMgr.GetSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		return nil
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	conn.send(WSMessage{Type: MsgTypeConnected, ID: id})

	closed := make(chan struct{})
	go wsh.readLoop(conn, closed)

	ticker := time.NewTicker(wsh.interval)
	defer ticker.Stop()

	var last *models.ConversionSession
	for {
		sess, ok := wsh.sessionMgr.GetSession(id)
		if !ok {
			conn.sendError(id, "session not found", "NOT_FOUND")
			return nil
		}
		if sess.Finished() {
			conn.sendSession(MsgTypeComplete, sess)
			conn.close()
			return nil
		}
		if last == nil || changed(last, sess) {
			conn.sendSession(MsgTypeProgress, sess)
			last = sess
		}
		wsh.sessionMgr.TouchSession(id)

		select {
		case <-closed:
			return nil
		case <-ticker.C:
		}
	}
}

// readLoop answers pings until the client goes away
func (wsh *WebSocketHandler) readLoop(conn *wsConn, closed chan<- struct{}) {
	defer close(closed)
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsh.logger.Debug("connection closed", "error", err)
			}
			return
		}
		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		default:
			conn.sendError(msg.ID, "unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}
}

func changed(a, b *models.ConversionSession) bool {
	return a.Status != b.Status || a.FilesDone != b.FilesDone || a.Progress != b.Progress
}

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteJSON(msg)
}

func (c *wsConn) sendSession(msgType string, sess *models.ConversionSession) {
	payload, err := json.Marshal(sess)
	if err != nil {
		c.sendError(sess.ID, err.Error(), "ENCODE_ERROR")
		return
	}
	c.send(WSMessage{Type: msgType, ID: sess.ID, Payload: payload})
}

func (c *wsConn) sendError(id, message, code string) {
	payload, _ := json.Marshal(map[string]string{"message": message, "code": code})
	c.send(WSMessage{Type: MsgTypeError, ID: id, Payload: payload})
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
		time.Now().Add(time.Second))
}
