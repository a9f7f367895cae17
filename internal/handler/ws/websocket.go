package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/tripmate/backend/internal/model/dialogue"
	"github.com/tripmate/backend/internal/service/dialogue"
	"github.com/tripmate/backend/internal/service/session"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket问卷处理器
type Handler struct {
	sessions    *session.Store
	dialogue    *dialogue.Service
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// New 创建WebSocket处理器
func New(sessions *session.Store, dialogueSvc *dialogue.Service) *Handler {
	return &Handler{
		sessions: sessions,
		dialogue: dialogueSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout: readTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// Send implements dialogue.Sender.
func (c *conn) Send(_ context.Context, sessionID string, reply model.Reply) error {
	return c.writeJSON(outgoingMessage{
		Type:      "reply",
		SessionID: sessionID,
		Data:      reply,
		Timestamp: time.Now().Unix(),
	})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	h.sendInfo(c, sessionID, "connected", map[string]any{
		"startCommand": h.dialogue.Engine().Classifier().StartCommand,
		"exit":         h.dialogue.Engine().Locale().Exit,
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, sessionID, "session mismatch")
			ws.SetReadDeadline(time.Now().Add(h.readTimeout))
			continue
		}

		if !h.handleMessage(ctx, c, sessionID, &msg) {
			return
		}
		// 生成推荐可能阻塞较久，期间不会读取pong，读超时从本轮结束后重新计算
		ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

// handleMessage returns false when the connection should close.
func (h *Handler) handleMessage(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) bool {
	var (
		outcome model.Outcome
		err     error
	)
	switch msg.Type {
	case "start":
		outcome, err = h.dialogue.Start(ctx, sessionID, c)
	case "cancel":
		outcome, err = h.dialogue.Cancel(ctx, sessionID, c)
	case "message", "text":
		outcome, err = h.dialogue.Submit(ctx, sessionID, msg.Text, c)
	default:
		h.sendError(c, sessionID, "unknown message type: "+msg.Type)
		return true
	}

	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.sendError(c, sessionID, err.Error())
			return false
		}
		log.Printf("[websocket] session=%s turn failed: %v", sessionID, err)
		h.sendError(c, sessionID, err.Error())
		return ctx.Err() == nil
	}

	h.sendInfo(c, sessionID, "outcome", outcome)
	return true
}

func (h *Handler) sendInfo(c *conn, sessionID, kind string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (h *Handler) sendError(c *conn, sessionID, message string) {
	h.sendInfo(c, sessionID, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
