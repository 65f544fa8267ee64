package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"mrilo/internal/domain/models"
	llmSvc "mrilo/internal/domain/services/llm"
	"mrilo/internal/formatting"
	"mrilo/internal/httputil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 << 10
)

// Socket events
const (
	EventMessage = "message"
	EventTyping  = "typing"
	EventReply   = "reply"
	EventError   = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketIncoming is a frame sent by the client
type SocketIncoming struct {
	Event   string             `json:"event"`
	Ref     string             `json:"ref"`
	Payload models.ChatRequest `json:"payload"`
}

// SocketOutgoing is a frame sent to the client. Reply payloads are chat
// envelopes; HTML carries the reply rendered from Markdown.
type SocketOutgoing struct {
	Event   string      `json:"event"`
	Ref     string      `json:"ref,omitempty"`
	Status  int         `json:"status,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	HTML    string      `json:"html,omitempty"`
}

// SocketHandler serves chat over a websocket: each message frame is answered
// with a typing frame followed by one envelope frame.
type SocketHandler struct {
	chatService llmSvc.ChatService
	pongWait    time.Duration
	logger      *slog.Logger
}

// NewSocketHandler creates a new websocket chat handler
func NewSocketHandler(chatService llmSvc.ChatService, logger *slog.Logger) *SocketHandler {
	return &SocketHandler{chatService: chatService, pongWait: defaultPongWait, logger: logger}
}

// ServeChat upgrades the connection and answers messages until the peer leaves
// GET /ws/chat
func (h *SocketHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s := &socket{conn: conn}
	userID := httputil.GetUserID(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		conn.Close()
	}()

	pongWait := h.pongWait
	// Pings go out before the peer's pong is due
	go s.pingLoop(ctx, pongWait*9/10)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		var msg SocketIncoming
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event != EventMessage {
			s.send(SocketOutgoing{
				Event:   EventError,
				Ref:     msg.Ref,
				Status:  http.StatusBadRequest,
				Payload: formatting.ErrorResponse("Invalid message frame", http.StatusBadRequest),
			})
			continue
		}

		bindCaller(&msg.Payload, userID)

		if err := s.send(SocketOutgoing{Event: EventTyping, Ref: msg.Ref}); err != nil {
			return
		}
		env := h.chatService.HandleChat(ctx, &msg.Payload)
		// Pongs are not read while a reply is generated
		conn.SetReadDeadline(time.Now().Add(pongWait))

		out := SocketOutgoing{Event: EventReply, Ref: msg.Ref, Status: env.Status, Payload: env}
		if env.IsError() {
			out.Event = EventError
		} else if env.Reply != nil {
			rendered, err := formatting.RenderMarkdown(env.Reply.Response)
			if err != nil {
				h.logger.Warn("failed to render reply", "error", err)
			}
			out.HTML = rendered
		}
		if err := s.send(out); err != nil {
			return
		}
	}
}

// socket serializes writes from the read loop and the pinger
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) send(msg SocketOutgoing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *socket) pingLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
