package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	chatService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
)

// FanOut answers one conversation with several experts, reporting each answer as it lands.
type FanOut interface {
	AskEach(ctx context.Context, botIDs []string, messages []chat.Message, onAnswer func(chat.ExpertAnswer)) error
}

// Handler WebSocket多专家对话处理器
type Handler struct {
	log      *logger.Logger
	fanout   FanOut
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(log *logger.Logger, fanout FanOut) *Handler {
	return &Handler{
		log:    log.With("handler", "WebSocket"),
		fanout: fanout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type     string         `json:"type"`
	BotIDs   []string       `json:"botIds"`
	Messages []chat.Message `json:"messages"`
}

type outgoingMessage struct {
	Type  string `json:"type"`
	BotID string `json:"botId,omitempty"`
	Text  string `json:"text,omitempty"`
	Error bool   `json:"error,omitempty"`
}

// handleWebSocket 处理WebSocket连接
// Frames are read on their own goroutine so pongs keep the connection alive
// during a long fan-out and a disconnect cancels the experts still answering.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go h.pingLoop(ctx, conn)

	h.log.Debug("websocket connected", "remote", r.RemoteAddr)
	frames := h.readFrames(ctx, cancel, conn)
	for raw := range frames {
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.send(conn, outgoingMessage{Type: "error", Text: "invalid message payload"})
			continue
		}
		if msg.Type != "ask" {
			h.send(conn, outgoingMessage{Type: "error", Text: "unsupported message type: " + msg.Type})
			continue
		}
		h.handleAsk(ctx, conn, msg)
	}
	h.log.Debug("websocket closed", "remote", r.RemoteAddr)
}

// readFrames delivers inbound frames until the peer goes away, then cancels ctx.
func (h *Handler) readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) <-chan []byte {
	frames := make(chan []byte)
	go func() {
		defer close(frames)
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Warn("websocket read error", "error", err)
				}
				return
			}
			select {
			case frames <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames
}

func (h *Handler) handleAsk(ctx context.Context, conn *websocket.Conn, msg inboundMessage) {
	err := h.fanout.AskEach(ctx, msg.BotIDs, msg.Messages, func(answer chat.ExpertAnswer) {
		h.send(conn, outgoingMessage{Type: "answer", BotID: answer.BotID, Text: answer.Text, Error: answer.Error})
	})
	if err != nil {
		text := "Error processing your request"
		if rag.IsValidation(err) || errors.Is(err, chatService.ErrTooManyExperts) {
			text = err.Error()
		}
		h.send(conn, outgoingMessage{Type: "error", Text: text})
		return
	}
	h.send(conn, outgoingMessage{Type: "done"})
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write failed", "type", msg.Type, "error", err)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
