package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/domain"
)

// WSHandler upgrades push-channel connections and subscribes them to quiz topics.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(hub *Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.With("component", "ws"),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	QuizID string `json:"quizId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request; ?quizId= joins that quiz's topic immediately and
// {"type":"joinQuiz","payload":{"quizId":...}} joins more later.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := h.hub.register()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws write error", "err", err)
				return
			}
		}
	}()

	if quizID := strings.TrimSpace(r.URL.Query().Get("quizId")); quizID != "" {
		h.join(c, quizID)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "joinQuiz":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || strings.TrimSpace(payload.QuizID) == "" {
				h.reply(c, "error", errorPayload{Message: "invalid joinQuiz payload"})
				continue
			}
			h.join(c, strings.TrimSpace(payload.QuizID))
		default:
			h.reply(c, "error", errorPayload{Message: "unsupported message type"})
		}
	}

	h.hub.unregister(c)
	close(c.send)
	<-writerDone
}

func (h *WSHandler) join(c *client, quizID string) {
	h.hub.join(c, domain.Topic(quizID))
	h.reply(c, "joined", joinPayload{QuizID: quizID})
}

// reply queues a direct message; it never blocks the read loop.
func (h *WSHandler) reply(c *client, typ string, payload any) {
	data, err := json.Marshal(outboundMessage[any]{Type: typ, Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Debug("ws reply dropped", "type", typ)
	}
}
