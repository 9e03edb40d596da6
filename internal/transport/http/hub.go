package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

const clientBuffer = 16

// Hub tracks websocket clients by topic and pushes announcements to them.
// It implements the scheduler's Notifier for this process.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
	log    *slog.Logger
}

type client struct {
	send chan []byte

	// topics is owned by the hub and guarded by Hub.mu.
	topics map[string]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		log:    logger.With("component", "hub"),
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startedPayload struct {
	QuizID    string    `json:"quizId"`
	StartTime time.Time `json:"startTime"`
}

// Announce delivers event to every client on the quiz topic. Slow clients lose
// their oldest queued message rather than blocking the broadcast.
func (h *Hub) Announce(_ context.Context, event domain.Announcement) error {
	data, err := json.Marshal(outboundMessage[startedPayload]{
		Type:    event.Type,
		Payload: startedPayload{QuizID: event.QuizID, StartTime: event.StartTime},
	})
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}
	delivered := h.broadcast(domain.Topic(event.QuizID), data)
	h.log.Info("announcement delivered", "quiz_id", event.QuizID, "type", event.Type, "clients", delivered)
	return nil
}

func (h *Hub) broadcast(topic string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.topics[topic]
	for c := range members {
		select {
		case c.send <- data:
		default:
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}
	return len(members)
}

func (h *Hub) register() *client {
	return &client{send: make(chan []byte, clientBuffer), topics: make(map[string]struct{})}
}

func (h *Hub) join(c *client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*client]struct{})
		h.topics[topic] = members
	}
	members[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

// unregister removes c from all topics. No broadcast can reach c afterwards,
// so the caller may close c.send.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range c.topics {
		members := h.topics[topic]
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	c.topics = nil
}

// Members reports how many clients listen on a topic.
func (h *Hub) Members(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
