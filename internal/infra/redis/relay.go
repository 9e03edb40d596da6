package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/domain"
)

// DefaultRelayChannel carries start announcements between instances.
const DefaultRelayChannel = "quiz-events"

// LocalNotifier delivers an announcement to connections held by this process.
type LocalNotifier interface {
	Announce(ctx context.Context, event domain.Announcement) error
}

// Relay fans announcements out to every instance through Redis pub/sub, so a
// timer armed on one node reaches participants connected to another.
type Relay struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRelay(client *redis.Client, channel string, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, channel: channel, log: logger.With("component", "relay")}
}

// Announce publishes the event; delivery happens in each instance's Run loop.
func (r *Relay) Announce(ctx context.Context, event domain.Announcement) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the relay channel and forwards every event to local until
// ctx is cancelled.
func (r *Relay) Run(ctx context.Context, local LocalNotifier) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.Announcement
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Warn("drop malformed announcement", "err", err)
				continue
			}
			if err := local.Announce(ctx, event); err != nil {
				r.log.Warn("deliver announcement", "quiz_id", event.QuizID, "err", err)
			}
		}
	}
}
