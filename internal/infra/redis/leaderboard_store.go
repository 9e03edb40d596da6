package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/domain"
)

// LeaderboardStore keeps one JSON leaderboard document per quiz and guards
// writes with WATCH/MULTI so concurrent writers fail instead of overwriting.
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Get(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	return s.read(ctx, s.client, quizID)
}

func (s *LeaderboardStore) Save(ctx context.Context, lb domain.Leaderboard, expectedVersion int64) error {
	key := s.key(lb.QuizID)
	lb.Version = expectedVersion + 1
	data, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, lb.QuizID)
		switch {
		case errors.Is(err, domain.ErrLeaderboardNotFound):
			if expectedVersion != 0 {
				return domain.ErrVersionConflict
			}
		case err != nil:
			return err
		case current.Version != expectedVersion:
			return domain.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func (s *LeaderboardStore) read(ctx context.Context, c redis.Cmdable, quizID string) (domain.Leaderboard, error) {
	data, err := c.Get(ctx, s.key(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	if err != nil {
		return domain.Leaderboard{}, err
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(data, &lb); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return lb, nil
}

func (s *LeaderboardStore) key(quizID string) string {
	return "leaderboard:" + quizID
}
