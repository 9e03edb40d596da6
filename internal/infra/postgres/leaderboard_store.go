package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

// LeaderboardStore keeps one row per quiz with the ranked entries as jsonb and a
// version column used for compare-and-swap.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

func (s *LeaderboardStore) Get(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	var (
		lb      domain.Leaderboard
		entries []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT quiz_id, entries, version, updated_at FROM leaderboards WHERE quiz_id=$1`, quizID,
	).Scan(&lb.QuizID, &entries, &lb.Version, &lb.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load leaderboard: %w", err)
	}
	if err := json.Unmarshal(entries, &lb.Entries); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	lb.UpdatedAt = lb.UpdatedAt.UTC()
	return lb, nil
}

func (s *LeaderboardStore) Save(ctx context.Context, lb domain.Leaderboard, expectedVersion int64) error {
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	entries, err := json.Marshal(lb.Entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO leaderboards (quiz_id, entries, version, updated_at)
			VALUES ($1, $2, $3::bigint + 1, $4)
			ON CONFLICT (quiz_id) DO NOTHING`
	} else {
		query = `
			UPDATE leaderboards SET entries = $2, version = $3::bigint + 1, updated_at = $4
			WHERE quiz_id = $1 AND version = $3`
	}
	tag, err := s.pool.Exec(ctx, query, lb.QuizID, string(entries), expectedVersion, lb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save leaderboard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
