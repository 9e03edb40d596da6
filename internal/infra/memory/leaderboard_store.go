package memory

import (
	"context"
	"sync"

	"timed-quiz-service/internal/domain"
)

// LeaderboardStore is a versioned in-memory leaderboard store.
type LeaderboardStore struct {
	mu     sync.Mutex
	boards map[string]domain.Leaderboard
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{boards: make(map[string]domain.Leaderboard)}
}

func (s *LeaderboardStore) Get(_ context.Context, quizID string) (domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lb, ok := s.boards[quizID]
	if !ok {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	return cloneLeaderboard(lb), nil
}

func (s *LeaderboardStore) Save(_ context.Context, lb domain.Leaderboard, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.boards[lb.QuizID]
	switch {
	case !ok && expectedVersion != 0:
		return domain.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return domain.ErrVersionConflict
	}
	lb.Version = expectedVersion + 1
	s.boards[lb.QuizID] = cloneLeaderboard(lb)
	return nil
}

func cloneLeaderboard(lb domain.Leaderboard) domain.Leaderboard {
	out := lb
	out.Entries = append([]domain.LeaderboardEntry(nil), lb.Entries...)
	return out
}
