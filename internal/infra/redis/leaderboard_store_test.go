package redis

import (
	"context"
	"sync"
	"testing"

	"timed-quiz-service/internal/domain"
)

func TestLeaderboardStoreCompareAndSwap(t *testing.T) {
	mr := startMiniredis(t)
	store := NewLeaderboardStore(newClient(mr))
	ctx := context.Background()

	if _, err := store.Get(ctx, "quiz-1"); err != domain.ErrLeaderboardNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, domain.Leaderboard{QuizID: "quiz-1"}, 3); err != domain.ErrVersionConflict {
		t.Fatalf("expected conflict updating a missing board, got %v", err)
	}

	board := domain.Leaderboard{
		QuizID:  "quiz-1",
		Entries: []domain.LeaderboardEntry{{ParticipantID: "u1", Score: 3, TimeTakenMs: 1000, Rank: 1}},
	}
	if err := store.Save(ctx, board, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Save(ctx, board, 0); err != domain.ErrVersionConflict {
		t.Fatalf("expected conflict on second create, got %v", err)
	}

	got, err := store.Get(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || len(got.Entries) != 1 || got.Entries[0].ParticipantID != "u1" {
		t.Fatalf("unexpected board %+v", got)
	}
	if err := store.Save(ctx, got, got.Version); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Save(ctx, got, got.Version); err != domain.ErrVersionConflict {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}
}

func TestLeaderboardStoreSingleWinnerPerVersion(t *testing.T) {
	mr := startMiniredis(t)
	store := NewLeaderboardStore(newClient(mr))
	ctx := context.Background()

	if err := store.Save(ctx, domain.Leaderboard{QuizID: "quiz-1"}, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	var mu sync.Mutex
	wins := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Save(ctx, domain.Leaderboard{QuizID: "quiz-1"}, 1)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if err != domain.ErrVersionConflict {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one writer to win, got %d", wins)
	}
	got, _ := store.Get(ctx, "quiz-1")
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
}
