package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func newBoard(store app.LeaderboardStore, submissions app.SubmissionStore, maxRetries int) *app.LeaderboardService {
	return app.NewLeaderboardService(store, memory.NewQuizStore(sampleQuiz()), submissions, 10, maxRetries, nil)
}

func record(t *testing.T, board *app.LeaderboardService, participant string, score float64, timeTaken int64) domain.Leaderboard {
	t.Helper()
	lb, err := board.RecordScore(context.Background(), domain.Score{
		QuizID:        "quiz-1",
		ParticipantID: participant,
		DisplayName:   participant,
		Score:         score,
		TimeTakenMs:   timeTaken,
	})
	if err != nil {
		t.Fatalf("record %s: %v", participant, err)
	}
	return lb
}

func TestLeaderboardOrdersByScoreThenTime(t *testing.T) {
	board := newBoard(memory.NewLeaderboardStore(), memory.NewSubmissionStore(), 0)

	record(t, board, "A", 10, 5000)
	record(t, board, "B", 10, 3000)
	lb := record(t, board, "C", 8, 1000)

	want := []struct {
		id   string
		rank int
	}{{"B", 1}, {"A", 2}, {"C", 3}}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), lb.Entries)
	}
	for i, w := range want {
		if lb.Entries[i].ParticipantID != w.id || lb.Entries[i].Rank != w.rank {
			t.Fatalf("position %d: expected %s rank %d, got %+v", i, w.id, w.rank, lb.Entries[i])
		}
	}
	if lb.Version != 3 {
		t.Fatalf("expected version 3, got %d", lb.Version)
	}
}

func TestRankEntriesDenseTies(t *testing.T) {
	entries := app.RankEntries([]domain.LeaderboardEntry{
		{ParticipantID: "x", Score: 5, TimeTakenMs: 100},
		{ParticipantID: "y", Score: 7, TimeTakenMs: 900},
		{ParticipantID: "z", Score: 5, TimeTakenMs: 100},
		{ParticipantID: "w", Score: 5, TimeTakenMs: 200},
	})
	ranks := []int{entries[0].Rank, entries[1].Rank, entries[2].Rank, entries[3].Rank}
	if fmt.Sprint(ranks) != "[1 2 2 3]" {
		t.Fatalf("expected dense ranks [1 2 2 3], got %v (%+v)", ranks, entries)
	}
	if entries[0].ParticipantID != "y" || entries[3].ParticipantID != "w" {
		t.Fatalf("unexpected order %+v", entries)
	}
}

func TestLeaderboardKeepsTopTen(t *testing.T) {
	board := newBoard(memory.NewLeaderboardStore(), memory.NewSubmissionStore(), 0)

	var lb domain.Leaderboard
	for i := 0; i < 15; i++ {
		lb = record(t, board, fmt.Sprintf("p%02d", i), float64(i), 1000)
	}
	if len(lb.Entries) != app.DefaultLeaderboardSize {
		t.Fatalf("expected 10 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].ParticipantID != "p14" || lb.Entries[9].ParticipantID != "p05" {
		t.Fatalf("expected p14..p05, got %s..%s", lb.Entries[0].ParticipantID, lb.Entries[9].ParticipantID)
	}
}

func TestConcurrentRecordScoreLosesNothing(t *testing.T) {
	store := memory.NewLeaderboardStore()
	// Two services over one store stand in for two processes.
	boards := []*app.LeaderboardService{
		newBoard(store, memory.NewSubmissionStore(), 200),
		newBoard(store, memory.NewSubmissionStore(), 200),
	}

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := boards[i%2].RecordScore(context.Background(), domain.Score{
				QuizID:        "quiz-1",
				ParticipantID: fmt.Sprintf("p%02d", i),
				Score:         float64(i),
				TimeTakenMs:   int64(1000 + i),
			})
			if err != nil {
				t.Errorf("record p%02d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	lb, err := boards[0].Get(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lb.Version != writers {
		t.Fatalf("expected %d committed writes, got version %d", writers, lb.Version)
	}
	if len(lb.Entries) != 10 || lb.Entries[0].ParticipantID != "p39" || lb.Entries[9].ParticipantID != "p30" {
		t.Fatalf("top ten lost an update: %+v", lb.Entries)
	}
}

// conflictingStore loses the first n compare-and-swaps.
type conflictingStore struct {
	*memory.LeaderboardStore
	remaining atomic.Int32
}

func (s *conflictingStore) Save(ctx context.Context, lb domain.Leaderboard, expected int64) error {
	if s.remaining.Add(-1) >= 0 {
		return domain.ErrVersionConflict
	}
	return s.LeaderboardStore.Save(ctx, lb, expected)
}

func TestRecordScoreRetriesConflicts(t *testing.T) {
	store := &conflictingStore{LeaderboardStore: memory.NewLeaderboardStore()}
	store.remaining.Store(3)
	board := newBoard(store, memory.NewSubmissionStore(), 4)
	record(t, board, "A", 1, 1)

	store.remaining.Store(100)
	_, err := board.RecordScore(context.Background(), domain.Score{QuizID: "quiz-1", ParticipantID: "B"})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected conflict after exhausting retries, got %v", err)
	}
}

func TestLeaderboardReset(t *testing.T) {
	ctx := context.Background()
	board := newBoard(memory.NewLeaderboardStore(), memory.NewSubmissionStore(), 0)

	if err := board.Reset(ctx, teacher, "quiz-1"); err != domain.ErrLeaderboardNotFound {
		t.Fatalf("expected ErrLeaderboardNotFound before any score, got %v", err)
	}
	record(t, board, "A", 3, 100)

	for _, caller := range []domain.Identity{alice, other} {
		if err := board.Reset(ctx, caller, "quiz-1"); err != domain.ErrNotAuthorized {
			t.Fatalf("%s: expected ErrNotAuthorized, got %v", caller.UserID, err)
		}
	}
	if err := board.Reset(ctx, teacher, "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if err := board.Reset(ctx, teacher, "quiz-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	lb, err := board.Get(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lb.Entries == nil || len(lb.Entries) != 0 || lb.Version != 2 {
		t.Fatalf("expected an empty board at version 2, got %+v", lb)
	}
}

func TestLeaderboardRebuildFromSubmissions(t *testing.T) {
	ctx := context.Background()
	submissions := memory.NewSubmissionStore()
	for i := 0; i < 12; i++ {
		_ = submissions.Create(ctx, domain.Submission{
			QuizID:        "quiz-1",
			ParticipantID: fmt.Sprintf("p%02d", i),
			Score:         float64(i % 4),
			TimeTakenMs:   int64(100 * i),
			SubmittedAt:   epoch.Add(time.Duration(i) * time.Second),
		})
	}
	board := newBoard(memory.NewLeaderboardStore(), submissions, 0)
	record(t, board, "stale", 99, 1)

	lb, err := board.Rebuild(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(lb.Entries) != 10 || lb.Version != 2 {
		t.Fatalf("expected 10 entries at version 2, got %d at %d", len(lb.Entries), lb.Version)
	}
	// score 3: p03, p07, p11 (fastest first)
	if lb.Entries[0].ParticipantID != "p03" || lb.Entries[2].ParticipantID != "p11" || lb.Entries[3].Rank != 4 {
		t.Fatalf("unexpected rebuilt order %+v", lb.Entries)
	}
	for _, e := range lb.Entries {
		if e.ParticipantID == "stale" {
			t.Fatal("rebuild must drop entries without a submission")
		}
	}
}

// lateSubmissions runs afterList once, right after the first listing.
type lateSubmissions struct {
	*memory.SubmissionStore
	once      sync.Once
	afterList func()
}

func (s *lateSubmissions) ListByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error) {
	subs, err := s.SubmissionStore.ListByQuiz(ctx, quizID)
	s.once.Do(s.afterList)
	return subs, err
}

func TestRebuildKeepsConcurrentScore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLeaderboardStore()
	submissions := &lateSubmissions{SubmissionStore: memory.NewSubmissionStore()}
	_ = submissions.Create(ctx, domain.Submission{QuizID: "quiz-1", ParticipantID: "early", Score: 1, TimeTakenMs: 500})

	// a second process submits while the rebuild is between listing and saving
	writer := newBoard(store, submissions.SubmissionStore, 0)
	submissions.afterList = func() {
		_ = submissions.Create(ctx, domain.Submission{QuizID: "quiz-1", ParticipantID: "late", Score: 2, TimeTakenMs: 400})
		record(t, writer, "late", 2, 400)
	}

	board := newBoard(store, submissions, 0)
	lb, err := board.Rebuild(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].ParticipantID != "late" || lb.Entries[1].ParticipantID != "early" {
		t.Fatalf("rebuild dropped the concurrent score: %+v", lb.Entries)
	}
	if lb.Version != 2 {
		t.Fatalf("expected the rebuild to commit after the concurrent write, got version %d", lb.Version)
	}
}

func TestRecordScoreReplacesParticipantEntry(t *testing.T) {
	board := newBoard(memory.NewLeaderboardStore(), memory.NewSubmissionStore(), 0)

	record(t, board, "A", 3, 100)
	lb := record(t, board, "A", 5, 90)
	if len(lb.Entries) != 1 || lb.Entries[0].Score != 5 {
		t.Fatalf("expected one entry for A, got %+v", lb.Entries)
	}
}
