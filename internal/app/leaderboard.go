package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

const (
	DefaultLeaderboardSize = 10
	defaultMaxRetries      = 8
	lockStripes            = 64
)

// LeaderboardService maintains the ranked, size-bounded standings of each quiz.
// Writes are serialized per quiz inside the process and use compare-and-swap
// against the store, so concurrent writers in other processes cannot lose updates.
type LeaderboardService struct {
	store       LeaderboardStore
	quizzes     QuizStore
	submissions SubmissionStore
	size        int
	maxRetries  int
	log         *slog.Logger
	now         func() time.Time

	stripes [lockStripes]sync.Mutex
}

func NewLeaderboardService(store LeaderboardStore, quizzes QuizStore, submissions SubmissionStore, size, maxRetries int, logger *slog.Logger) *LeaderboardService {
	return NewLeaderboardServiceWithClock(store, quizzes, submissions, size, maxRetries, logger, time.Now)
}

func NewLeaderboardServiceWithClock(store LeaderboardStore, quizzes QuizStore, submissions SubmissionStore, size, maxRetries int, logger *slog.Logger, now func() time.Time) *LeaderboardService {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{
		store:       store,
		quizzes:     quizzes,
		submissions: submissions,
		size:        size,
		maxRetries:  maxRetries,
		log:         logger.With("component", "leaderboard"),
		now:         now,
	}
}

// RecordScore adds a participant's score, re-ranks and truncates the board. An
// entry already present for the participant is replaced.
func (s *LeaderboardService) RecordScore(ctx context.Context, score domain.Score) (domain.Leaderboard, error) {
	return s.mutate(ctx, score.QuizID, true, func(lb *domain.Leaderboard, now time.Time) error {
		entries := make([]domain.LeaderboardEntry, 0, len(lb.Entries)+1)
		for _, e := range lb.Entries {
			if e.ParticipantID != score.ParticipantID {
				entries = append(entries, e)
			}
		}
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: score.ParticipantID,
			DisplayName:   score.DisplayName,
			Score:         score.Score,
			TimeTakenMs:   score.TimeTakenMs,
			SubmittedAt:   now,
		})
		lb.Entries = truncate(RankEntries(entries), s.size)
		return nil
	})
}

// Get returns the current standings of a quiz.
func (s *LeaderboardService) Get(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	lb, err := s.store.Get(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	return lb, nil
}

// Reset empties a quiz's leaderboard, keeping the document. Only the quiz's
// creator may reset it.
func (s *LeaderboardService) Reset(ctx context.Context, caller domain.Identity, quizID string) error {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if !isCreator(caller, quiz) {
		return domain.ErrNotAuthorized
	}
	_, err = s.mutate(ctx, quizID, false, func(lb *domain.Leaderboard, _ time.Time) error {
		lb.Entries = []domain.LeaderboardEntry{}
		return nil
	})
	if err == nil {
		s.log.Info("leaderboard reset", "quiz_id", quizID, "by", caller.UserID)
	}
	return err
}

// Rebuild recomputes the leaderboard from the authoritative submission set.
// Submissions are listed after each load of the board, so a score recorded
// concurrently either fails the swap or is already in the listing.
func (s *LeaderboardService) Rebuild(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	return s.mutate(ctx, quizID, true, func(lb *domain.Leaderboard, _ time.Time) error {
		subs, err := s.submissions.ListByQuiz(ctx, quizID)
		if err != nil {
			return fmt.Errorf("list submissions: %w", err)
		}
		lb.Entries = truncate(RankEntries(entriesFromSubmissions(subs)), s.size)
		return nil
	})
}

func (s *LeaderboardService) mutate(ctx context.Context, quizID string, create bool, apply func(*domain.Leaderboard, time.Time) error) (domain.Leaderboard, error) {
	mu := s.lockFor(quizID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		lb, err := s.store.Get(ctx, quizID)
		switch {
		case errors.Is(err, domain.ErrLeaderboardNotFound):
			if !create {
				return domain.Leaderboard{}, err
			}
			lb = domain.Leaderboard{QuizID: quizID}
		case err != nil:
			return domain.Leaderboard{}, fmt.Errorf("load leaderboard: %w", err)
		}

		expected := lb.Version
		now := s.now()
		if err := apply(&lb, now); err != nil {
			return domain.Leaderboard{}, err
		}
		lb.Version = expected + 1
		lb.UpdatedAt = now

		err = s.store.Save(ctx, lb, expected)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.Debug("leaderboard write conflict, retrying", "quiz_id", quizID, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Leaderboard{}, fmt.Errorf("save leaderboard: %w", err)
		}
		return lb, nil
	}
	return domain.Leaderboard{}, fmt.Errorf("leaderboard %s: %w after %d attempts", quizID, domain.ErrVersionConflict, s.maxRetries)
}

func (s *LeaderboardService) lockFor(quizID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(quizID))
	return &s.stripes[h.Sum32()%lockStripes]
}

// RankEntries sorts by score descending then time taken ascending and assigns
// dense ranks. An entry shares its predecessor's rank only when both score and
// time taken are equal. The input slice is reordered in place.
func RankEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TimeTakenMs < entries[j].TimeTakenMs
	})
	for i := range entries {
		switch {
		case i == 0:
			entries[i].Rank = 1
		case entries[i].Score == entries[i-1].Score && entries[i].TimeTakenMs == entries[i-1].TimeTakenMs:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = entries[i-1].Rank + 1
		}
	}
	return entries
}

func truncate(entries []domain.LeaderboardEntry, size int) []domain.LeaderboardEntry {
	if len(entries) > size {
		return entries[:size:size]
	}
	return entries
}

func entriesFromSubmissions(subs []domain.Submission) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(subs))
	for _, sub := range subs {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: sub.ParticipantID,
			DisplayName:   sub.DisplayName,
			Score:         sub.Score,
			TimeTakenMs:   sub.TimeTakenMs,
			SubmittedAt:   sub.SubmittedAt,
		})
	}
	return entries
}
