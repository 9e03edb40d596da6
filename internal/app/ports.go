package app

import (
	"context"
	"time"

	"timed-quiz-service/internal/domain"
)

// QuizStore is the durable quiz/question store. GetQuiz returns the quiz with
// its questions in order.
type QuizStore interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	UpdateSchedule(ctx context.Context, quizID string, schedule domain.Schedule) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// QuizReader loads quiz content, possibly from a cache. Only fields that do not
// change after publication (creator, marks, questions) should be trusted.
type QuizReader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Invalidator drops cached state for a quiz.
type Invalidator interface {
	Invalidate(ctx context.Context, quizID string)
}

// SubmissionStore persists submissions. Create must reject a second submission
// for the same (quiz, participant) atomically with domain.ErrAlreadySubmitted.
type SubmissionStore interface {
	Create(ctx context.Context, submission domain.Submission) error
	Exists(ctx context.Context, quizID, participantID string) (bool, error)
	Get(ctx context.Context, quizID, participantID string) (domain.Submission, error)
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Submission, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error)
}

// LeaderboardStore holds one versioned leaderboard document per quiz.
// Save succeeds only if the stored version equals expectedVersion (0 means the
// document must not exist yet); otherwise it returns domain.ErrVersionConflict.
type LeaderboardStore interface {
	Get(ctx context.Context, quizID string) (domain.Leaderboard, error)
	Save(ctx context.Context, lb domain.Leaderboard, expectedVersion int64) error
}

// JobStore persists armed start announcements so they survive restarts and are
// shared by every instance.
//
// Claim moves the quiz's job from pending to fired only if it is still pending
// with the given fire time, and reports whether it did. A cancelled or
// rescheduled job is never claimed. Release undoes a claim after a failed
// announcement, under the same condition.
type JobStore interface {
	Put(ctx context.Context, job domain.AnnouncementJob) error
	Delete(ctx context.Context, quizID string) error
	Claim(ctx context.Context, quizID string, fireAt, at time.Time) (bool, error)
	Release(ctx context.Context, quizID string, fireAt, at time.Time) error
	ListPending(ctx context.Context) ([]domain.AnnouncementJob, error)
}

// EphemeralStore is a key/value cache with per-entry time-to-live.
// Get returns domain.ErrKeyNotFound for missing or expired keys.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// QuestionSource supplies randomized trivia for instant trials.
type QuestionSource interface {
	Fetch(ctx context.Context, amount int) ([]domain.TrialSourceQuestion, error)
}

// Notifier publishes announcements to a quiz's broadcast topic.
type Notifier interface {
	Announce(ctx context.Context, event domain.Announcement) error
}

// Announcer arms and disarms start announcements.
type Announcer interface {
	Schedule(ctx context.Context, quizID string, at time.Time) error
	Cancel(ctx context.Context, quizID string) error
}

// ScoreRecorder receives evaluated scores.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, score domain.Score) (domain.Leaderboard, error)
}

func isCreator(caller domain.Identity, quiz domain.Quiz) bool {
	return caller.Role == domain.RoleCreator && caller.UserID != "" && caller.UserID == quiz.CreatorID
}
