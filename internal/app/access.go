package app

import (
	"context"
	"crypto/subtle"
	"math"
	"time"

	"timed-quiz-service/internal/domain"
)

// Access states returned by ReadQuiz.
const (
	AccessFull    = "full"
	AccessPending = "pending"
	AccessOpen    = "open"
)

// PendingQuiz is all a participant learns about a quiz before it starts.
type PendingQuiz struct {
	QuizID          string    `json:"quizId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"startTime"`
	StartsInSeconds int64     `json:"startsInSeconds"`
}

// AccessResult is the single response shape of ReadQuiz: exactly one of
// Pending or Quiz is set.
type AccessResult struct {
	State   string       `json:"state"`
	Pending *PendingQuiz `json:"pending,omitempty"`
	Quiz    *domain.Quiz `json:"quiz,omitempty"`
}

// AccessGate decides what a caller may see of a quiz right now.
type AccessGate struct {
	quizzes QuizStore
	now     func() time.Time
}

func NewAccessGate(quizzes QuizStore) *AccessGate {
	return NewAccessGateWithClock(quizzes, time.Now)
}

func NewAccessGateWithClock(quizzes QuizStore, now func() time.Time) *AccessGate {
	return &AccessGate{quizzes: quizzes, now: now}
}

// ReadQuiz returns the quiz as the caller is allowed to see it.
func (g *AccessGate) ReadQuiz(ctx context.Context, caller domain.Identity, quizID, accessCode string) (AccessResult, error) {
	switch caller.Role {
	case domain.RoleCreator:
		quiz, err := g.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			return AccessResult{}, err
		}
		return AccessResult{State: AccessFull, Quiz: &quiz}, nil
	case domain.RoleParticipant:
		return g.readAsParticipant(ctx, quizID, accessCode)
	default:
		return AccessResult{}, domain.ErrInvalidRole
	}
}

func (g *AccessGate) readAsParticipant(ctx context.Context, quizID, accessCode string) (AccessResult, error) {
	quiz, err := g.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AccessResult{}, err
	}
	now := g.now()

	if quiz.StartTime != nil && quiz.StartTime.After(now) {
		return AccessResult{
			State: AccessPending,
			Pending: &PendingQuiz{
				QuizID:          quiz.ID,
				Title:           quiz.Title,
				Description:     quiz.Description,
				StartTime:       *quiz.StartTime,
				StartsInSeconds: int64(math.Ceil(quiz.StartTime.Sub(now).Seconds())),
			},
		}, nil
	}

	if quiz.IsProtected {
		if quiz.AccessCode == "" || subtle.ConstantTimeCompare([]byte(quiz.AccessCode), []byte(accessCode)) != 1 {
			return AccessResult{}, domain.ErrInvalidAccessCode
		}
		if quiz.AccessCodeExpiry == nil || now.After(*quiz.AccessCodeExpiry) {
			return AccessResult{}, domain.ErrAccessCodeExpired
		}
	}

	view := participantView(quiz)
	return AccessResult{State: AccessOpen, Quiz: &view}, nil
}

// participantView strips answer keys and access-code fields.
func participantView(quiz domain.Quiz) domain.Quiz {
	view := quiz
	view.AccessCode = ""
	view.AccessCodeExpiry = nil
	view.Questions = make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.CorrectAnswer = ""
		q.Options = append([]string(nil), q.Options...)
		view.Questions[i] = q
	}
	return view
}
