package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"timed-quiz-service/internal/domain"
)

// PublishResult is returned to the quiz creator only; the access code is not
// exposed through any participant read.
type PublishResult struct {
	AccessCode       string    `json:"accessCode"`
	StartTime        time.Time `json:"startTime"`
	AccessCodeExpiry time.Time `json:"accessCodeExpiry"`
}

// Publisher sets a quiz's access code and start window and arms the start
// announcement.
type Publisher struct {
	quizzes   QuizStore
	announcer Announcer
	cache     Invalidator
	log       *slog.Logger
	now       func() time.Time
	newCode   func() (string, error)
}

// NewPublisher builds a Publisher. cache may be nil.
func NewPublisher(quizzes QuizStore, announcer Announcer, cache Invalidator, logger *slog.Logger) *Publisher {
	return NewPublisherWithClock(quizzes, announcer, cache, logger, time.Now)
}

func NewPublisherWithClock(quizzes QuizStore, announcer Announcer, cache Invalidator, logger *slog.Logger, now func() time.Time) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		quizzes:   quizzes,
		announcer: announcer,
		cache:     cache,
		log:       logger.With("component", "publisher"),
		now:       now,
		newCode:   generateAccessCode,
	}
}

// Publish protects the quiz with a fresh access code valid from startTime for
// the quiz duration.
func (p *Publisher) Publish(ctx context.Context, caller domain.Identity, quizID, startTime string) (PublishResult, error) {
	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return PublishResult{}, err
	}
	if !isCreator(caller, quiz) {
		return PublishResult{}, domain.ErrNotAuthorized
	}

	code, err := p.newCode()
	if err != nil {
		return PublishResult{}, fmt.Errorf("generate access code: %w", err)
	}
	start, err := parseStartTime(startTime)
	if err != nil {
		return PublishResult{}, err
	}
	schedule := domain.Schedule{
		AccessCode:       code,
		StartTime:        start,
		AccessCodeExpiry: start.Add(quiz.Duration()),
	}
	if err := p.quizzes.UpdateSchedule(ctx, quizID, schedule); err != nil {
		return PublishResult{}, fmt.Errorf("save quiz schedule: %w", err)
	}

	if start.After(p.now()) {
		// the schedule is already committed; a missed announcement does not
		// change when the quiz opens
		if err := p.announcer.Schedule(ctx, quizID, start); err != nil {
			p.log.Error("arm start announcement", "quiz_id", quizID, "start_time", start, "err", err)
		}
	} else {
		p.log.Warn("start time is in the past, skipping announcement", "quiz_id", quizID, "start_time", start)
		if err := p.announcer.Cancel(ctx, quizID); err != nil {
			p.log.Error("cancel stale announcement", "quiz_id", quizID, "err", err)
		}
	}

	return PublishResult{
		AccessCode:       schedule.AccessCode,
		StartTime:        schedule.StartTime,
		AccessCodeExpiry: schedule.AccessCodeExpiry,
	}, nil
}

// DeleteQuiz removes a quiz and disarms its pending announcement.
func (p *Publisher) DeleteQuiz(ctx context.Context, caller domain.Identity, quizID string) error {
	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if !isCreator(caller, quiz) {
		return domain.ErrNotAuthorized
	}
	if err := p.announcer.Cancel(ctx, quizID); err != nil {
		return err
	}
	if err := p.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if p.cache != nil {
		p.cache.Invalidate(ctx, quizID)
	}
	p.log.Info("quiz deleted", "quiz_id", quizID)
	return nil
}

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// parseStartTime accepts RFC 3339 timestamps; values without a zone are UTC.
func parseStartTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.ErrInvalidStartTime
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.ErrInvalidStartTime
}

func generateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
