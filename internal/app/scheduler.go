package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

const announceTimeout = 10 * time.Second

// AnnouncementScheduler arms one-shot "quiz started" announcements. Every armed
// timer is backed by a persisted job so Reconcile can re-arm it after a restart.
type AnnouncementScheduler struct {
	jobs     JobStore
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	seq    uint64
	timers map[string]armedTimer
}

type armedTimer struct {
	timer  *time.Timer
	fireAt time.Time
	seq    uint64
}

func NewAnnouncementScheduler(jobs JobStore, notifier Notifier, logger *slog.Logger) *AnnouncementScheduler {
	return NewAnnouncementSchedulerWithClock(jobs, notifier, logger, time.Now)
}

// NewAnnouncementSchedulerWithClock is used by tests that need a fixed "now".
func NewAnnouncementSchedulerWithClock(jobs JobStore, notifier Notifier, logger *slog.Logger, now func() time.Time) *AnnouncementScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnnouncementScheduler{
		jobs:     jobs,
		notifier: notifier,
		log:      logger.With("component", "scheduler"),
		now:      now,
		timers:   make(map[string]armedTimer),
	}
}

// Schedule persists a pending job for quizID and arms its timer, replacing any
// timer already armed for the quiz.
func (s *AnnouncementScheduler) Schedule(ctx context.Context, quizID string, at time.Time) error {
	job := domain.AnnouncementJob{
		QuizID:    quizID,
		FireAt:    at,
		Status:    domain.JobPending,
		UpdatedAt: s.now(),
	}
	if err := s.jobs.Put(ctx, job); err != nil {
		return fmt.Errorf("persist announcement job: %w", err)
	}
	s.arm(quizID, at)
	s.log.Info("announcement armed", "quiz_id", quizID, "fire_at", at)
	return nil
}

// Cancel disarms the quiz's timer and removes its job. Cancelling a quiz with
// nothing armed is not an error.
func (s *AnnouncementScheduler) Cancel(ctx context.Context, quizID string) error {
	s.disarm(quizID)
	if err := s.jobs.Delete(ctx, quizID); err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return fmt.Errorf("delete announcement job: %w", err)
	}
	return nil
}

// Reconcile re-arms pending jobs found in the job store. Jobs whose fire time
// passed while nothing was running are announced immediately.
func (s *AnnouncementScheduler) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.jobs.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending announcements: %w", err)
	}
	now := s.now()
	for _, job := range pending {
		if job.FireAt.After(now) {
			s.arm(job.QuizID, job.FireAt)
			continue
		}
		s.log.Warn("announcement overdue, firing late", "quiz_id", job.QuizID, "fire_at", job.FireAt)
		s.announce(ctx, job.QuizID, job.FireAt)
	}
	s.log.Info("announcements reconciled", "pending", len(pending))
	return len(pending), nil
}

// Armed reports whether a timer is currently armed for quizID.
func (s *AnnouncementScheduler) Armed(quizID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[quizID]
	return ok
}

// Stop disarms every timer. Jobs stay pending for the next Reconcile.
func (s *AnnouncementScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *AnnouncementScheduler) arm(quizID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[quizID]; ok {
		prev.timer.Stop()
	}
	s.seq++
	seq := s.seq
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[quizID] = armedTimer{
		timer:  time.AfterFunc(delay, func() { s.fire(quizID, seq) }),
		fireAt: at,
		seq:    seq,
	}
}

func (s *AnnouncementScheduler) disarm(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if armed, ok := s.timers[quizID]; ok {
		armed.timer.Stop()
		delete(s.timers, quizID)
	}
}

func (s *AnnouncementScheduler) fire(quizID string, seq uint64) {
	s.mu.Lock()
	armed, ok := s.timers[quizID]
	if !ok || armed.seq != seq {
		// re-armed or cancelled after this timer was already running
		s.mu.Unlock()
		return
	}
	delete(s.timers, quizID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	s.announce(ctx, quizID, armed.fireAt)
}

// announce claims the stored job before publishing, so a job cancelled or
// rescheduled by any instance is skipped and only one instance announces.
func (s *AnnouncementScheduler) announce(ctx context.Context, quizID string, fireAt time.Time) {
	claimed, err := s.jobs.Claim(ctx, quizID, fireAt, s.now())
	if err != nil {
		s.log.Error("claim announcement", "quiz_id", quizID, "err", err)
		return
	}
	if !claimed {
		s.log.Info("announcement no longer pending, skipping", "quiz_id", quizID, "fire_at", fireAt)
		return
	}

	event := domain.Announcement{
		Type:      domain.AnnouncementQuizStarted,
		QuizID:    quizID,
		StartTime: fireAt,
	}
	if err := s.notifier.Announce(ctx, event); err != nil {
		// back to pending; the next Reconcile retries it
		s.log.Error("announce quiz start", "quiz_id", quizID, "err", err)
		if err := s.jobs.Release(ctx, quizID, fireAt, s.now()); err != nil {
			s.log.Error("release announcement", "quiz_id", quizID, "err", err)
		}
		return
	}
	s.log.Info("quiz started", "quiz_id", quizID)
}
