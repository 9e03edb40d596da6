package app_test

import (
	"context"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

var (
	teacher = domain.Identity{UserID: "teacher-1", Role: domain.RoleCreator, DisplayName: "Ms. Rivera"}
	other   = domain.Identity{UserID: "teacher-2", Role: domain.RoleCreator, DisplayName: "Mr. Okafor"}
	alice   = domain.Identity{UserID: "u1", Role: domain.RoleParticipant, DisplayName: "Alice"}
	bob     = domain.Identity{UserID: "u2", Role: domain.RoleParticipant, DisplayName: "Bob"}
)

// fakeClock is a manually advanced clock shared between services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		CreatorID:       "teacher-1",
		Title:           "Arithmetic",
		Description:     "Warm-up round",
		DurationMinutes: 5,
		TotalMarks:      4,
		Questions: []domain.Question{
			{
				ID:            "q1",
				QuizID:        "quiz-1",
				Prompt:        "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
				Marks:         2,
				NegativeMarks: 1,
			},
			{
				ID:            "q2",
				QuizID:        "quiz-1",
				Prompt:        "What is 3 * 3?",
				Options:       []string{"6", "9", "12"},
				CorrectAnswer: "9",
				Marks:         2,
				NegativeMarks: 1,
			},
		},
	}
}

// recordingNotifier captures announcements and optionally fails them.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Announcement
	fail   error
	got    chan domain.Announcement
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{got: make(chan domain.Announcement, 16)}
}

func (n *recordingNotifier) Announce(_ context.Context, event domain.Announcement) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.events = append(n.events, event)
	select {
	case n.got <- event:
	default:
	}
	return nil
}

func (n *recordingNotifier) Events() []domain.Announcement {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Announcement(nil), n.events...)
}

// fakeAnnouncer records scheduling calls without arming timers.
type fakeAnnouncer struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	cancelled []string
}

func newFakeAnnouncer() *fakeAnnouncer {
	return &fakeAnnouncer{scheduled: make(map[string]time.Time)}
}

func (a *fakeAnnouncer) Schedule(_ context.Context, quizID string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scheduled[quizID] = at
	return nil
}

func (a *fakeAnnouncer) Cancel(_ context.Context, quizID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.scheduled, quizID)
	a.cancelled = append(a.cancelled, quizID)
	return nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, quizID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, quizID)
}
