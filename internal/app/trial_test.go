package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

// triviaSource serves escaped questions, like the public trivia API does.
type triviaSource struct {
	mu        sync.Mutex
	requested []int
	err       error
}

func (s *triviaSource) Fetch(_ context.Context, amount int) ([]domain.TrialSourceQuestion, error) {
	s.mu.Lock()
	s.requested = append(s.requested, amount)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.TrialSourceQuestion, amount)
	for i := range out {
		out[i] = domain.TrialSourceQuestion{
			Prompt:        "What&#039;s 2 + 2?",
			CorrectAnswer: "4",
			Distractors:   []string{"3", "5", "&quot;22&quot;"},
		}
	}
	return out, nil
}

func newTrialService(source app.QuestionSource, clock *fakeClock, cfg app.TrialConfig) *app.TrialService {
	return app.NewTrialService(source, memory.NewEphemeralStoreWithClock(clock.Now), cfg, nil)
}

func answersOf(n int, value string) []*string {
	out := make([]*string, n)
	for i := range out {
		v := value
		out[i] = &v
	}
	return out
}

func TestAnonymousTrial(t *testing.T) {
	ctx := context.Background()
	source := &triviaSource{}
	clock := newFakeClock(epoch)
	trials := newTrialService(source, clock, app.DefaultTrialConfig())

	ten := 10
	start, err := trials.StartTrial(ctx, nil, &ten)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(start.Quiz) != 5 || source.requested[0] != 5 {
		t.Fatalf("anonymous trials always have 5 questions, got %d (requested %v)", len(start.Quiz), source.requested)
	}
	q := start.Quiz[0]
	if q.Prompt != "What's 2 + 2?" {
		t.Fatalf("prompt not unescaped: %q", q.Prompt)
	}
	if len(q.Options) != 4 || !contains(q.Options, "4") || !contains(q.Options, `"22"`) {
		t.Fatalf("unexpected options %v", q.Options)
	}

	payload, _ := json.Marshal(start)
	if strings.Contains(string(payload), "correct") {
		t.Fatalf("client payload carries answers: %s", payload)
	}

	answers := answersOf(5, "4")
	answers[4] = nil
	res, err := trials.SubmitTrial(ctx, nil, start.SessionID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 4 || res.Total != 5 || res.Feedback != nil {
		t.Fatalf("expected score only, got %+v", res)
	}

	clock.Advance(600 * time.Second)
	if _, err := trials.SubmitTrial(ctx, nil, start.SessionID, answers); err != domain.ErrTrialSessionNotFound {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestAuthenticatedTrialSizing(t *testing.T) {
	ctx := context.Background()
	source := &triviaSource{}
	clock := newFakeClock(epoch)
	trials := newTrialService(source, clock, app.DefaultTrialConfig())

	twelve := 12
	start, err := trials.StartTrial(ctx, &alice, &twelve)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(start.Quiz) != 12 {
		t.Fatalf("expected 12 questions, got %d", len(start.Quiz))
	}

	// 12 * 60s + 300s
	clock.Advance(1019 * time.Second)
	if _, err := trials.SubmitTrial(ctx, &alice, start.SessionID, answersOf(12, "4")); err != nil {
		t.Fatalf("session should still be live: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := trials.SubmitTrial(ctx, &alice, start.SessionID, answersOf(12, "4")); err != domain.ErrTrialSessionNotFound {
		t.Fatalf("expected session to expire after 1020s, got %v", err)
	}

	huge := 500
	start, err = trials.StartTrial(ctx, &alice, &huge)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(start.Quiz) != 50 || source.requested[len(source.requested)-1] != 50 {
		t.Fatalf("expected the count capped at 50, got %d", len(start.Quiz))
	}
	clock.Advance(3299 * time.Second)
	if _, err := trials.SubmitTrial(ctx, &alice, start.SessionID, nil); err == nil || domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("nil answers should be a validation error, got %v", err)
	}
	if _, err := trials.SubmitTrial(ctx, &alice, start.SessionID, []*string{}); err != nil {
		t.Fatalf("session should live for 3300s: %v", err)
	}
}

func TestAuthenticatedTrialFeedback(t *testing.T) {
	ctx := context.Background()
	trials := newTrialService(&triviaSource{}, newFakeClock(epoch), app.DefaultTrialConfig())

	three := 3
	start, err := trials.StartTrial(ctx, &alice, &three)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	wrong := "5"
	right := "4"
	res, err := trials.SubmitTrial(ctx, &alice, start.SessionID, []*string{&right, &wrong})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 1 || res.Total != 3 || len(res.Feedback) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Feedback[0].IsCorrect || res.Feedback[1].IsCorrect || res.Feedback[2].Selected != nil {
		t.Fatalf("unexpected feedback %+v", res.Feedback)
	}
	if res.Feedback[1].Correct != "4" || res.Feedback[0].Prompt != "What's 2 + 2?" {
		t.Fatalf("feedback should carry the unescaped key, got %+v", res.Feedback[1])
	}
}

func TestTrialSessionReuse(t *testing.T) {
	ctx := context.Background()

	trials := newTrialService(&triviaSource{}, newFakeClock(epoch), app.DefaultTrialConfig())
	start, _ := trials.StartTrial(ctx, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := trials.SubmitTrial(ctx, nil, start.SessionID, answersOf(5, "4")); err != nil {
			t.Fatalf("resubmission %d: %v", i, err)
		}
	}

	cfg := app.DefaultTrialConfig()
	cfg.SingleUse = true
	trials = newTrialService(&triviaSource{}, newFakeClock(epoch), cfg)
	start, _ = trials.StartTrial(ctx, nil, nil)
	if _, err := trials.SubmitTrial(ctx, nil, start.SessionID, answersOf(5, "4")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := trials.SubmitTrial(ctx, nil, start.SessionID, answersOf(5, "4")); err != domain.ErrTrialSessionNotFound {
		t.Fatalf("single-use session should be gone, got %v", err)
	}
}

func TestTrialErrors(t *testing.T) {
	ctx := context.Background()
	source := &triviaSource{err: errors.New("connection refused")}
	trials := newTrialService(source, newFakeClock(epoch), app.DefaultTrialConfig())

	_, err := trials.StartTrial(ctx, nil, nil)
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, err := trials.SubmitTrial(ctx, nil, "no-such-session", answersOf(1, "4")); err != domain.ErrTrialSessionNotFound {
		t.Fatalf("expected ErrTrialSessionNotFound, got %v", err)
	}
	if _, err := trials.SubmitTrial(ctx, nil, "", answersOf(1, "4")); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestTrialShufflesOptionsPerQuestion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEphemeralStoreWithClock(newFakeClock(epoch).Now)
	trials := app.NewTrialServiceWithRand(&triviaSource{}, store, app.DefaultTrialConfig(), nil, rand.New(rand.NewSource(1)))

	forty := 40
	start, err := trials.StartTrial(ctx, &alice, &forty)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	want := []string{`"22"`, "3", "4", "5"}
	positions := map[int]bool{}
	for i, q := range start.Quiz {
		got := append([]string(nil), q.Options...)
		sort.Strings(got)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("question %d: options %v are not the source set", i, q.Options)
		}
		for pos, opt := range q.Options {
			if opt == "4" {
				positions[pos] = true
			}
		}
	}
	if len(positions) < 2 {
		t.Fatalf("correct answer always at the same position: %v", positions)
	}
}
