package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"timed-quiz-service/internal/domain"
)

// TrialConfig sizes instant trials and their answer-key lifetime.
type TrialConfig struct {
	AnonymousCount int
	MaxCount       int
	AnonymousTTL   time.Duration
	PerQuestionTTL time.Duration
	BaseTTL        time.Duration
	MaxTTL         time.Duration
	// SingleUse deletes the answer key after the first scored submission.
	SingleUse bool
}

func DefaultTrialConfig() TrialConfig {
	return TrialConfig{
		AnonymousCount: 5,
		MaxCount:       50,
		AnonymousTTL:   600 * time.Second,
		PerQuestionTTL: 60 * time.Second,
		BaseTTL:        300 * time.Second,
		MaxTTL:         3600 * time.Second,
	}
}

// TrialStart is handed to the client; it carries no answers.
type TrialStart struct {
	SessionID string                 `json:"sessionId"`
	Quiz      []domain.TrialQuestion `json:"quiz"`
}

// TrialResult is the score of a trial; Feedback is only set for signed-in callers.
type TrialResult struct {
	Score    int                    `json:"score"`
	Total    int                    `json:"total"`
	Feedback []domain.TrialFeedback `json:"feedback,omitempty"`
}

// TrialService runs instant trials whose answer keys live only in an ephemeral store.
type TrialService struct {
	source QuestionSource
	store  EphemeralStore
	cfg    TrialConfig
	log    *slog.Logger
	newID  func() string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewTrialService(source QuestionSource, store EphemeralStore, cfg TrialConfig, logger *slog.Logger) *TrialService {
	return NewTrialServiceWithRand(source, store, cfg, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTrialServiceWithRand shuffles answer options with rnd.
func NewTrialServiceWithRand(source QuestionSource, store EphemeralStore, cfg TrialConfig, logger *slog.Logger, rnd *rand.Rand) *TrialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrialService{
		source: source,
		store:  store,
		cfg:    cfg,
		log:    logger.With("component", "trial"),
		newID:  uuid.NewString,
		rnd:    rnd,
	}
}

// StartTrial fetches fresh questions and stores their answer key under a new
// session id. caller is nil for anonymous users; requested is honoured only for
// signed-in callers.
func (s *TrialService) StartTrial(ctx context.Context, caller *domain.Identity, requested *int) (TrialStart, error) {
	count, ttl := s.size(caller, requested)

	raw, err := s.source.Fetch(ctx, count)
	if err != nil {
		return TrialStart{}, domain.UpstreamError("failed to fetch trial questions", err)
	}
	if len(raw) == 0 {
		return TrialStart{}, domain.UpstreamError("failed to fetch trial questions", errors.New("source returned no questions"))
	}

	client := make([]domain.TrialQuestion, 0, len(raw))
	keys := make([]domain.TrialAnswerKey, 0, len(raw))
	for _, q := range raw {
		prompt := html.UnescapeString(q.Prompt)
		correct := html.UnescapeString(q.CorrectAnswer)
		options := make([]string, 0, len(q.Distractors)+1)
		for _, d := range q.Distractors {
			options = append(options, html.UnescapeString(d))
		}
		options = append(options, correct)
		s.shuffle(options)

		client = append(client, domain.TrialQuestion{Prompt: prompt, Options: options})
		keys = append(keys, domain.TrialAnswerKey{
			Prompt:        prompt,
			CorrectAnswer: correct,
			Options:       append([]string(nil), options...),
		})
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return TrialStart{}, fmt.Errorf("encode trial answer key: %w", err)
	}
	sessionID := s.newID()
	if err := s.store.Set(ctx, trialKey(sessionID), data, ttl); err != nil {
		return TrialStart{}, fmt.Errorf("store trial session: %w", err)
	}
	s.log.Debug("trial started", "session_id", sessionID, "questions", len(keys), "ttl", ttl, "anonymous", caller == nil)

	return TrialStart{SessionID: sessionID, Quiz: client}, nil
}

// SubmitTrial scores answers positionally against the stored answer key.
func (s *TrialService) SubmitTrial(ctx context.Context, caller *domain.Identity, sessionID string, answers []*string) (TrialResult, error) {
	if sessionID == "" || answers == nil {
		return TrialResult{}, domain.ValidationError("sessionId and answers are required")
	}

	data, err := s.store.Get(ctx, trialKey(sessionID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return TrialResult{}, domain.ErrTrialSessionNotFound
	}
	if err != nil {
		return TrialResult{}, fmt.Errorf("load trial session: %w", err)
	}
	var keys []domain.TrialAnswerKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return TrialResult{}, fmt.Errorf("decode trial session: %w", err)
	}

	result := TrialResult{Total: len(keys)}
	if caller != nil {
		result.Feedback = make([]domain.TrialFeedback, 0, len(keys))
	}
	for idx, key := range keys {
		var selected *string
		if idx < len(answers) {
			selected = answers[idx]
		}
		correct := selected != nil && *selected == key.CorrectAnswer
		if correct {
			result.Score++
		}
		if caller != nil {
			result.Feedback = append(result.Feedback, domain.TrialFeedback{
				Prompt:    key.Prompt,
				Selected:  selected,
				Correct:   key.CorrectAnswer,
				IsCorrect: correct,
			})
		}
	}

	if s.cfg.SingleUse {
		if err := s.store.Delete(ctx, trialKey(sessionID)); err != nil {
			s.log.Warn("delete used trial session", "session_id", sessionID, "err", err)
		}
	}
	return result, nil
}

func (s *TrialService) size(caller *domain.Identity, requested *int) (int, time.Duration) {
	if caller == nil || requested == nil {
		return s.cfg.AnonymousCount, s.cfg.AnonymousTTL
	}
	count := *requested
	if count <= 0 {
		count = s.cfg.AnonymousCount
	}
	if count > s.cfg.MaxCount {
		count = s.cfg.MaxCount
	}
	ttl := time.Duration(count)*s.cfg.PerQuestionTTL + s.cfg.BaseTTL
	if ttl > s.cfg.MaxTTL {
		ttl = s.cfg.MaxTTL
	}
	return count, ttl
}

func (s *TrialService) shuffle(options []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
}

func trialKey(sessionID string) string {
	return "trial:" + sessionID
}
