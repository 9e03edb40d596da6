package memory

import (
	"context"
	"sort"
	"sync"

	"timed-quiz-service/internal/domain"
)

// SubmissionStore keeps submissions keyed by (quiz, participant). Create checks
// and inserts under one lock, which is the in-memory equivalent of a unique
// constraint.
type SubmissionStore struct {
	mu   sync.RWMutex
	subs map[submissionKey]domain.Submission
}

type submissionKey struct {
	quizID        string
	participantID string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{subs: make(map[submissionKey]domain.Submission)}
}

func (s *SubmissionStore) Create(_ context.Context, sub domain.Submission) error {
	key := submissionKey{quizID: sub.QuizID, participantID: sub.ParticipantID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[key]; ok {
		return domain.ErrAlreadySubmitted
	}
	s.subs[key] = cloneSubmission(sub)
	return nil
}

func (s *SubmissionStore) Exists(_ context.Context, quizID, participantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[submissionKey{quizID: quizID, participantID: participantID}]
	return ok, nil
}

func (s *SubmissionStore) Get(_ context.Context, quizID, participantID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[submissionKey{quizID: quizID, participantID: participantID}]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

// ListByParticipant returns newest first.
func (s *SubmissionStore) ListByParticipant(_ context.Context, participantID string) ([]domain.Submission, error) {
	s.mu.RLock()
	out := make([]domain.Submission, 0)
	for key, sub := range s.subs {
		if key.participantID == participantID {
			out = append(out, cloneSubmission(sub))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// ListByQuiz returns submissions in submission order.
func (s *SubmissionStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Submission, error) {
	s.mu.RLock()
	out := make([]domain.Submission, 0)
	for key, sub := range s.subs {
		if key.quizID == quizID {
			out = append(out, cloneSubmission(sub))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	out := sub
	out.Answers = append([]domain.EvaluatedAnswer(nil), sub.Answers...)
	return out
}
