package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// JobStore keeps announcement jobs in memory. Jobs do not survive a restart;
// use the Postgres store when that matters.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.AnnouncementJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.AnnouncementJob)}
}

func (s *JobStore) Put(_ context.Context, job domain.AnnouncementJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.QuizID] = job
	return nil
}

func (s *JobStore) Delete(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[quizID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(s.jobs, quizID)
	return nil
}

func (s *JobStore) Claim(_ context.Context, quizID string, fireAt, at time.Time) (bool, error) {
	return s.transition(quizID, fireAt, at, domain.JobPending, domain.JobFired), nil
}

func (s *JobStore) Release(_ context.Context, quizID string, fireAt, at time.Time) error {
	s.transition(quizID, fireAt, at, domain.JobFired, domain.JobPending)
	return nil
}

func (s *JobStore) transition(quizID string, fireAt, at time.Time, from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[quizID]
	if !ok || job.Status != from || !job.FireAt.Equal(fireAt) {
		return false
	}
	job.Status = to
	job.UpdatedAt = at
	s.jobs[quizID] = job
	return true
}

func (s *JobStore) ListPending(_ context.Context) ([]domain.AnnouncementJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnnouncementJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Status == domain.JobPending {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

// Get returns the job for quizID, mainly for tests.
func (s *JobStore) Get(quizID string) (domain.AnnouncementJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[quizID]
	return job, ok
}
