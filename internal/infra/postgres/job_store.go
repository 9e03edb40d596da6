package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

// JobStore persists start announcements in announcement_jobs.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func (s *JobStore) Put(ctx context.Context, job domain.AnnouncementJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO announcement_jobs (quiz_id, fire_at, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (quiz_id) DO UPDATE SET
			fire_at = EXCLUDED.fire_at, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		job.QuizID, job.FireAt, job.Status, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM announcement_jobs WHERE quiz_id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) Claim(ctx context.Context, quizID string, fireAt, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE announcement_jobs SET status=$4, updated_at=$5
		WHERE quiz_id=$1 AND fire_at=$2 AND status=$3`,
		quizID, fireAt, domain.JobPending, domain.JobFired, at,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *JobStore) Release(ctx context.Context, quizID string, fireAt, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE announcement_jobs SET status=$4, updated_at=$5
		WHERE quiz_id=$1 AND fire_at=$2 AND status=$3`,
		quizID, fireAt, domain.JobFired, domain.JobPending, at,
	)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

func (s *JobStore) ListPending(ctx context.Context) ([]domain.AnnouncementJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT quiz_id, fire_at, status, updated_at FROM announcement_jobs
		WHERE status=$1 ORDER BY fire_at`, domain.JobPending)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnnouncementJob, 0)
	for rows.Next() {
		var job domain.AnnouncementJob
		if err := rows.Scan(&job.QuizID, &job.FireAt, &job.Status, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.FireAt = job.FireAt.UTC()
		job.UpdatedAt = job.UpdatedAt.UTC()
		out = append(out, job)
	}
	return out, rows.Err()
}
