package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

const uniqueViolation = "23505"

// SubmissionStore persists submissions. The (quiz_id, participant_id) unique
// constraint is what makes a second attempt fail, whatever the caller checked.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

const submissionColumns = `id, quiz_id, participant_id, display_name, answers, score, total_marks,
	started_at, submitted_at, time_taken_ms`

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.QuizID, sub.ParticipantID, sub.DisplayName, string(answers), sub.Score, sub.TotalMarks,
		sub.StartedAt, sub.SubmittedAt, sub.TimeTakenMs,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SubmissionStore) Exists(ctx context.Context, quizID, participantID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE quiz_id=$1 AND participant_id=$2)`,
		quizID, participantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return exists, nil
}

func (s *SubmissionStore) Get(ctx context.Context, quizID, participantID string) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE quiz_id=$1 AND participant_id=$2`,
		quizID, participantID,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, err
}

// ListByParticipant returns newest first.
func (s *SubmissionStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Submission, error) {
	return s.list(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE participant_id=$1 ORDER BY submitted_at DESC`,
		participantID,
	)
}

// ListByQuiz returns submissions in submission order.
func (s *SubmissionStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error) {
	return s.list(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE quiz_id=$1 ORDER BY submitted_at ASC`,
		quizID,
	)
}

func (s *SubmissionStore) list(ctx context.Context, query string, arg string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		sub     domain.Submission
		answers []byte
	)
	err := row.Scan(&sub.ID, &sub.QuizID, &sub.ParticipantID, &sub.DisplayName, &answers, &sub.Score,
		&sub.TotalMarks, &sub.StartedAt, &sub.SubmittedAt, &sub.TimeTakenMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Submission{}, err
		}
		return domain.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &sub.Answers); err != nil {
			return domain.Submission{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	sub.StartedAt = sub.StartedAt.UTC()
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return sub, nil
}
