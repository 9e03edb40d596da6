package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/domain"
)

// QuizStore reads and writes quizzes and their ordered questions.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz   domain.Quiz
		expiry *time.Time
		start  *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, creator_id, title, description, duration_minutes, total_marks,
		       is_protected, access_code, access_code_expiry, start_time
		FROM quizzes WHERE id=$1`, quizID).Scan(
		&quiz.ID, &quiz.CreatorID, &quiz.Title, &quiz.Description, &quiz.DurationMinutes, &quiz.TotalMarks,
		&quiz.IsProtected, &quiz.AccessCode, &expiry, &start,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.AccessCodeExpiry = utcPtr(expiry)
	quiz.StartTime = utcPtr(start)

	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, prompt, options, correct_answer, marks, negative_marks
		FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Prompt, &q.Options, &q.CorrectAnswer, &q.Marks, &q.NegativeMarks); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}

// SaveQuiz upserts the quiz row and replaces its questions in one transaction.
func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quizzes (id, creator_id, title, description, duration_minutes, total_marks,
			                     is_protected, access_code, access_code_expiry, start_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				creator_id = EXCLUDED.creator_id,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				duration_minutes = EXCLUDED.duration_minutes,
				total_marks = EXCLUDED.total_marks,
				is_protected = EXCLUDED.is_protected,
				access_code = EXCLUDED.access_code,
				access_code_expiry = EXCLUDED.access_code_expiry,
				start_time = EXCLUDED.start_time`,
			quiz.ID, quiz.CreatorID, quiz.Title, quiz.Description, quiz.DurationMinutes, quiz.TotalMarks,
			quiz.IsProtected, quiz.AccessCode, quiz.AccessCodeExpiry, quiz.StartTime,
		)
		if err != nil {
			return fmt.Errorf("save quiz: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id=$1`, quiz.ID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for i, q := range quiz.Questions {
			_, err := tx.Exec(ctx, `
				INSERT INTO questions (id, quiz_id, position, prompt, options, correct_answer, marks, negative_marks)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				q.ID, quiz.ID, i, q.Prompt, q.Options, q.CorrectAnswer, q.Marks, q.NegativeMarks,
			)
			if err != nil {
				return fmt.Errorf("save question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

func (s *QuizStore) UpdateSchedule(ctx context.Context, quizID string, schedule domain.Schedule) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quizzes
		SET is_protected = TRUE, access_code = $2, access_code_expiry = $3, start_time = $4
		WHERE id = $1`,
		quizID, schedule.AccessCode, schedule.AccessCodeExpiry, schedule.StartTime,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

// DeleteQuiz removes the quiz; questions go with it through ON DELETE CASCADE.
func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
