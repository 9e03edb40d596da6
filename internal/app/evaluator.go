package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timed-quiz-service/internal/domain"
)

// Evaluator scores quiz submissions and feeds the leaderboard.
type Evaluator struct {
	quizzes     QuizReader
	submissions SubmissionStore
	board       ScoreRecorder
	log         *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewEvaluator(quizzes QuizReader, submissions SubmissionStore, board ScoreRecorder, logger *slog.Logger) *Evaluator {
	return NewEvaluatorWithClock(quizzes, submissions, board, logger, time.Now)
}

func NewEvaluatorWithClock(quizzes QuizReader, submissions SubmissionStore, board ScoreRecorder, logger *slog.Logger, now func() time.Time) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		quizzes:     quizzes,
		submissions: submissions,
		board:       board,
		log:         logger.With("component", "evaluator"),
		now:         now,
		newID:       uuid.NewString,
	}
}

// Submit scores a participant's only attempt at a quiz and records it.
func (e *Evaluator) Submit(ctx context.Context, caller domain.Identity, quizID string, startedAt *time.Time, answers []domain.AnswerSubmission) (domain.Submission, error) {
	if quizID == "" || answers == nil {
		return domain.Submission{}, domain.ValidationError("quizId and answers are required")
	}
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Submission{}, err
	}
	if quiz.CreatorID == caller.UserID {
		return domain.Submission{}, domain.ErrOwnQuiz
	}
	if startedAt == nil || startedAt.IsZero() {
		return domain.Submission{}, domain.ErrStartedAtRequired
	}

	// Fast path only; the store's uniqueness constraint is what guarantees a
	// single attempt under concurrent submits.
	exists, err := e.submissions.Exists(ctx, quizID, caller.UserID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("check existing submission: %w", err)
	}
	if exists {
		return domain.Submission{}, domain.ErrAlreadySubmitted
	}

	if len(quiz.Questions) == 0 {
		return domain.Submission{}, domain.ErrNoQuestions
	}
	evaluated, score := Evaluate(quiz.Questions, answers)

	submittedAt := e.now()
	timeTaken := submittedAt.Sub(*startedAt).Milliseconds()
	if timeTaken < 0 {
		return domain.Submission{}, domain.ErrStartedInFuture
	}

	totalMarks := quiz.TotalMarks
	if totalMarks == 0 {
		for _, q := range quiz.Questions {
			totalMarks += q.Marks
		}
	}

	submission := domain.Submission{
		ID:            e.newID(),
		QuizID:        quizID,
		ParticipantID: caller.UserID,
		DisplayName:   caller.DisplayName,
		Answers:       evaluated,
		Score:         score,
		TotalMarks:    totalMarks,
		StartedAt:     *startedAt,
		SubmittedAt:   submittedAt,
		TimeTakenMs:   timeTaken,
	}
	if err := e.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			return domain.Submission{}, err
		}
		return domain.Submission{}, fmt.Errorf("save submission: %w", err)
	}

	if _, err := e.board.RecordScore(ctx, domain.Score{
		QuizID:        quizID,
		ParticipantID: caller.UserID,
		DisplayName:   caller.DisplayName,
		Score:         score,
		TimeTakenMs:   timeTaken,
	}); err != nil {
		// The submission is the source of truth; rebuild-leaderboard repairs the view.
		e.log.Error("record leaderboard score", "quiz_id", quizID, "participant_id", caller.UserID, "err", err)
	}
	return submission, nil
}

// MySubmission returns the caller's submission for a quiz.
func (e *Evaluator) MySubmission(ctx context.Context, caller domain.Identity, quizID string) (domain.Submission, error) {
	return e.submissions.Get(ctx, quizID, caller.UserID)
}

// History lists the caller's submissions without per-answer detail.
func (e *Evaluator) History(ctx context.Context, caller domain.Identity) ([]domain.Submission, error) {
	subs, err := e.submissions.ListByParticipant(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Answers = nil
	}
	return subs, nil
}

// Standings ranks every submission of a quiz with the leaderboard rules, without
// truncation. Only the quiz's creator may see them.
func (e *Evaluator) Standings(ctx context.Context, caller domain.Identity, quizID string) ([]domain.LeaderboardEntry, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !isCreator(caller, quiz) {
		return nil, domain.ErrNotAuthorized
	}
	subs, err := e.submissions.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return RankEntries(entriesFromSubmissions(subs)), nil
}

// Evaluate scores answers against questions. Answers to unknown questions are
// dropped, and only the first answer per question counts. Wrong answers cost
// the question's negative marks; the total is not clamped at zero.
func Evaluate(questions []domain.Question, answers []domain.AnswerSubmission) ([]domain.EvaluatedAnswer, float64) {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var score float64
	seen := make(map[string]struct{}, len(answers))
	evaluated := make([]domain.EvaluatedAnswer, 0, len(answers))
	for _, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}

		correct := ans.SelectedOption == q.CorrectAnswer
		var awarded float64
		switch {
		case correct:
			awarded = q.Marks
		case q.NegativeMarks > 0:
			awarded = -q.NegativeMarks
		}
		score += awarded
		evaluated = append(evaluated, domain.EvaluatedAnswer{
			QuestionID:     q.ID,
			SelectedOption: ans.SelectedOption,
			CorrectOption:  q.CorrectAnswer,
			IsCorrect:      correct,
			MarksAwarded:   awarded,
		})
	}
	return evaluated, score
}
