package domain

import "time"

// Roles understood by the access rules.
const (
	RoleCreator     = "creator"
	RoleParticipant = "participant"
)

// Identity is what the identity provider tells us about a caller.
type Identity struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

// Question models an MCQ question with exactly one correct option value.
type Question struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quizId"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negativeMarks"`
}

// Quiz is a scheduled collection of questions owned by its creator.
type Quiz struct {
	ID               string     `json:"id"`
	CreatorID        string     `json:"creatorId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DurationMinutes  int        `json:"duration"`
	TotalMarks       float64    `json:"totalMarks"`
	Questions        []Question `json:"questions"`
	IsProtected      bool       `json:"isProtected"`
	AccessCode       string     `json:"accessCode,omitempty"`
	AccessCodeExpiry *time.Time `json:"accessCodeExpiry,omitempty"`
	StartTime        *time.Time `json:"startTime,omitempty"`
}

// Duration is the quiz length as a time.Duration.
func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// Schedule is the publication state written by the scheduler.
type Schedule struct {
	AccessCode       string
	StartTime        time.Time
	AccessCodeExpiry time.Time
}

// EvaluatedAnswer is the persisted outcome of one answered question.
type EvaluatedAnswer struct {
	QuestionID     string  `json:"questionId"`
	SelectedOption string  `json:"selectedOption"`
	CorrectOption  string  `json:"correctOption"`
	IsCorrect      bool    `json:"isCorrect"`
	MarksAwarded   float64 `json:"marksAwarded"`
}

// Submission is a participant's single, immutable attempt at a quiz.
type Submission struct {
	ID            string            `json:"id"`
	QuizID        string            `json:"quizId"`
	ParticipantID string            `json:"participantId"`
	DisplayName   string            `json:"displayName"`
	Answers       []EvaluatedAnswer `json:"answers,omitempty"`
	Score         float64           `json:"score"`
	TotalMarks    float64           `json:"totalMarks"`
	StartedAt     time.Time         `json:"startedAt"`
	SubmittedAt   time.Time         `json:"submittedAt"`
	TimeTakenMs   int64             `json:"timeTaken"`
}

// AnswerSubmission models one answer sent by a participant.
type AnswerSubmission struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// LeaderboardEntry is one ranked row of a quiz leaderboard.
type LeaderboardEntry struct {
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	Score         float64   `json:"score"`
	TimeTakenMs   int64     `json:"timeTaken"`
	Rank          int       `json:"rank,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered standings for a quiz. Version is bumped on
// every save and used for compare-and-swap.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	Version   int64              `json:"version"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Score is what the evaluator hands to the leaderboard.
type Score struct {
	QuizID        string
	ParticipantID string
	DisplayName   string
	Score         float64
	TimeTakenMs   int64
}

// TrialSourceQuestion is a raw question from the external trivia source.
type TrialSourceQuestion struct {
	Prompt        string
	CorrectAnswer string
	Distractors   []string
}

// TrialQuestion is the client-facing trial question; it never carries the answer.
type TrialQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// TrialAnswerKey is the server-side record for one trial question.
type TrialAnswerKey struct {
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer"`
	Options       []string `json:"options"`
}

// TrialFeedback is returned to authenticated trial takers.
type TrialFeedback struct {
	Prompt    string  `json:"prompt"`
	Selected  *string `json:"selected"`
	Correct   string  `json:"correct"`
	IsCorrect bool    `json:"isCorrect"`
}

// Announcement is a push event published on a quiz topic.
type Announcement struct {
	Type      string    `json:"type"`
	QuizID    string    `json:"quizId"`
	StartTime time.Time `json:"startTime"`
}

// AnnouncementQuizStarted is the event type emitted at a quiz's start time.
const AnnouncementQuizStarted = "quizStarted"

// Job states.
const (
	JobPending = "pending"
	JobFired   = "fired"
)

// AnnouncementJob is the durable record behind an armed start announcement.
type AnnouncementJob struct {
	QuizID    string    `json:"quizId"`
	FireAt    time.Time `json:"fireAt"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Topic returns the broadcast topic for a quiz.
func Topic(quizID string) string {
	return "quiz:" + quizID
}
