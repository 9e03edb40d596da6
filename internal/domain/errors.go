package domain

import (
	"errors"
	"fmt"
)

// Kind classifies business-rule failures so transports can map them without
// inspecting messages.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindAuthorization
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a typed business error. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func AuthorizationError(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }
func NotFoundError(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }
func ConflictError(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }
func UnauthenticatedError(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }

// UpstreamError wraps a failure of an external collaborator. The cause is kept
// for logs only.
func UpstreamError(msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = NotFoundError("quiz not found")
	// ErrNoQuestions is returned when a quiz has nothing to score against.
	ErrNoQuestions = NotFoundError("no questions found for this quiz")
	// ErrSubmissionNotFound is returned when a participant has not submitted yet.
	ErrSubmissionNotFound = NotFoundError("submission not found")
	// ErrLeaderboardNotFound is returned before the first score is recorded.
	ErrLeaderboardNotFound = NotFoundError("leaderboard not found")
	// ErrTrialSessionNotFound covers both unknown and expired trial sessions.
	ErrTrialSessionNotFound = NotFoundError("session expired or invalid")
	// ErrJobNotFound is returned by job stores when no announcement is armed.
	ErrJobNotFound = NotFoundError("announcement job not found")

	ErrAlreadySubmitted = ConflictError("already submitted")
	ErrOwnQuiz          = ConflictError("cannot attempt own quiz")

	ErrNotAuthorized     = AuthorizationError("you are not authorized")
	ErrInvalidRole       = AuthorizationError("invalid role")
	ErrInvalidAccessCode = AuthorizationError("invalid access code")
	ErrAccessCodeExpired = AuthorizationError("access code expired")

	ErrInvalidStartTime  = ValidationError("invalid start time")
	ErrStartedAtRequired = ValidationError("quiz start time is required")
	ErrStartedInFuture   = ValidationError("start time is in the future")

	// ErrVersionConflict signals a lost compare-and-swap on a versioned document.
	// It never reaches clients; callers retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrKeyNotFound is returned by ephemeral stores for missing or expired keys.
	ErrKeyNotFound = errors.New("key not found")
)
