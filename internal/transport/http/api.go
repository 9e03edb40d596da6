package http

import (
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Publisher    *app.Publisher
	Access       *app.AccessGate
	Trials       *app.TrialService
	Evaluator    *app.Evaluator
	Leaderboards *app.LeaderboardService
}

// API holds the REST handlers.
type API struct {
	svc      Services
	auth     *Authenticator
	validate *validator.Validate
	log      *slog.Logger
}

func NewAPI(svc Services, auth *Authenticator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &API{svc: svc, auth: auth, validate: v, log: logger.With("component", "api")}
}

func (api *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quizzes/{id}/publish", api.required(api.publishQuiz))
	mux.HandleFunc("GET /quizzes/{id}", api.required(api.readQuiz))
	mux.HandleFunc("DELETE /quizzes/{id}", api.required(api.deleteQuiz))

	mux.HandleFunc("GET /trial/start", api.optional(api.startTrial))
	mux.HandleFunc("POST /trial/submit", api.optional(api.submitTrial))

	mux.HandleFunc("POST /submissions", api.required(api.submit))
	mux.HandleFunc("GET /submissions/history", api.required(api.history))
	mux.HandleFunc("GET /submissions/{quizId}/me", api.required(api.mySubmission))
	mux.HandleFunc("GET /submissions/{quizId}", api.required(api.standings))

	mux.HandleFunc("GET /leaderboards/{quizId}", api.required(api.leaderboard))
	mux.HandleFunc("DELETE /leaderboards/{quizId}", api.required(api.resetLeaderboard))
}

type publishRequest struct {
	StartTime string `json:"startTime" validate:"required"`
}

func (api *API) publishQuiz(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req publishRequest
	if err := api.decode(r, &req); err != nil {
		api.fail(w, r, err)
		return
	}
	res, err := api.svc.Publisher.Publish(r.Context(), caller, r.PathValue("id"), req.StartTime)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "quiz published", res)
}

func (api *API) readQuiz(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	res, err := api.svc.Access.ReadQuiz(r.Context(), caller, r.PathValue("id"), r.URL.Query().Get("accessCode"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	message := "quiz fetched"
	if res.State == app.AccessPending {
		message = "quiz has not started yet"
	}
	api.ok(w, http.StatusOK, message, res)
}

func (api *API) deleteQuiz(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	if err := api.svc.Publisher.DeleteQuiz(r.Context(), caller, r.PathValue("id")); err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "quiz deleted", nil)
}

func (api *API) startTrial(w http.ResponseWriter, r *http.Request, caller *domain.Identity) {
	// a missing, non-numeric or non-positive count falls back to the default
	var requested *int
	if n, err := strconv.Atoi(r.URL.Query().Get("numberOfQuestions")); err == nil && n > 0 {
		requested = &n
	}
	res, err := api.svc.Trials.StartTrial(r.Context(), caller, requested)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "trial started", res)
}

type trialSubmitRequest struct {
	SessionID string    `json:"sessionId" validate:"required"`
	Answers   []*string `json:"answers" validate:"required"`
}

func (api *API) submitTrial(w http.ResponseWriter, r *http.Request, caller *domain.Identity) {
	var req trialSubmitRequest
	if err := api.decode(r, &req); err != nil {
		api.fail(w, r, err)
		return
	}
	res, err := api.svc.Trials.SubmitTrial(r.Context(), caller, req.SessionID, req.Answers)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "trial submitted", res)
}

type answerRequest struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedOption string `json:"selectedOption"`
}

type submitRequest struct {
	QuizID    string          `json:"quizId" validate:"required"`
	StartedAt *time.Time      `json:"startedAt"`
	Answers   []answerRequest `json:"answers" validate:"required,dive"`
}

func (api *API) submit(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	var req submitRequest
	if err := api.decode(r, &req); err != nil {
		api.fail(w, r, err)
		return
	}
	answers := make([]domain.AnswerSubmission, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.AnswerSubmission{QuestionID: a.QuestionID, SelectedOption: a.SelectedOption})
	}
	sub, err := api.svc.Evaluator.Submit(r.Context(), caller, req.QuizID, req.StartedAt, answers)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusCreated, "quiz submitted", sub)
}

func (api *API) history(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	subs, err := api.svc.Evaluator.History(r.Context(), caller)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "submission history", subs)
}

func (api *API) mySubmission(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	sub, err := api.svc.Evaluator.MySubmission(r.Context(), caller, r.PathValue("quizId"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "submission fetched", sub)
}

func (api *API) standings(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	entries, err := api.svc.Evaluator.Standings(r.Context(), caller, r.PathValue("quizId"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "standings fetched", entries)
}

func (api *API) leaderboard(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	lb, err := api.svc.Leaderboards.Get(r.Context(), r.PathValue("quizId"))
	if err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "leaderboard fetched", lb)
}

func (api *API) resetLeaderboard(w http.ResponseWriter, r *http.Request, caller domain.Identity) {
	if err := api.svc.Leaderboards.Reset(r.Context(), caller, r.PathValue("quizId")); err != nil {
		api.fail(w, r, err)
		return
	}
	api.ok(w, http.StatusOK, "leaderboard reset", nil)
}
