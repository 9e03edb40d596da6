// Package trivia fetches randomized multiple-choice questions from Open Trivia DB.
package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"timed-quiz-service/internal/domain"
)

const DefaultURL = "https://opentdb.com/api.php"

// Client is a QuestionSource backed by the Open Trivia DB HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch asks for amount multiple-choice questions. Text comes back HTML-escaped
// exactly as the API sends it.
func (c *Client) Fetch(ctx context.Context, amount int) ([]domain.TrialSourceQuestion, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse trivia url: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.Itoa(amount))
	q.Set("type", "multiple")
	u.RawQuery = q.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build trivia request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("trivia request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia request: unexpected status %d", response.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode trivia response: %w", err)
	}
	if body.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia response code %d", body.ResponseCode)
	}

	out := make([]domain.TrialSourceQuestion, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, domain.TrialSourceQuestion{
			Prompt:        r.Question,
			CorrectAnswer: r.CorrectAnswer,
			Distractors:   r.IncorrectAnswers,
		})
	}
	return out, nil
}
