// Package question stores the prompts attached to a session and the answers given at check-in.
package question

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
)

type (
	Question struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		Prompt    string    `json:"prompt"`
		Required  bool      `json:"required"`
		Position  int       `json:"position"`
		CreatedAt time.Time `json:"created_at"`
	}

	NewQuestion struct {
		Prompt   string `json:"prompt" validate:"required"`
		Required bool   `json:"required"`
	}

	Answer struct {
		QuestionID string `json:"question_id" validate:"required"`
		Answer     string `json:"answer"`
	}

	Response struct {
		ID         string    `json:"id"`
		QuestionID string    `json:"question_id"`
		UserID     string    `json:"user_id"`
		Answer     string    `json:"answer"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Repository interface {
		// CreateQuestions inserts all questions in one statement.
		CreateQuestions(ctx context.Context, questions []Question, exec ...core.DBExecutor) error
		ListQuestions(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Question, error)
		// SaveResponses upserts the answers of one user, replacing earlier answers to the same question.
		SaveResponses(ctx context.Context, responses []Response, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create attaches `nqs` to the session, in order.
func (svc *Service) Create(ctx context.Context, sessionID string, nqs []NewQuestion, exec ...core.DBExecutor) ([]Question, error) {
	if len(nqs) == 0 {
		return nil, nil
	}
	now := core.NowFunc()
	qs := make([]Question, 0, len(nqs))
	for i, nq := range nqs {
		qs = append(qs, Question{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Prompt:    core.CleanString(nq.Prompt),
			Required:  nq.Required,
			Position:  i + 1,
			CreatedAt: now,
		})
	}
	if err := svc.repo.CreateQuestions(ctx, qs, exec...); err != nil {
		return nil, errors.Wrap(err, "repo.CreateQuestions()")
	}
	return qs, nil
}

func (svc *Service) List(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Question, error) {
	return svc.repo.ListQuestions(ctx, sessionID, exec...)
}

// CheckRequired returns a ValidationError naming every required question left unanswered.
func (svc *Service) CheckRequired(ctx context.Context, sessionID string, answers []Answer, exec ...core.DBExecutor) error {
	qs, err := svc.repo.ListQuestions(ctx, sessionID, exec...)
	if err != nil {
		return errors.Wrap(err, "repo.ListQuestions()")
	}
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if core.CleanString(a.Answer) != "" {
			answered[a.QuestionID] = true
		}
	}
	var missing []core.FieldError
	for _, q := range qs {
		if q.Required && !answered[q.ID] {
			missing = append(missing, core.FieldError{Field: "responses." + q.ID, Error: "an answer is required"})
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(errors.New("required questions are not answered"), missing...)
	}
	return nil
}

// Save stores the answers of `userID`; answers to questions of other sessions are ignored.
func (svc *Service) Save(ctx context.Context, sessionID, userID string, answers []Answer, exec ...core.DBExecutor) error {
	if len(answers) == 0 {
		return nil
	}
	qs, err := svc.repo.ListQuestions(ctx, sessionID, exec...)
	if err != nil {
		return errors.Wrap(err, "repo.ListQuestions()")
	}
	known := make(map[string]bool, len(qs))
	for _, q := range qs {
		known[q.ID] = true
	}
	now := core.NowFunc()
	responses := make([]Response, 0, len(answers))
	seen := make(map[string]int, len(answers))
	for _, a := range answers {
		if !known[a.QuestionID] {
			continue
		}
		resp := Response{
			ID:         uuid.NewString(),
			QuestionID: a.QuestionID,
			UserID:     userID,
			Answer:     core.CleanString(a.Answer),
			CreatedAt:  now,
		}
		if i, ok := seen[a.QuestionID]; ok { // last answer wins
			responses[i] = resp
			continue
		}
		seen[a.QuestionID] = len(responses)
		responses = append(responses, resp)
	}
	if len(responses) == 0 {
		return nil
	}
	return errors.Wrap(svc.repo.SaveResponses(ctx, responses, exec...), "repo.SaveResponses()")
}
