package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
)

type questionRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Prompt    string    `db:"prompt"`
	Required  bool      `db:"required"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

type questionRepository struct {
	repository
}

var _ question.Repository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(exec core.DBExecutor) *questionRepository {
	return &questionRepository{repository{exec: exec}}
}

func (repo *questionRepository) CreateQuestions(ctx context.Context, questions []question.Question, svcExec ...core.DBExecutor) error {
	if len(questions) == 0 {
		return nil
	}
	q := builder.Insert("session_questions").Columns("id", "session_id", "prompt", "required", "position", "created_at")
	for _, qn := range questions {
		q = q.Values(qn.ID, qn.SessionID, qn.Prompt, qn.Required, qn.Position, qn.CreatedAt)
	}
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}

func (repo *questionRepository) ListQuestions(ctx context.Context, sessionID string, svcExec ...core.DBExecutor) ([]question.Question, error) {
	q := builder.Select("id", "session_id", "prompt", "required", "position", "created_at").
		From("session_questions").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("position")
	var rows []questionRow
	if err := selectQ(ctx, repo.getExec(svcExec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selectQ()")
	}
	qs := make([]question.Question, 0, len(rows))
	for _, row := range rows {
		qs = append(qs, question.Question{
			ID:        row.ID,
			SessionID: row.SessionID,
			Prompt:    row.Prompt,
			Required:  row.Required,
			Position:  row.Position,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return qs, nil
}

func (repo *questionRepository) SaveResponses(ctx context.Context, responses []question.Response, svcExec ...core.DBExecutor) error {
	if len(responses) == 0 {
		return nil
	}
	q := builder.Insert("session_responses").Columns("id", "question_id", "user_id", "answer", "created_at")
	for _, r := range responses {
		q = q.Values(r.ID, r.QuestionID, r.UserID, r.Answer, r.CreatedAt)
	}
	q = q.Suffix("ON CONFLICT (question_id, user_id) DO UPDATE SET answer = excluded.answer, created_at = excluded.created_at")
	_, err := execQ(ctx, repo.getExec(svcExec), q)
	return errors.Wrap(err, "execQ()")
}
