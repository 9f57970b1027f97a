package dummydb

import (
	"context"
	"sort"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
)

type questionRepository struct {
	db *DB
}

var _ question.Repository = (*questionRepository)(nil) // interface compliance check

func NewQuestionRepository(db *DB) *questionRepository {
	return &questionRepository{db: db}
}

func (repo *questionRepository) CreateQuestions(_ context.Context, questions []question.Question, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, q := range questions {
		q := q
		repo.db.questions[q.ID] = &q
	}
	return nil
}

func (repo *questionRepository) ListQuestions(_ context.Context, sessionID string, _ ...core.DBExecutor) ([]question.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	qs := make([]question.Question, 0)
	for _, q := range repo.db.questions {
		if q.SessionID == sessionID {
			qs = append(qs, *q)
		}
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	return qs, nil
}

func (repo *questionRepository) SaveResponses(_ context.Context, responses []question.Response, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range responses {
		r := r
		key := [2]string{r.QuestionID, r.UserID}
		if existing, ok := repo.db.responses[key]; ok {
			existing.Answer, existing.CreatedAt = r.Answer, r.CreatedAt
			continue
		}
		repo.db.responses[key] = &r
	}
	return nil
}

// Responses returns the stored answers of `userID`, for assertions.
func (db *DB) Responses(userID string) map[string]string {
	db.RLock()
	defer db.RUnlock()

	answers := make(map[string]string)
	for key, r := range db.responses {
		if key[1] == userID {
			answers[key[0]] = r.Answer
		}
	}
	return answers
}
