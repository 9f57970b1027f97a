package question_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/question"
	dummydb "github.com/Team04-UCSD-CSE210/conductor-app-sub001/storage/database/dummy"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	db := dummydb.Open()
	svc := question.NewService(dummydb.NewQuestionRepository(db))

	none, err := svc.Create(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	created, err := svc.Create(ctx, "s1", []question.NewQuestion{
		{Prompt: " What went well? ", Required: true},
		{Prompt: "What to improve?"},
		{Prompt: "Blockers?", Required: true},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	qs, err := svc.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, qs, 3)
	for i, q := range qs {
		assert.Equal(t, i+1, q.Position)
		assert.Equal(t, created[i].ID, q.ID)
	}
	assert.Equal(t, "What went well?", qs[0].Prompt)

	t.Run("CheckRequired", func(t *testing.T) {
		err := svc.CheckRequired(ctx, "s1", []question.Answer{{QuestionID: qs[0].ID, Answer: "  "}, {QuestionID: qs[1].ID, Answer: "x"}})
		require.True(t, core.IsKind(err, core.KindValidation))
		verr := err.(*core.ValidationError)
		require.Len(t, verr.Fields, 2)
		assert.Equal(t, "responses."+qs[0].ID, verr.Fields[0].Field)
		assert.Equal(t, "responses."+qs[2].ID, verr.Fields[1].Field)

		assert.NoError(t, svc.CheckRequired(ctx, "s1", []question.Answer{{QuestionID: qs[0].ID, Answer: "a"}, {QuestionID: qs[2].ID, Answer: "b"}}))
		assert.NoError(t, svc.CheckRequired(ctx, "other", nil))
	})

	t.Run("Save", func(t *testing.T) {
		require.NoError(t, svc.Save(ctx, "s1", "u1", []question.Answer{
			{QuestionID: qs[0].ID, Answer: "first"},
			{QuestionID: qs[0].ID, Answer: "second"},
			{QuestionID: "elsewhere", Answer: "dropped"},
		}))
		assert.Equal(t, map[string]string{qs[0].ID: "second"}, db.Responses("u1"))

		require.NoError(t, svc.Save(ctx, "s1", "u1", []question.Answer{{QuestionID: qs[0].ID, Answer: "third"}}))
		assert.Equal(t, map[string]string{qs[0].ID: "third"}, db.Responses("u1"))
		assert.Empty(t, db.Responses("u2"))
	})
}
