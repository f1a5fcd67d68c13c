package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/leadform/model"
)

func TestCheckAnswersFollowsThePath(t *testing.T) {
	form := branchingForm()

	kept, err := CheckAnswers(form, map[string]any{
		"kind":    "personal",
		"company": "ACME",
		"email":   "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"kind": "personal", "email": "ada@example.com"}, kept,
		"the jump skipped the company question")

	kept, err = CheckAnswers(form, map[string]any{
		"kind":  "business",
		"email": "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"kind": "business", "email": "ada@example.com"}, kept)
}

func TestCheckAnswersRequiredOnlyOnPath(t *testing.T) {
	form := visibilityForm()
	form.Questions[1].Required = true

	_, err := CheckAnswers(form, map[string]any{"interests": []any{"newsletter"}})
	assert.NoError(t, err, "demo_date sits in a block that was never shown")

	_, err = CheckAnswers(form, map[string]any{"interests": []any{"demo"}})
	assert.Equal(t, []string{`question "demo_date": answer required`}, Problems(err))
}

func TestCheckAnswersReportsEveryProblem(t *testing.T) {
	form := model.Form{
		Questions: []model.Question{
			{ID: "email", Type: model.TypeEmail, Required: true},
			{ID: "age", Type: model.TypeNumber},
			{ID: "phone", Type: model.TypePhone},
			{ID: "when", Type: model.TypeDate},
			{ID: "plan", Type: model.TypeRadio, Options: []string{"basic", "pro"}},
			{ID: "tags", Type: model.TypeCheckbox, Options: []string{"a", "b"}},
		},
	}

	_, err := CheckAnswers(form, map[string]any{
		"email": "not-an-email",
		"age":   "old",
		"phone": "call me",
		"when":  "tomorrow",
		"plan":  []any{"basic", "pro"},
		"tags":  []any{"a", "z"},
		"ghost": "boo",
	})
	assert.ElementsMatch(t, []string{
		`question "ghost" does not exist`,
		`question "email": invalid email "not-an-email"`,
		`question "age": invalid number "old"`,
		`question "phone": invalid phone number "call me"`,
		`question "when": invalid date "tomorrow"`,
		`question "plan": expected a single answer`,
		`question "tags": option "z" is not offered`,
	}, Problems(err))
}

func TestCheckAnswersAcceptsValidValues(t *testing.T) {
	form := model.Form{
		Questions: []model.Question{
			{ID: "age", Type: model.TypeNumber},
			{ID: "budget", Type: model.TypeNumber},
			{ID: "phone", Type: model.TypePhone},
			{ID: "when", Type: model.TypeDate},
			{ID: "tags", Type: model.TypeCheckbox, Options: []string{"a", "b"}},
		},
	}

	kept, err := CheckAnswers(form, map[string]any{
		"age":    42.0,
		"budget": "1200.50",
		"phone":  "+1 (555) 010-9999",
		"when":   "2026-06-01",
		"tags":   []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Len(t, kept, 5)
}

func TestCheckAnswersCycle(t *testing.T) {
	form := model.Form{
		Blocks: []model.Block{{ID: "b1"}, {ID: "b2"}},
		Questions: []model.Question{
			{ID: "q1", Type: model.TypeRadio, BlockID: "b1", Options: []string{"loop"}},
			{ID: "q2", Type: model.TypeRadio, BlockID: "b2", Options: []string{"loop"},
				ConditionalLogic: []model.Rule{{Option: "loop", TargetBlockID: "b1", Action: model.ActionJump}}},
		},
	}

	_, err := CheckAnswers(form, map[string]any{"q1": "loop", "q2": "loop"})
	assert.ErrorIs(t, err, ErrCycle)
}
