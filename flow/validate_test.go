package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbolis/leadform/model"
)

func TestValidateAcceptsWellFormedForms(t *testing.T) {
	assert.NoError(t, Validate(branchingForm()))
	assert.NoError(t, Validate(visibilityForm()))
	assert.NoError(t, Validate(model.Form{}))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	form := model.Form{
		Blocks: []model.Block{{ID: "b1"}, {ID: "b1"}, {}},
		Questions: []model.Question{
			{ID: "q1", Type: model.TypeRadio, BlockID: "b1", Options: []string{"yes"},
				ConditionalLogic: []model.Rule{
					{Option: "no", TargetBlockID: "b1", Action: model.ActionJump},
					{Option: "yes", TargetBlockID: "nowhere", Action: "teleport"},
				}},
			{ID: "q1", Type: "slider", BlockID: "gone"},
			{ID: "q3", Type: model.TypeSelect, BlockID: "b1"},
		},
	}

	problems := Problems(Validate(form))
	assert.ElementsMatch(t, []string{
		`block "b1": duplicate id`,
		`block 3: missing id`,
		`question "q1" rule 1: option "no" is not offered`,
		`question "q1" rule 2: unknown action "teleport"`,
		`question "q1" rule 2: target block "nowhere" does not exist`,
		`question "q1": duplicate id`,
		`question "q1": unknown type "slider"`,
		`question "q1": block "gone" does not exist`,
		`question "q3": select question needs options`,
	}, problems)
}

func TestProblemsOfPlainError(t *testing.T) {
	assert.Nil(t, Problems(nil))
	assert.Equal(t, []string{"flow: answer required"}, Problems(ErrRequired))
}
