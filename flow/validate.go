package flow

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/leadform/model"
)

// Validate checks the structure of a form and reports every problem found.
func Validate(form model.Form) error {
	var result *multierror.Error

	blocks := map[string]bool{}
	for i, b := range form.Blocks {
		switch {
		case b.ID == "":
			result = multierror.Append(result, fmt.Errorf("block %d: missing id", i+1))
		case blocks[b.ID]:
			result = multierror.Append(result, fmt.Errorf("block %q: duplicate id", b.ID))
		}
		blocks[b.ID] = true
	}

	questions := map[string]bool{}
	for i, q := range form.Questions {
		name := fmt.Sprintf("question %q", q.ID)
		switch {
		case q.ID == "":
			name = fmt.Sprintf("question %d", i+1)
			result = multierror.Append(result, fmt.Errorf("%s: missing id", name))
		case questions[q.ID]:
			result = multierror.Append(result, fmt.Errorf("%s: duplicate id", name))
		}
		questions[q.ID] = true

		if !q.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("%s: unknown type %q", name, q.Type))
		}
		if len(form.Blocks) > 0 && !blocks[q.BlockID] {
			result = multierror.Append(result, fmt.Errorf("%s: block %q does not exist", name, q.BlockID))
		}
		if q.Type.HasOptions() && len(q.Options) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %s question needs options", name, q.Type))
		}

		for j, r := range q.ConditionalLogic {
			rule := fmt.Sprintf("%s rule %d", name, j+1)
			switch r.Action {
			case model.ActionShow, model.ActionHide, model.ActionJump:
			default:
				result = multierror.Append(result, fmt.Errorf("%s: unknown action %q", rule, r.Action))
			}
			if !blocks[r.TargetBlockID] {
				result = multierror.Append(result, fmt.Errorf("%s: target block %q does not exist", rule, r.TargetBlockID))
			}
			if q.Type.HasOptions() && !contains(q.Options, r.Option) {
				result = multierror.Append(result, fmt.Errorf("%s: option %q is not offered", rule, r.Option))
			}
		}
	}

	return result.ErrorOrNil()
}

// Problems lists the individual messages of a Validate error.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		problems := make([]string, len(merr.Errors))
		for i, e := range merr.Errors {
			problems[i] = e.Error()
		}
		return problems
	}
	return []string{err.Error()}
}
