package flow

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/leadform/model"
)

var rePhone = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)

// CheckAnswers validates a submission against the path its own answers take
// through form. It returns the answers on that path; answers to questions
// the path skipped are dropped.
func CheckAnswers(form model.Form, answers map[string]any) (map[string]any, error) {
	var result *multierror.Error

	for id := range answers {
		if _, ok := form.Question(id); !ok {
			result = multierror.Append(result, fmt.Errorf("question %q does not exist", id))
		}
	}

	path, err := New(form).Walk(answers)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]any, len(path))
	for _, id := range path {
		q, _ := form.Question(id)
		v := answers[id]
		values := model.AnswerValues(v)
		if len(values) == 0 {
			if q.Required {
				result = multierror.Append(result, fmt.Errorf("question %q: answer required", id))
			}
			continue
		}
		if err := checkValue(q, v, values); err != nil {
			result = multierror.Append(result, fmt.Errorf("question %q: %w", id, err))
			continue
		}
		kept[id] = v
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return kept, nil
}

func checkValue(q model.Question, raw any, values []string) error {
	if q.Type != model.TypeCheckbox && len(values) > 1 {
		return fmt.Errorf("expected a single answer")
	}

	switch q.Type {
	case model.TypeEmail:
		if _, err := mail.ParseAddress(values[0]); err != nil {
			return fmt.Errorf("invalid email %q", values[0])
		}
	case model.TypeNumber:
		if _, ok := raw.(float64); ok {
			return nil
		}
		if _, err := strconv.ParseFloat(values[0], 64); err != nil {
			return fmt.Errorf("invalid number %q", values[0])
		}
	case model.TypePhone:
		if !rePhone.MatchString(values[0]) {
			return fmt.Errorf("invalid phone number %q", values[0])
		}
	case model.TypeDate:
		if _, err := time.Parse("2006-01-02", values[0]); err != nil {
			return fmt.Errorf("invalid date %q", values[0])
		}
	case model.TypeSelect, model.TypeRadio, model.TypeCheckbox:
		for _, v := range values {
			if !contains(q.Options, v) {
				return fmt.Errorf("option %q is not offered", v)
			}
		}
	}
	return nil
}
