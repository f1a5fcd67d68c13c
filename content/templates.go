package content

import (
	"sort"

	"github.com/mbolis/leadform/model"
)

type Template struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`

	form model.Form
}

// Form returns a fresh copy of the template's form, safe to mutate.
func (t Template) Form() model.Form {
	f := t.form
	f.Blocks = append([]model.Block(nil), t.form.Blocks...)
	f.Questions = make([]model.Question, len(t.form.Questions))
	for i, q := range t.form.Questions {
		q.Options = append([]string(nil), q.Options...)
		q.ConditionalLogic = append([]model.Rule(nil), q.ConditionalLogic...)
		f.Questions[i] = q
	}
	return f
}

var templates = map[string]Template{
	"lead-capture": {
		Slug:        "lead-capture",
		Name:        "Lead capture",
		Description: "Collect contact details and qualify prospects by budget.",
		form: model.Form{
			Title:       "Get a free quote",
			Description: "Tell us about your project and we will get back to you **within one business day**.",
			Blocks: []model.Block{
				{ID: "contact", Title: "About you"},
				{ID: "project", Title: "Your project"},
				{ID: "enterprise", Title: "Enterprise needs"},
			},
			Questions: []model.Question{
				{ID: "name", Type: model.TypeText, Label: "Full name", Required: true, BlockID: "contact"},
				{ID: "email", Type: model.TypeEmail, Label: "Work email", Required: true, BlockID: "contact"},
				{ID: "phone", Type: model.TypePhone, Label: "Phone number", BlockID: "contact"},
				{ID: "company", Type: model.TypeText, Label: "Company", BlockID: "contact"},
				{
					ID: "budget", Type: model.TypeSelect, Label: "Budget", Required: true, BlockID: "project",
					Options: []string{"Under $1k", "$1k-$10k", "Over $10k"},
					ConditionalLogic: []model.Rule{
						{Option: "Over $10k", TargetBlockID: "enterprise", Action: model.ActionShow},
					},
				},
				{ID: "details", Type: model.TypeTextarea, Label: "Project details", BlockID: "project"},
				{ID: "seats", Type: model.TypeNumber, Label: "Number of seats", BlockID: "enterprise"},
				{ID: "sso", Type: model.TypeRadio, Label: "Do you need SSO?", BlockID: "enterprise", Options: []string{"Yes", "No"}},
			},
			Settings: model.FormSettings{SuccessMessage: "Thanks! We will be in touch shortly."},
		},
	},
	"contact": {
		Slug:        "contact",
		Name:        "Contact",
		Description: "A single-page contact form.",
		form: model.Form{
			Title: "Contact us",
			Blocks: []model.Block{
				{ID: "main", Title: "Contact"},
			},
			Questions: []model.Question{
				{ID: "name", Type: model.TypeText, Label: "Name", Required: true, BlockID: "main"},
				{ID: "email", Type: model.TypeEmail, Label: "Email", Required: true, BlockID: "main"},
				{ID: "message", Type: model.TypeTextarea, Label: "Message", Required: true, BlockID: "main"},
			},
			Settings: model.FormSettings{SuccessMessage: "Thanks for reaching out."},
		},
	},
	"event-registration": {
		Slug:        "event-registration",
		Name:        "Event registration",
		Description: "Register attendees and ask in-person guests about dietary needs.",
		form: model.Form{
			Title:       "Register for the event",
			Description: "Seats are limited.",
			Blocks: []model.Block{
				{ID: "attendee", Title: "Attendee"},
				{ID: "in-person", Title: "In-person details"},
				{ID: "final", Title: "Almost done"},
			},
			Questions: []model.Question{
				{ID: "name", Type: model.TypeText, Label: "Full name", Required: true, BlockID: "attendee"},
				{ID: "email", Type: model.TypeEmail, Label: "Email", Required: true, BlockID: "attendee"},
				{
					ID: "attendance", Type: model.TypeRadio, Label: "How will you attend?", Required: true, BlockID: "attendee",
					Options: []string{"In person", "Online"},
					ConditionalLogic: []model.Rule{
						{Option: "Online", TargetBlockID: "final", Action: model.ActionJump},
					},
				},
				{ID: "diet", Type: model.TypeCheckbox, Label: "Dietary requirements", BlockID: "in-person", Options: []string{"Vegetarian", "Vegan", "Gluten free", "None"}},
				{ID: "arrival", Type: model.TypeDate, Label: "Arrival date", BlockID: "in-person"},
				{ID: "questions", Type: model.TypeTextarea, Label: "Anything you want to ask the speakers?", BlockID: "final"},
			},
			Settings: model.FormSettings{SingleResponse: true, SuccessMessage: "You are registered. See you there!"},
		},
	},
	"feedback": {
		Slug:        "feedback",
		Name:        "Feedback",
		Description: "Rate your product and follow up on unhappy customers.",
		form: model.Form{
			Title: "How did we do?",
			Blocks: []model.Block{
				{ID: "rating", Title: "Rating"},
				{ID: "unhappy", Title: "Help us improve"},
				{ID: "contact", Title: "Stay in touch"},
			},
			Questions: []model.Question{
				{
					ID: "score", Type: model.TypeRadio, Label: "How satisfied are you?", Required: true, BlockID: "rating",
					Options: []string{"Very satisfied", "Satisfied", "Unsatisfied"},
					ConditionalLogic: []model.Rule{
						{Option: "Very satisfied", TargetBlockID: "unhappy", Action: model.ActionHide},
						{Option: "Satisfied", TargetBlockID: "unhappy", Action: model.ActionHide},
					},
				},
				{ID: "improve", Type: model.TypeTextarea, Label: "What should we do better?", BlockID: "unhappy"},
				{ID: "email", Type: model.TypeEmail, Label: "Email (optional)", BlockID: "contact"},
			},
			Settings: model.FormSettings{SuccessMessage: "Thank you for your feedback."},
		},
	},
}

func LookupTemplate(slug string) (Template, bool) {
	t, ok := templates[slug]
	return t, ok
}

// Templates lists the built-in templates ordered by slug.
func Templates() []Template {
	list := make([]Template, 0, len(templates))
	for _, t := range templates {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })
	return list
}
