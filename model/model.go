package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Form struct {
	ID          int            `json:"id,omitempty"`
	PublicID    string         `json:"public_id,omitempty"`
	UserID      int            `json:"user_id,omitempty"`
	Version     int            `json:"version,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Blocks      []Block        `json:"blocks"`
	Questions   []Question     `json:"questions"`
	Media       map[string]any `json:"media,omitempty"`
	Style       map[string]any `json:"form_style,omitempty"`
	Settings    FormSettings   `json:"settings"`
	IsPublished bool           `json:"is_published"`
	ShareURL    string         `json:"share_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// only filled by listings
	SubmissionCount int `json:"submission_count,omitempty"`
}

type FormSettings struct {
	SingleResponse  bool       `json:"single_response,omitempty"`
	SubmissionLimit int        `json:"submission_limit,omitempty"`
	ClosesAt        *time.Time `json:"closes_at,omitempty"`
	NotifyEmail     string     `json:"notify_email,omitempty"`
	RedirectURL     string     `json:"redirect_url,omitempty"`
	SuccessMessage  string     `json:"success_message,omitempty"`
}

// Closed reports whether the form stopped accepting answers at now.
func (f Form) Closed(now time.Time) bool {
	return f.Settings.ClosesAt != nil && !now.Before(*f.Settings.ClosesAt)
}

// Question returns the question with the given id.
func (f Form) Question(id string) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Block is a named page of questions. It has no persistence of its own.
type Block struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeEmail    QuestionType = "email"
	TypePhone    QuestionType = "phone"
	TypeNumber   QuestionType = "number"
	TypeTextarea QuestionType = "textarea"
	TypeSelect   QuestionType = "select"
	TypeRadio    QuestionType = "radio"
	TypeCheckbox QuestionType = "checkbox"
	TypeDate     QuestionType = "date"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeEmail, TypePhone, TypeNumber, TypeTextarea,
		TypeSelect, TypeRadio, TypeCheckbox, TypeDate:
		return true
	}
	return false
}

// HasOptions is true for the types answered by picking from Options.
func (t QuestionType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckbox
}

type Question struct {
	ID               string       `json:"id"`
	Type             QuestionType `json:"type"`
	Label            string       `json:"label"`
	Required         bool         `json:"required"`
	Options          []string     `json:"options,omitempty"`
	BlockID          string       `json:"blockId"`
	ConditionalLogic []Rule       `json:"conditionalLogic,omitempty"`
}

type Action string

const (
	ActionShow Action = "show"
	ActionHide Action = "hide"
	ActionJump Action = "jump"
)

// Rule fires when the answer to its question includes Option.
type Rule struct {
	Option        string `json:"option"`
	TargetBlockID string `json:"targetBlockId"`
	Action        Action `json:"action"`
}

type Submission struct {
	ID          int            `json:"-"`
	PublicID    string         `json:"id"`
	FormID      int            `json:"formId"`
	Data        map[string]any `json:"formData"`
	SubmittedAt time.Time      `json:"submittedAt"`
	UserAgent   string         `json:"userAgent"`
	IPAddress   string         `json:"ipAddress"`
}

type EventType string

const (
	EventView     EventType = "view"
	EventStart    EventType = "start"
	EventComplete EventType = "complete"
	EventAbandon  EventType = "abandon"
)

var EventTypes = []EventType{EventView, EventStart, EventComplete, EventAbandon}

func (t EventType) Valid() bool {
	for _, e := range EventTypes {
		if t == e {
			return true
		}
	}
	return false
}

type Event struct {
	FormID    int       `json:"formId"`
	Type      EventType `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type User struct {
	ID        int        `json:"id"`
	Email     string     `json:"email"`
	PaidUntil *time.Time `json:"paid_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

type PaymentStatus string

const (
	PaymentActive  PaymentStatus = "active"
	PaymentGrace   PaymentStatus = "grace"
	PaymentExpired PaymentStatus = "expired"
)

type Payment struct {
	Reference string    `json:"reference"`
	UserID    int       `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	PaidAt    time.Time `json:"paid_at"`
}

type IntegrationKind string

const (
	KindWebhook IntegrationKind = "webhook"
	KindZapier  IntegrationKind = "zapier"
	KindCRM     IntegrationKind = "crm"
)

func (k IntegrationKind) Valid() bool {
	return k == KindWebhook || k == KindZapier || k == KindCRM
}

type Integration struct {
	ID        int             `json:"id"`
	UserID    int             `json:"-"`
	FormID    *int            `json:"form_id,omitempty"`
	Kind      IntegrationKind `json:"kind"`
	TargetURL string          `json:"target_url"`
	Secret    string          `json:"secret,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AnswerValues flattens a decoded answer into its string values.
// Multi-select answers arrive as lists, everything else as a scalar.
func AnswerValues(v any) []string {
	switch a := v.(type) {
	case nil:
		return nil
	case string:
		if a == "" {
			return nil
		}
		return []string{a}
	case []string:
		return a
	case []any:
		values := make([]string, 0, len(a))
		for _, item := range a {
			values = append(values, AnswerValues(item)...)
		}
		return values
	case float64:
		return []string{strconv.FormatFloat(a, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(a)}
	default:
		return []string{fmt.Sprint(a)}
	}
}

// AnswerText renders an answer for humans, joining multiple values.
func AnswerText(v any) string {
	return strings.Join(AnswerValues(v), ", ")
}
