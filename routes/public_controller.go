package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/content"
	"github.com/mbolis/leadform/flow"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/integrations"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/store"
)

const notifyTimeout = 30 * time.Second

// publishedForm loads the {slug} form if visitors may see it.
func publishedForm(app app.App, w http.ResponseWriter, r *http.Request, code string) (model.Form, bool) {
	slug := chi.URLParam(r, "slug")
	form, err := store.GetFormByPublicID(r.Context(), app, slug)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !form.IsPublished) {
		httpx.LogNotFound(w, code, slug)
		return form, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db."+code, err)
		return form, false
	}
	if form.Closed(store.Now()) {
		httpx.LogStatusMsg(w, http.StatusGone, log.DebugLevel, code+".closed", "this form is closed")
		return form, false
	}
	return form, true
}

type publicForm struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DescriptionHTML string           `json:"description_html"`
	Blocks          []model.Block    `json:"blocks"`
	Questions       []model.Question `json:"questions"`
	Media           map[string]any   `json:"media,omitempty"`
	Style           map[string]any   `json:"form_style,omitempty"`
	SingleResponse  bool             `json:"single_response,omitempty"`
	ClosesAt        *time.Time       `json:"closes_at,omitempty"`
}

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := publishedForm(app, w, r, "public_get_form")
		if !ok {
			return
		}

		html, err := content.Markdown(form.Description)
		if err != nil {
			httpx.LogInternalError(w, "public_get_form.markdown", err)
			return
		}

		render.JSON(w, r, publicForm{
			ID:              form.PublicID,
			Title:           form.Title,
			Description:     form.Description,
			DescriptionHTML: html,
			Blocks:          form.Blocks,
			Questions:       form.Questions,
			Media:           form.Media,
			Style:           form.Style,
			SingleResponse:  form.Settings.SingleResponse,
			ClosesAt:        form.Settings.ClosesAt,
		})
	}
}

type eventRequest struct {
	Type      model.EventType `json:"event_type"`
	SessionID string          `json:"session_id"`
}

func PublicRecordEvent(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := eventRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if !req.Type.Valid() {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "record_event.type", "unknown event type %q", req.Type)
			return
		}

		form, ok := publishedForm(app, w, r, "record_event")
		if !ok {
			return
		}

		err = store.InsertEvent(r.Context(), app, model.Event{
			FormID:    form.ID,
			Type:      req.Type,
			SessionID: req.SessionID,
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_event", err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

type navigateRequest struct {
	State  *flow.State `json:"state"`
	Answer any         `json:"answer"`
}

type navigateResponse struct {
	State    flow.State      `json:"state"`
	Block    *model.Block    `json:"block"`
	Question *model.Question `json:"question"`
	Done     bool            `json:"done"`
}

// PublicNavigate runs one step of the branching engine for a visitor.
// Without a state it returns the first question.
func PublicNavigate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := navigateRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, ok := publishedForm(app, w, r, "navigate")
		if !ok {
			return
		}

		engine := flow.New(form)
		var state flow.State
		if req.State == nil {
			state = engine.Start()
		} else {
			state, err = engine.Answer(*req.State, req.Answer)
			switch {
			case errors.Is(err, flow.ErrRequired):
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "navigate.required", "an answer is required")
				return
			case errors.Is(err, flow.ErrFinished):
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "navigate.finished", "the form is already finished")
				return
			}
		}

		resp := navigateResponse{State: state, Done: state.Done}
		if q, ok := engine.Current(state); ok {
			resp.Question = &q
		}
		if b, ok := engine.BlockAt(state); ok {
			resp.Block = &b
		}
		render.JSON(w, r, resp)
	}
}

type submitRequest struct {
	Data map[string]any `json:"data"`
}

// decodeSubmission accepts JSON bodies and plain HTML form posts.
func decodeSubmission(r *http.Request) (map[string]any, error) {
	if render.GetRequestContentType(r) == render.ContentTypeForm {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		data := make(map[string]any, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) == 1 {
				data[key] = values[0]
				continue
			}
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			data[key] = list
		}
		return data, nil
	}

	req := submitRequest{}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return nil, err
	}
	return req.Data, nil
}

type IpCheck struct {
	op     bool
	key    string
	result chan<- bool
}

func PublicSubmitForm(app app.App) http.HandlerFunc {
	// serialises single-response submissions coming from the same IP
	validateIpStart := make(chan IpCheck)
	go func() {
		submissionIPs := make(map[string]bool)

		for {
			req := <-validateIpStart
			if req.op {
				req.result <- submissionIPs[req.key]
				submissionIPs[req.key] = true
			} else {
				delete(submissionIPs, req.key)
			}
		}
	}()

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := decodeSubmission(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, ok := publishedForm(app, w, r, "submit_form")
		if !ok {
			return
		}

		data, err = flow.CheckAnswers(form, data)
		if errors.Is(err, flow.ErrCycle) {
			httpx.LogValidation(w, r, "submit_form.cycle", []string{err.Error()})
			return
		}
		if err != nil {
			httpx.LogValidation(w, r, "submit_form.validate", flow.Problems(err))
			return
		}

		ip := httpx.ClientIP(r)
		if form.Settings.SingleResponse {
			key := form.PublicID + "|" + ip
			// check ip is not submitting now
			validateIpDone := make(chan bool)
			validateIpStart <- IpCheck{true, key, validateIpDone}
			if <-validateIpDone {
				httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "ip.already_submitted", "already submitted")
				return
			}
			defer func() { validateIpStart <- IpCheck{false, key, nil} }()

			// check ip did not already submit
			alreadySubmitted, err := store.HasSubmissionFromIP(r.Context(), app, form.ID, ip)
			if err != nil {
				httpx.LogInternalError(w, "db.get_ip", err)
				return
			}
			if alreadySubmitted {
				httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "ip.already_submitted", "already submitted")
				return
			}
		}

		submission := model.Submission{
			FormID:    form.ID,
			Data:      data,
			UserAgent: r.UserAgent(),
			IPAddress: ip,
		}

		// the write transaction holds the database lock, so the caps are
		// counted and enforced atomically with the insert
		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		if limit := form.Settings.SubmissionLimit; limit > 0 {
			n, err := store.CountSubmissions(r.Context(), tx, form.ID)
			if err != nil {
				httpx.LogInternalError(w, "db.submission_limit", err)
				return
			}
			if n >= limit {
				httpx.LogStatusMsg(w, http.StatusGone, log.DebugLevel, "submit_form.limit", "this form is no longer accepting responses")
				return
			}
		}

		account, err := loadAccount(r.Context(), tx, app.Plan.Grace, form.UserID)
		if err != nil {
			httpx.LogInternalError(w, "db.submission_quota", err)
			return
		}
		if !account.CanReceiveSubmission() {
			httpx.LogStatusMsg(w, http.StatusPaymentRequired, log.InfoLevel, "submit_form.quota", "this form is not accepting responses right now")
			return
		}

		err = store.InsertSubmission(r.Context(), tx, &submission)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission", err)
			return
		}
		err = store.InsertEvent(r.Context(), tx, model.Event{
			FormID:    form.ID,
			Type:      model.EventComplete,
			Timestamp: submission.SubmittedAt,
		})
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission.event", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission.commit", err)
			return
		}

		notify(app, r.Context(), form, submission)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":              submission.PublicID,
			"success_message": form.Settings.SuccessMessage,
			"redirect_url":    form.Settings.RedirectURL,
		})
	}
}

// notify hands a stored submission to the owner's integrations and mailbox.
// Failures are logged: the visitor's submission is already safe.
func notify(app app.App, ctx context.Context, form model.Form, s model.Submission) {
	logger := log.WithFields(log.Fields{"form": form.ID, "submission": s.PublicID})

	if app.Dispatcher != nil {
		targets, err := store.FormIntegrations(ctx, app, form.UserID, form.ID)
		if err != nil {
			logger.WithError(err).Error("notify.integrations")
		} else if err := app.Dispatcher.Enqueue(targets, integrations.SubmissionPayload(form, s)); err != nil {
			logger.WithError(err).Error("notify.enqueue")
		}
	}

	if app.Mailer != nil && form.Settings.NotifyEmail != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := app.Mailer.SendSubmission(ctx, form.Settings.NotifyEmail, form, s); err != nil {
				logger.WithError(err).Error("notify.email")
			}
		}()
	}
}
