package routes

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/analytics"
	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/export"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

var reNoIdent = regexp.MustCompile(`\W+`)

func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "get_submissions")
		if !ok {
			return
		}

		page := queryInt(r, "page", 1, 1, 1<<20)
		perPage := queryInt(r, "per_page", defaultPerPage, 1, maxPerPage)

		total, err := store.CountSubmissions(r.Context(), app, form.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions.count", err)
			return
		}
		submissions, err := store.ListSubmissions(r.Context(), app, form.ID, perPage, (page-1)*perPage)
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
			"total":       total,
			"page":        page,
			"per_page":    perPage,
		})
	}
}

func GetSubmission(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "get_submission")
		if !ok {
			return
		}

		sid := chi.URLParam(r, "sid")
		submission, err := store.GetSubmission(r.Context(), app, form.ID, sid)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "get_submission", sid)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_submission", err)
			return
		}
		render.JSON(w, r, submission)
	}
}

// exportName turns a form title into a file name.
func exportName(title, ext string) string {
	name := strings.ToLower(title)
	name = reNoIdent.ReplaceAllLiteralString(name, " ")
	name = strings.Join(strings.Fields(name), "-")
	if name == "" {
		name = "form"
	}
	return fmt.Sprintf("%s-submissions.%s", name, ext)
}

func ExportSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		spec, ok := export.Formats[format]
		if !ok {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "export.format", "unknown format %q", format)
			return
		}

		form, ok := ownedForm(app, w, r, "export_submissions")
		if !ok {
			return
		}

		submissions, err := store.ListSubmissions(r.Context(), app, form.ID, -1, 0)
		if err != nil {
			httpx.LogInternalError(w, "db.export_submissions", err)
			return
		}
		counts, err := store.CountEvents(r.Context(), app, form.ID, time.Time{})
		if err != nil {
			httpx.LogInternalError(w, "db.export_submissions.events", err)
			return
		}
		funnel := analytics.NewFunnel(counts, len(submissions))

		var buf bytes.Buffer
		if err := export.Write(&buf, format, form, submissions, funnel); err != nil {
			httpx.LogInternalError(w, "export."+format, err)
			return
		}

		w.Header().Set("Content-Type", spec.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportName(form.Title, spec.Extension)))
		w.Write(buf.Bytes())
	}
}

func FormAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "form_analytics")
		if !ok {
			return
		}

		days := queryInt(r, "days", 30, 1, 365)
		now := store.Now()
		since := analytics.WindowStart(days, now)

		events, err := store.EventsSince(r.Context(), app, form.ID, since)
		if err != nil {
			httpx.LogInternalError(w, "db.form_analytics.events", err)
			return
		}
		counts := map[model.EventType]int{}
		for _, e := range events {
			counts[e.Type]++
		}
		submissions, err := store.CountSubmissions(r.Context(), app, form.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.form_analytics.submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"form_id": form.ID,
			"days":    days,
			"funnel":  analytics.NewFunnel(counts, submissions),
			"daily":   analytics.Daily(events, days, now),
		})
	}
}

type formFunnel struct {
	ID     int              `json:"id"`
	Title  string           `json:"title"`
	Funnel analytics.Funnel `json:"funnel"`
}

func DashboardAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middlewares.UserID(r)
		days := queryInt(r, "days", 30, 1, 365)
		since := analytics.WindowStart(days, store.Now())

		forms, err := store.ListForms(r.Context(), app, userID)
		if err != nil {
			httpx.LogInternalError(w, "db.dashboard_analytics.forms", err)
			return
		}

		byForm, err := store.CountFormEvents(r.Context(), app, userID, since)
		if err != nil {
			httpx.LogInternalError(w, "db.dashboard_analytics.events", err)
			return
		}
		totals, err := store.CountUserEvents(r.Context(), app, userID, since)
		if err != nil {
			httpx.LogInternalError(w, "db.dashboard_analytics.totals", err)
			return
		}

		submissions := 0
		perForm := make([]formFunnel, 0, len(forms))
		for _, f := range forms {
			perForm = append(perForm, formFunnel{f.ID, f.Title, analytics.NewFunnel(byForm[f.ID], f.SubmissionCount)})
			submissions += f.SubmissionCount
		}

		render.JSON(w, r, map[string]any{
			"days":   days,
			"totals": analytics.NewFunnel(totals, submissions),
			"forms":  perForm,
		})
	}
}
