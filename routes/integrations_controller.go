package routes

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

const (
	apiTokenScope  = "integrations"
	pollBatchLimit = 100
)

func ListIntegrations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListIntegrations(r.Context(), app, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, "db.get_integrations", err)
			return
		}
		render.JSON(w, r, map[string]any{
			"integrations": list,
		})
	}
}

func validTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func CreateIntegration(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := model.Integration{}
		err := render.DecodeJSON(r.Body, &in)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		var problems []string
		if !in.Kind.Valid() {
			problems = append(problems, "unknown kind "+strconv.Quote(string(in.Kind)))
		}
		if !validTargetURL(in.TargetURL) {
			problems = append(problems, "target_url must be an absolute http(s) URL")
		}
		if len(problems) > 0 {
			httpx.LogValidation(w, r, "create_integration.validate", problems)
			return
		}

		in.UserID = middlewares.UserID(r)
		if in.FormID != nil {
			_, err := store.GetForm(r.Context(), app, in.UserID, *in.FormID)
			if errors.Is(err, store.ErrNotFound) {
				httpx.LogNotFound(w, "create_integration.form", *in.FormID)
				return
			}
			if err != nil {
				httpx.LogInternalError(w, "db.create_integration.form", err)
				return
			}
		}

		err = store.CreateIntegration(r.Context(), app, &in)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_integration", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, in)
	}
}

func DeleteIntegration(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := intParam(w, r, "id")
		if !ok {
			return
		}

		err := store.DeleteIntegration(r.Context(), app, middlewares.UserID(r), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "delete_integration", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_integration", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// IssueAPIToken hands out a token for the integration API.
func IssueAPIToken(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := map[string]interface{}{
			httpx.ClaimUserID: strconv.Itoa(middlewares.UserID(r)),
			"scope":           apiTokenScope,
		}
		jwtauth.SetIssuedNow(claims)

		_, token, err := app.APITokens.Encode(claims)
		if err != nil {
			httpx.LogInternalError(w, "api_token.encode", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"token": token,
		})
	}
}

type hookForm struct {
	ID       int    `json:"id"`
	PublicID string `json:"public_id"`
	Title    string `json:"title"`
}

// HookListForms feeds the form dropdowns of Zapier-like tools.
func HookListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := store.ListForms(r.Context(), app, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, "db.hook_forms", err)
			return
		}

		list := make([]hookForm, len(forms))
		for i, f := range forms {
			list[i] = hookForm{f.ID, f.PublicID, f.Title}
		}
		render.JSON(w, r, list)
	}
}

// HookPollSubmissions is the polling trigger: submissions newer than ?since,
// oldest first.
func HookPollSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "hook_submissions.since", "since must be RFC3339")
				return
			}
			since = t
		}

		form, ok := ownedForm(app, w, r, "hook_submissions")
		if !ok {
			return
		}

		submissions, err := store.SubmissionsSince(r.Context(), app, form.ID, since, pollBatchLimit)
		if err != nil {
			httpx.LogInternalError(w, "db.hook_submissions", err)
			return
		}
		render.JSON(w, r, submissions)
	}
}
