package routes

import (
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/content"
	"github.com/mbolis/leadform/flow"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

const untitledForm = "Untitled form"

type templateView struct {
	content.Template
	Form model.Form `json:"form"`
}

func ListTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates := content.Templates()
		views := make([]templateView, len(templates))
		for i, t := range templates {
			views[i] = templateView{t, t.Form()}
		}
		render.JSON(w, r, map[string]any{
			"templates": views,
		})
	}
}

// checkFormQuota answers 402 when the owner's plan has no room for another form.
func checkFormQuota(app app.App, w http.ResponseWriter, r *http.Request) bool {
	account, err := loadAccount(r.Context(), app, app.Plan.Grace, middlewares.UserID(r))
	if err != nil {
		httpx.LogInternalError(w, "db.form_quota", err)
		return false
	}
	if !account.CanCreateForm() {
		httpx.LogStatusMsg(w, http.StatusPaymentRequired, log.DebugLevel, "form_quota.exceeded",
			"the %s plan allows %d forms", account.Tier, account.Limits.Forms)
		return false
	}
	return true
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := model.Form{}
		if slug := r.URL.Query().Get("template"); slug != "" {
			tpl, ok := content.LookupTemplate(slug)
			if !ok {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "create_form.template", "unknown template %q", slug)
				return
			}
			form = tpl.Form()

			// the body may rename the template's form
			override := model.Form{}
			err := render.DecodeJSON(r.Body, &override)
			if err != nil && !errors.Is(err, io.EOF) {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
				return
			}
			if override.Title != "" {
				form.Title = override.Title
			}
		} else {
			err := render.DecodeJSON(r.Body, &form)
			if err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
				return
			}
		}
		if form.Title == "" {
			form.Title = untitledForm
		}

		if err := flow.Validate(form); err != nil {
			httpx.LogValidation(w, r, "create_form.validate", flow.Problems(err))
			return
		}
		if !checkFormQuota(app, w, r) {
			return
		}

		form.UserID = middlewares.UserID(r)
		err := store.CreateForm(r.Context(), app, &form)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":        form.ID,
			"public_id": form.PublicID,
			"version":   form.Version,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := store.ListForms(r.Context(), app, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "get_form")
		if !ok {
			return
		}
		render.JSON(w, r, form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := intParam(w, r, "id")
		if !ok {
			return
		}

		form := model.Form{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if form.Version < 1 {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "update_form.version", "missing version")
			return
		}
		if form.Title == "" {
			form.Title = untitledForm
		}
		if err := flow.Validate(form); err != nil {
			httpx.LogValidation(w, r, "update_form.validate", flow.Problems(err))
			return
		}

		form.ID = id
		form.UserID = middlewares.UserID(r)
		err = store.UpdateForm(r.Context(), app, &form)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.LogNotFound(w, "update_form", id)
			return
		case errors.Is(err, store.ErrConflict):
			// optimistic lock
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		case err != nil:
			httpx.LogInternalError(w, "db.update_form", err)
			return
		}

		updated, err := store.GetForm(r.Context(), app, form.UserID, id)
		if err != nil {
			httpx.LogInternalError(w, "db.update_form.reload", err)
			return
		}
		render.JSON(w, r, updated)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := intParam(w, r, "id")
		if !ok {
			return
		}

		err := store.DeleteForm(r.Context(), app, middlewares.UserID(r), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "delete_form", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func shareURL(app app.App, form model.Form) string {
	return app.BaseURL + "/f/" + form.PublicID
}

// PublishForm sets the published flag of a form to published.
func PublishForm(app app.App, published bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "publish_form")
		if !ok {
			return
		}

		link := ""
		if published {
			link = shareURL(app, form)
		}
		err := store.SetPublished(r.Context(), app, form.UserID, form.ID, published, link)
		if err != nil {
			httpx.LogInternalError(w, "db.publish_form", err)
			return
		}

		updated, err := store.GetForm(r.Context(), app, form.UserID, form.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.publish_form.reload", err)
			return
		}
		render.JSON(w, r, updated)
	}
}

func DuplicateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := ownedForm(app, w, r, "duplicate_form")
		if !ok {
			return
		}
		if !checkFormQuota(app, w, r) {
			return
		}

		form.Title += " (copy)"
		err := store.CreateForm(r.Context(), app, &form)
		if err != nil {
			httpx.LogInternalError(w, "db.duplicate_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":        form.ID,
			"public_id": form.PublicID,
			"version":   form.Version,
		})
	}
}
