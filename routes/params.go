package routes

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/billing"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param."+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback, min, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// ownedForm loads the {id} form of the authenticated owner. Forms of other
// owners are reported as missing.
func ownedForm(app app.App, w http.ResponseWriter, r *http.Request, code string) (model.Form, bool) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return model.Form{}, false
	}

	form, err := store.GetForm(r.Context(), app, middlewares.UserID(r), id)
	if errors.Is(err, store.ErrNotFound) {
		httpx.LogNotFound(w, code, id)
		return form, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db."+code, err)
		return form, false
	}
	return form, true
}

// loadAccount combines an owner's subscription with this month's usage.
// Inside a write transaction the usage counts cannot race other writers.
func loadAccount(ctx context.Context, db store.DBTX, grace time.Duration, userID int) (billing.Account, error) {
	user, err := store.GetUser(ctx, db, userID)
	if err != nil {
		return billing.Account{}, err
	}

	now := store.Now()
	forms, err := store.CountForms(ctx, db, userID)
	if err != nil {
		return billing.Account{}, err
	}
	submissions, err := store.CountUserSubmissions(ctx, db, userID, billing.MonthStart(now))
	if err != nil {
		return billing.Account{}, err
	}

	usage := billing.Usage{Forms: forms, SubmissionsThisMonth: submissions}
	return billing.NewAccount(user, usage, now, grace), nil
}
