package routes

import (
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

const minPasswordLength = 8

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

type registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := registration{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		addr, err := mail.ParseAddress(req.Email)
		if err != nil || addr.Address != strings.TrimSpace(req.Email) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "register.email", "invalid email %q", req.Email)
			return
		}
		if len(req.Password) < minPasswordLength {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "register.password", "password must be at least %d characters", minPasswordLength)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, "register.hash", err)
			return
		}

		id, err := store.CreateUser(r.Context(), app, strings.ToLower(addr.Address), hash)
		if errors.Is(err, store.ErrDuplicate) {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "register.duplicate", "email already registered")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_user", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": id,
		})
	}
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		body := url.Values{
			"grant_type": {"password"},
			"username":   {strings.ToLower(strings.TrimSpace(user))},
			"password":   {pass},
		}
		r.Body = io.NopCloser(strings.NewReader(body.Encode()))
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
		r.Header.Set("content-length", strconv.Itoa(len(body.Encode())))
		app.UserCredentials(w, r)
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		body := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "/", strings.NewReader(body.Encode()))
		if err != nil {
			httpx.LogInternalError(w, "refresh.new_request", err)
			return
		}
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
		req.Header.Set("content-length", strconv.Itoa(len(body.Encode())))

		resp := httpx.NewResponseBuffer()
		app.UserCredentials(resp, req)
		if resp.Status() != http.StatusOK {
			log.Debugf("refresh.rejected: status %d", resp.Status())
		}
		resp.Flush(w)
	}
}

func Me(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middlewares.UserID(r)
		account, err := loadAccount(r.Context(), app, app.Plan.Grace, userID)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, "get_me", userID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_me", err)
			return
		}

		payments, err := store.ListPayments(r.Context(), app, userID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_me.payments", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"account":  account,
			"payments": payments,
		})
	}
}
