package routes

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/billing"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
	"github.com/mbolis/leadform/routes/middlewares"
	"github.com/mbolis/leadform/store"
)

const maxWebhookBody = 1 << 20

// credit extends the owner's subscription by one plan period for tx.
func credit(app app.App, r *http.Request, userID int, tx billing.Transaction) error {
	now := store.Now()
	_, err := store.CreditPayment(r.Context(), app.DB, model.Payment{
		Reference: tx.Reference,
		UserID:    userID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Status:    tx.Status,
		PaidAt:    tx.PaidTime(now),
	}, func(current *time.Time) time.Time {
		return billing.Extend(current, now, app.Plan.Period)
	})
	return err
}

func underpaid(app app.App, tx billing.Transaction) bool {
	return app.Plan.Price > 0 && tx.Amount < app.Plan.Price
}

// paidBy reports whether tx belongs to userID: by the user id in its
// metadata, else by the customer email.
func paidBy(app app.App, r *http.Request, tx billing.Transaction, userID int) (bool, error) {
	if owner := tx.UserID(); owner != 0 {
		return owner == userID, nil
	}
	user, err := store.GetUser(r.Context(), app, userID)
	if err != nil {
		return false, err
	}
	return tx.Customer.Email != "" && strings.EqualFold(strings.TrimSpace(tx.Customer.Email), user.Email), nil
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

// VerifyPayment is called by the dashboard once the checkout widget reports success.
func VerifyPayment(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := verifyRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil || req.Reference == "" {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		userID := middlewares.UserID(r)
		tx, err := app.Paystack.Verify(r.Context(), req.Reference)
		if errors.Is(err, billing.ErrNotConfigured) {
			httpx.LogStatus(w, http.StatusServiceUnavailable, log.ErrorLevel, "verify_payment.not_configured")
			return
		}
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadGateway, log.WarnLevel, "verify_payment.paystack", "could not verify payment: %s", err)
			return
		}
		if !tx.Successful() {
			httpx.LogStatusMsg(w, http.StatusPaymentRequired, log.DebugLevel, "verify_payment.status", "payment %s", tx.Status)
			return
		}
		ok, err := paidBy(app, r, tx, userID)
		if err != nil {
			httpx.LogInternalError(w, "db.verify_payment.owner", err)
			return
		}
		if !ok {
			httpx.LogStatus(w, http.StatusForbidden, log.WarnLevel, "verify_payment.owner")
			return
		}
		if underpaid(app, tx) {
			httpx.LogStatusMsg(w, http.StatusPaymentRequired, log.WarnLevel, "verify_payment.amount", "amount %d is below the plan price", tx.Amount)
			return
		}

		err = credit(app, r, userID, tx)
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			httpx.LogInternalError(w, "db.credit_payment", err)
			return
		}

		account, err := loadAccount(r.Context(), app, app.Plan.Grace, userID)
		if err != nil {
			httpx.LogInternalError(w, "db.verify_payment.account", err)
			return
		}
		render.JSON(w, r, account)
	}
}

// PaystackWebhook credits charges Paystack reports. It answers 200 to every
// authentic event so that Paystack stops retrying.
func PaystackWebhook(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.read_body")
			return
		}

		ev, err := app.Paystack.ParseWebhook(body, r.Header.Get("x-paystack-signature"))
		switch {
		case errors.Is(err, billing.ErrNotConfigured):
			httpx.LogStatus(w, http.StatusServiceUnavailable, log.ErrorLevel, "paystack_webhook.not_configured")
			return
		case errors.Is(err, billing.ErrInvalidSignature):
			httpx.LogStatus(w, http.StatusUnauthorized, log.WarnLevel, "paystack_webhook.signature")
			return
		case err != nil:
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "paystack_webhook.decode")
			return
		}

		logger := log.WithFields(log.Fields{"event": ev.Event, "reference": ev.Data.Reference})
		if ev.Event != billing.ChargeSuccess || !ev.Data.Successful() {
			logger.Debug("paystack_webhook.ignored")
			w.WriteHeader(http.StatusOK)
			return
		}

		var user model.User
		if id := ev.Data.UserID(); id != 0 {
			user, err = store.GetUser(r.Context(), app, id)
		} else {
			user, err = store.GetUserByEmail(r.Context(), app, ev.Data.Customer.Email)
		}
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("paystack_webhook.unknown_user")
			w.WriteHeader(http.StatusOK)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.paystack_webhook.user", err)
			return
		}

		if underpaid(app, ev.Data) {
			logger.Warnf("paystack_webhook.underpaid: %d", ev.Data.Amount)
			w.WriteHeader(http.StatusOK)
			return
		}

		err = credit(app, r, user.ID, ev.Data)
		if errors.Is(err, store.ErrDuplicate) {
			logger.Debug("paystack_webhook.replayed")
		} else if err != nil {
			httpx.LogInternalError(w, "db.credit_payment", err)
			return
		} else {
			logger.WithField("user", user.ID).Info("paystack_webhook.credited")
		}
		w.WriteHeader(http.StatusOK)
	}
}
