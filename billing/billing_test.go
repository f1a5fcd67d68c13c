package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/leadform/model"
)

var (
	now   = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	grace = 7 * 24 * time.Hour
)

func ptr(t time.Time) *time.Time { return &t }

func TestStatus(t *testing.T) {
	tests := []struct {
		name      string
		paidUntil *time.Time
		expected  model.PaymentStatus
	}{
		{"never paid", nil, model.PaymentExpired},
		{"paid ahead", ptr(now.Add(24 * time.Hour)), model.PaymentActive},
		{"last instant", ptr(now), model.PaymentActive},
		{"just lapsed", ptr(now.Add(-time.Hour)), model.PaymentGrace},
		{"end of grace", ptr(now.Add(-grace)), model.PaymentGrace},
		{"past grace", ptr(now.Add(-grace - time.Second)), model.PaymentExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Status(tt.paidUntil, now, grace))
		})
	}
}

func TestEffectiveTier(t *testing.T) {
	assert.Equal(t, model.TierPremium, EffectiveTier(model.PaymentActive))
	assert.Equal(t, model.TierPremium, EffectiveTier(model.PaymentGrace))
	assert.Equal(t, model.TierFree, EffectiveTier(model.PaymentExpired))
}

func TestExtend(t *testing.T) {
	period := 30 * 24 * time.Hour
	assert.Equal(t, now.Add(period), Extend(nil, now, period))
	assert.Equal(t, now.Add(period), Extend(ptr(now.Add(-48*time.Hour)), now, period), "lapsed plans restart today")

	ahead := now.Add(10 * 24 * time.Hour)
	assert.Equal(t, ahead.Add(period), Extend(&ahead, now, period), "early renewals stack")
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), MonthStart(now))
}

func TestAccountLimits(t *testing.T) {
	free := NewAccount(model.User{ID: 1}, Usage{Forms: 2, SubmissionsThisMonth: 100}, now, grace)
	assert.Equal(t, model.TierFree, free.Tier)
	assert.Equal(t, model.PaymentExpired, free.PaymentStatus)
	assert.Nil(t, free.GraceUntil)
	assert.True(t, free.CanCreateForm())
	assert.False(t, free.CanReceiveSubmission())

	free.Usage.Forms = 3
	assert.False(t, free.CanCreateForm())

	paid := NewAccount(model.User{ID: 1, PaidUntil: ptr(now.Add(-time.Hour))}, Usage{Forms: 50, SubmissionsThisMonth: 5000}, now, grace)
	assert.Equal(t, model.TierPremium, paid.Tier)
	assert.Equal(t, model.PaymentGrace, paid.PaymentStatus)
	require.NotNil(t, paid.GraceUntil)
	assert.Equal(t, now.Add(-time.Hour).Add(grace), *paid.GraceUntil)
	assert.True(t, paid.CanCreateForm())
	assert.True(t, paid.CanReceiveSubmission())
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseWebhook(t *testing.T) {
	p := NewPaystack("sk_test_123", "https://api.paystack.co")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-9","status":"success","amount":500000,"currency":"NGN","paid_at":"2026-04-15T10:00:00.000Z","customer":{"email":"owner@example.com"},"metadata":{"user_id":"42"}}}`)

	ev, err := p.ParseWebhook(body, sign("sk_test_123", body))
	require.NoError(t, err)
	assert.Equal(t, ChargeSuccess, ev.Event)
	assert.True(t, ev.Data.Successful())
	assert.Equal(t, 42, ev.Data.UserID())
	assert.Equal(t, "owner@example.com", ev.Data.Customer.Email)
	assert.Equal(t, time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC), ev.Data.PaidTime(now))

	_, err = p.ParseWebhook(body, sign("wrong", body))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewPaystack("", "").ParseWebhook(body, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTransactionUserID(t *testing.T) {
	assert.Equal(t, 7, Transaction{Metadata: []byte(`{"user_id":7}`)}.UserID())
	assert.Equal(t, 0, Transaction{Metadata: []byte(`""`)}.UserID())
	assert.Equal(t, 0, Transaction{}.UserID())
	assert.Equal(t, now, Transaction{PaidAt: "garbage"}.PaidTime(now))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/transaction/verify/ref-ok":
			w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"ref-ok","status":"success","amount":500000,"currency":"NGN","metadata":{"user_id":3}}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	}))
	defer srv.Close()

	p := NewPaystack("sk_test_123", srv.URL+"/")

	tx, err := p.Verify(context.Background(), "ref-ok")
	require.NoError(t, err)
	assert.True(t, tx.Successful())
	assert.Equal(t, int64(500000), tx.Amount)
	assert.Equal(t, 3, tx.UserID())

	_, err = p.Verify(context.Background(), "ref-missing")
	assert.EqualError(t, err, `paystack: verify "ref-missing": Transaction reference not found`)
}
