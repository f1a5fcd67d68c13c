package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature = errors.New("paystack: invalid signature")
	ErrNotConfigured    = errors.New("paystack: secret key not configured")
)

const ChargeSuccess = "charge.success"

// Paystack verifies payments made through the Paystack checkout widget.
type Paystack struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewPaystack(secretKey, baseURL string) *Paystack {
	return &Paystack{
		SecretKey: secretKey,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type Customer struct {
	Email string `json:"email"`
}

type Transaction struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    string          `json:"paid_at"`
	Customer  Customer        `json:"customer"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (t Transaction) Successful() bool {
	return t.Status == "success"
}

// UserID returns the owner id the checkout widget put in the metadata, or 0.
func (t Transaction) UserID() int {
	var meta map[string]any
	if err := json.Unmarshal(t.Metadata, &meta); err != nil {
		return 0
	}
	switch v := meta["user_id"].(type) {
	case float64:
		return int(v)
	case string:
		id, _ := strconv.Atoi(v)
		return id
	}
	return 0
}

// PaidTime parses PaidAt, falling back to fallback.
func (t Transaction) PaidTime(fallback time.Time) time.Time {
	if at, err := time.Parse(time.RFC3339, t.PaidAt); err == nil {
		return at.UTC()
	}
	return fallback
}

type WebhookEvent struct {
	Event string      `json:"event"`
	Data  Transaction `json:"data"`
}

// VerifySignature checks the x-paystack-signature header: the hex HMAC-SHA512
// of the raw body keyed with the secret key.
func (p *Paystack) VerifySignature(body []byte, signature string) error {
	if p.SecretKey == "" {
		return ErrNotConfigured
	}
	mac := hmac.New(sha512.New, []byte(p.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

func (p *Paystack) ParseWebhook(body []byte, signature string) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := p.VerifySignature(body, signature); err != nil {
		return ev, err
	}
	err := json.Unmarshal(body, &ev)
	return ev, errors.Wrap(err, "paystack: decode webhook")
}

type verifyResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// Verify asks Paystack for the outcome of the transaction with reference.
func (p *Paystack) Verify(ctx context.Context, reference string) (Transaction, error) {
	if p.SecretKey == "" {
		return Transaction{}, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.BaseURL+"/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "paystack: new request")
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "paystack: verify")
	}
	defer resp.Body.Close()

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Transaction{}, errors.Wrapf(err, "paystack: decode verify response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !body.Status {
		return Transaction{}, fmt.Errorf("paystack: verify %q: %s", reference, body.Message)
	}
	return body.Data, nil
}
