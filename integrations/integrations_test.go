package integrations

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/backoff/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/mbolis/leadform/model"
)

func fastBackoff() Option {
	return WithBackoff(backoff.Exponential(
		backoff.WithMinInterval(time.Millisecond),
		backoff.WithMaxInterval(5*time.Millisecond),
		backoff.WithMaxRetries(4),
	))
}

var (
	testForm = model.Form{
		ID:        7,
		PublicID:  "f-7",
		Title:     "Leads",
		Questions: []model.Question{{ID: "email", Type: model.TypeEmail, Label: "Email"}},
	}
	testSubmission = model.Submission{
		PublicID:    "s-1",
		FormID:      7,
		Data:        map[string]any{"email": "ada@example.com"},
		SubmittedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
)

func closeDispatcher(t *testing.T, d *Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcherRetriesAndSigns(t *testing.T) {
	calls := atomic.NewInt32(0)
	var (
		mu        sync.Mutex
		body      []byte
		signature string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Inc() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		mu.Unlock()
		assert.Equal(t, EventSubmissionCreated, r.Header.Get(EventHeader))
		assert.NotEmpty(t, r.Header.Get(DeliveryHeader))
	}))
	defer srv.Close()

	d := NewDispatcher(2, fastBackoff())
	target := model.Integration{ID: 1, Kind: model.KindWebhook, TargetURL: srv.URL, Secret: "s3cret"}
	require.NoError(t, d.Enqueue([]model.Integration{target}, SubmissionPayload(testForm, testSubmission)))
	closeDispatcher(t, d)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, Stats{Delivered: 1}, d.Stats())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, Sign("s3cret", body), signature)

	var p Payload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, EventSubmissionCreated, p.Event)
	assert.Equal(t, "f-7", p.Form.PublicID)
	assert.Equal(t, "s-1", p.Submission.PublicID)
	assert.Equal(t, "ada@example.com", p.Submission.Data["email"])
}

func TestDispatcherGivesUp(t *testing.T) {
	calls := atomic.NewInt32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(1, fastBackoff())
	target := model.Integration{ID: 1, TargetURL: srv.URL}
	require.NoError(t, d.Enqueue([]model.Integration{target}, SubmissionPayload(testForm, testSubmission)))
	closeDispatcher(t, d)

	assert.Greater(t, calls.Load(), int32(1))
	assert.Equal(t, Stats{Failed: 1}, d.Stats())
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	d := NewDispatcher(1, fastBackoff())
	closeDispatcher(t, d)

	target := model.Integration{ID: 1, TargetURL: "http://127.0.0.1:1"}
	require.NoError(t, d.Enqueue([]model.Integration{target}, SubmissionPayload(testForm, testSubmission)))
	assert.Equal(t, int64(1), d.Stats().Dropped)

	require.NoError(t, d.Close(context.Background()), "closing twice is harmless")
}

func TestDispatcherQueueSize(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
	}))
	defer srv.Close()

	d := NewDispatcher(1, fastBackoff(), WithQueueSize(1), WithClient(srv.Client()))
	target := model.Integration{ID: 1, TargetURL: srv.URL}
	payload := SubmissionPayload(testForm, testSubmission)

	// the only worker is busy with the first delivery
	require.NoError(t, d.Enqueue([]model.Integration{target}, payload))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never started")
	}

	require.NoError(t, d.Enqueue([]model.Integration{target, target}, payload))
	assert.Equal(t, int64(1), d.Stats().Dropped, "one delivery fits the queue")

	close(release)
	closeDispatcher(t, d)
	assert.Equal(t, Stats{Delivered: 2, Dropped: 1}, d.Stats())
}

func TestDispatcherNoTargets(t *testing.T) {
	d := NewDispatcher(1)
	require.NoError(t, d.Enqueue(nil, SubmissionPayload(testForm, testSubmission)))
	closeDispatcher(t, d)
	assert.Equal(t, Stats{}, d.Stats())
}

func TestSign(t *testing.T) {
	assert.Equal(t,
		"sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}

func TestRenderSubmission(t *testing.T) {
	s := testSubmission
	s.Data = map[string]any{"email": "<b>ada</b>@example.com"}

	html, err := RenderSubmission(testForm, s, "https://leadform.example")
	require.NoError(t, err)
	assert.Contains(t, html, "Leads")
	assert.Contains(t, html, "&lt;b&gt;ada&lt;/b&gt;@example.com")
	assert.Contains(t, html, "https://leadform.example/forms/7/submissions")
}

func TestNewMailerWithoutKey(t *testing.T) {
	m := NewMailer("", "noreply@example.com", "")
	assert.IsType(t, NopMailer{}, m)
	assert.NoError(t, m.SendSubmission(context.Background(), "owner@example.com", testForm, testSubmission))
}
