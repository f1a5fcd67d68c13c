// Package integrations delivers submissions to the outside world:
// signed webhooks for Zapier/CRM targets and notification emails.
package integrations

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/lestrrat-go/backoff/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/model"
)

const (
	SignatureHeader = "X-Leadform-Signature"
	EventHeader     = "X-Leadform-Event"
	DeliveryHeader  = "X-Leadform-Delivery"

	EventSubmissionCreated = "submission.created"
)

// Payload is the JSON body POSTed to every target.
type Payload struct {
	Event      string           `json:"event"`
	Form       FormRef          `json:"form"`
	Submission model.Submission `json:"submission"`
}

type FormRef struct {
	ID       int    `json:"id"`
	PublicID string `json:"public_id"`
	Title    string `json:"title"`
}

func SubmissionPayload(form model.Form, s model.Submission) Payload {
	return Payload{
		Event:      EventSubmissionCreated,
		Form:       FormRef{form.ID, form.PublicID, form.Title},
		Submission: s,
	}
}

// Sign returns the value of the signature header for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type delivery struct {
	id     string
	event  string
	target model.Integration
	body   []byte
}

type Option func(*Dispatcher)

func WithClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func WithBackoff(p backoff.Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queueSize = n }
}

// Dispatcher posts payloads from a buffered queue with a fixed pool of workers.
// Enqueue never blocks: deliveries that do not fit in the queue are dropped.
type Dispatcher struct {
	client    *http.Client
	policy    backoff.Policy
	queueSize int

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	delivered *atomic.Int64
	failed    *atomic.Int64
	dropped   *atomic.Int64
}

func NewDispatcher(workers int, opts ...Option) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		client:    &http.Client{Timeout: 10 * time.Second},
		queueSize: 256,
		policy: backoff.Exponential(
			backoff.WithMinInterval(time.Second),
			backoff.WithMaxInterval(time.Minute),
			backoff.WithJitterFactor(0.1),
			backoff.WithMaxRetries(4),
		),
		delivered: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan delivery, d.queueSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules p for every target.
func (d *Dispatcher) Enqueue(targets []model.Integration, p Payload) error {
	if len(targets) == 0 {
		return nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "integrations: encode payload")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, t := range targets {
		if d.closed {
			d.dropped.Inc()
			continue
		}
		id, _ := uuid.NewV4()
		select {
		case d.queue <- delivery{id: id.String(), event: p.Event, target: t, body: body}:
		default:
			d.dropped.Inc()
			log.WithFields(log.Fields{"integration": t.ID, "target": t.TargetURL}).
				Warn("delivery queue full, dropping")
		}
	}
	return nil
}

// Close stops accepting deliveries and waits for queued ones. Deliveries
// still retrying when ctx ends are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{d.delivered.Load(), d.failed.Load(), d.dropped.Load()}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for del := range d.queue {
		d.deliver(del)
	}
}

func (d *Dispatcher) deliver(del delivery) {
	logger := log.WithFields(log.Fields{
		"delivery":    del.id,
		"integration": del.target.ID,
		"target":      del.target.TargetURL,
	})

	b := d.policy.Start(d.ctx)
	attempt := 0
	for backoff.Continue(b) {
		attempt++
		err := d.post(del)
		if err == nil {
			d.delivered.Inc()
			logger.Debugf("delivered after %d attempt(s)", attempt)
			return
		}
		logger.WithError(err).Warnf("delivery attempt %d failed", attempt)
	}
	d.failed.Inc()
	logger.Errorf("giving up after %d attempt(s)", attempt)
}

func (d *Dispatcher) post(del delivery) error {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, del.target.TargetURL, bytes.NewReader(del.body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, del.event)
	req.Header.Set(DeliveryHeader, del.id)
	if del.target.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(del.target.Secret, del.body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
