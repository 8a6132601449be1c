// Package webhooks forwards ledger events to an HTTP endpoint with HMAC
// signatures and retrying delivery.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptoavisos/core/events"
)

const (
	HeaderEvent     = "X-Avisos-Event"
	HeaderSignature = "X-Avisos-Signature"
	HeaderDelivery  = "X-Avisos-Delivery"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

var (
	ErrClosed    = errors.New("webhook: dispatcher closed")
	ErrQueueFull = errors.New("webhook: queue full")
)

// permanentError marks a response the endpoint will keep rejecting.
type permanentError struct{ status int }

func (e permanentError) Error() string {
	return fmt.Sprintf("webhook: endpoint rejected delivery with status %d", e.status)
}

// Payload is the JSON body of a delivery.
type Payload struct {
	DeliveryID string            `json:"deliveryId"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	SentAt     time.Time         `json:"sentAt"`
}

// Dispatcher queues events and delivers them from a single worker so that an
// endpoint observes them in emission order.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	types       map[string]struct{}
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	id        string
	eventType string
	body      []byte
}

type Option func(*Dispatcher)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the attempt budget and the backoff bounds.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithEventTypes restricts delivery to the listed event types.
func WithEventTypes(types ...string) Option {
	return func(d *Dispatcher) {
		for _, t := range types {
			if t = strings.TrimSpace(t); t != "" {
				if d.types == nil {
					d.types = make(map[string]struct{})
				}
				d.types[t] = struct{}{}
			}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "webhooks")
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops the worker and waits for the inflight delivery to give up.
// Deliveries still queued are discarded and their count is logged and
// returned.
func (d *Dispatcher) Close() int {
	if d == nil {
		return 0
	}
	d.cancel()
	d.wg.Wait()
	dropped := 0
	for {
		select {
		case job := <-d.queue:
			dropped++
			d.logger.Debug("webhook delivery discarded", "delivery", job.id, "type", job.eventType)
		default:
			if dropped > 0 {
				d.logger.Warn("webhook deliveries dropped on close", "count", dropped)
			}
			return dropped
		}
	}
}

// Emit implements events.Emitter. It never blocks; a full queue drops the
// event.
func (d *Dispatcher) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if err := d.Enqueue(evt); err != nil {
		d.logger.Warn("webhook enqueue failed", "type", evt.EventType(), "error", err)
	}
}

// Enqueue schedules evt for delivery without waiting for queue space. Events
// filtered out by WithEventTypes are dropped silently.
func (d *Dispatcher) Enqueue(evt events.Event) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	rec := events.ToRecord(evt)
	if rec == nil {
		return nil
	}
	if d.types != nil {
		if _, ok := d.types[rec.Type]; !ok {
			return nil
		}
	}
	payload := Payload{
		DeliveryID: uuid.NewString(),
		Type:       rec.Type,
		Attributes: rec.Attributes,
		SentAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if d.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case d.queue <- delivery{id: payload.DeliveryID, eventType: rec.Type, body: body}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		if d.ctx.Err() != nil {
			return
		}
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	backoff := d.minBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		var rejected permanentError
		if errors.As(err, &rejected) || attempt >= d.maxAttempts {
			d.logger.Error("webhook delivery abandoned", "delivery", job.id, "type", job.eventType, "attempts", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, job.eventType)
	req.Header.Set(HeaderDelivery, job.id)
	req.Header.Set(HeaderSignature, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return permanentError{status: resp.StatusCode}
	default:
		return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
	}
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
