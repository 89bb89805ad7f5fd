package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"LedgerApi/internal/model"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxParallel = 4

	maxRecordedBody = 64 << 10
)

// EventStore is the part of the ledger store the notifier reads endpoints
// from and writes delivery records to.
type EventStore interface {
	ListActiveWebhookEndpoints(ctx context.Context, ownerID string) ([]model.WebhookEndpoint, error)
	InsertWebhookEvent(ctx context.Context, ev *model.WebhookEvent) error
}

// EventSink receives each completed transaction once, next to webhook fan-out.
type EventSink interface {
	Publish(ctx context.Context, t model.Transaction) error
}

// Notifier delivers transaction.completed events to the active endpoints of
// the transaction's owner. Delivery is a single attempt per endpoint: failures
// are logged and recorded, never retried and never returned.
type Notifier struct {
	store       EventStore
	client      *http.Client
	timeout     time.Duration
	maxParallel int
	sink        EventSink
	logger      zerolog.Logger
	now         func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTimeout bounds each POST. The default is DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// WithMaxParallel limits concurrent deliveries for one transaction.
func WithMaxParallel(limit int) Option {
	return func(n *Notifier) {
		n.maxParallel = limit
	}
}

// WithEventSink publishes every transaction to sink before webhook fan-out.
func WithEventSink(sink EventSink) Option {
	return func(n *Notifier) {
		n.sink = sink
	}
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.client = c
	}
}

// New creates a Notifier that reads endpoints from and records attempts in store.
func New(store EventStore, logger zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		store:       store,
		timeout:     DefaultTimeout,
		maxParallel: DefaultMaxParallel,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.client = &http.Client{
			Timeout:   n.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if n.maxParallel < 1 {
		n.maxParallel = 1
	}
	return n
}

// Deliver fans the event out to every active endpoint and blocks until each
// attempt has been recorded.
func (n *Notifier) Deliver(ctx context.Context, t model.Transaction) {
	if n.sink != nil {
		if err := n.sink.Publish(ctx, t); err != nil {
			n.logger.Warn().Err(err).Str("transaction_id", t.ID).Msg("event publish failed")
		}
	}

	endpoints, err := n.store.ListActiveWebhookEndpoints(ctx, t.OwnerID)
	if err != nil {
		n.logger.Error().Err(err).Str("transaction_id", t.ID).Msg("failed to load webhook endpoints")
		return
	}
	if len(endpoints) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(n.maxParallel)
	for _, e := range endpoints {
		e := e
		g.Go(func() error {
			n.deliverOne(ctx, e, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) deliverOne(ctx context.Context, e model.WebhookEndpoint, t model.Transaction) {
	eventID := uuid.NewString()
	sentAt := n.now().UTC()
	log := n.logger.With().
		Str("event_id", eventID).
		Str("endpoint_id", e.ID).
		Str("transaction_id", t.ID).
		Logger()

	body, err := json.Marshal(model.NewWebhookPayload(eventID, sentAt, t))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode webhook payload")
		return
	}

	ev := &model.WebhookEvent{
		ID:            eventID,
		EndpointID:    e.ID,
		TransactionID: t.ID,
		Payload:       body,
		SentAt:        sentAt,
	}

	status, respBody, err := n.post(ctx, e, eventID, body)
	switch {
	case err != nil:
		msg := err.Error()
		ev.ResponseBody = &msg
		log.Warn().Err(err).Msg("webhook delivery failed")
	default:
		ev.ResponseStatus = &status
		ev.ResponseBody = &respBody
		if status < 200 || status >= 300 {
			log.Warn().Int("status", status).Msg("webhook endpoint rejected delivery")
		} else {
			log.Debug().Int("status", status).Msg("webhook delivered")
		}
	}

	if err := n.store.InsertWebhookEvent(ctx, ev); err != nil {
		log.Error().Err(err).Msg("failed to record webhook event")
	}
}

func (n *Notifier) post(ctx context.Context, e model.WebhookEndpoint, eventID string, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(e.Secret, body))
	req.Header.Set(EventIDHeader, eventID)

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordedBody))
	if err != nil {
		n.logger.Debug().Err(err).Str("event_id", eventID).Msg("failed to read webhook response body")
	}
	// TEXT columns reject NUL bytes and invalid UTF-8.
	text := strings.ReplaceAll(strings.ToValidUTF8(string(raw), "�"), "\x00", "")
	return resp.StatusCode, text, nil
}
