package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/mattjoyce/postserve/internal/config"
	"github.com/mattjoyce/postserve/internal/events"
	"github.com/mattjoyce/postserve/internal/journal"
	"github.com/mattjoyce/postserve/internal/log"
	"github.com/mattjoyce/postserve/internal/webhook"
)

// maxResponseBytes caps how much of a target's response body is kept.
const maxResponseBytes = 1 << 20

//go:generate mockgen -destination=mocks/mock_dispatch.go -package=mocks github.com/mattjoyce/postserve/internal/dispatch Recorder,Publisher

// Recorder persists delivery outcomes.
type Recorder interface {
	Record(ctx context.Context, d journal.Delivery) (string, error)
}

// Publisher announces delivery outcomes to live subscribers.
type Publisher interface {
	Publish(eventType string, data any)
}

// Dispatcher sends transformed webhooks.
type Dispatcher struct {
	chain    *webhook.Chain
	client   *http.Client
	limiter  *rate.Limiter
	recorder Recorder
	events   Publisher
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New creates a Dispatcher. recorder and events may be nil.
func New(chain *webhook.Chain, recorder Recorder, pub Publisher, cfg config.DispatchConfig) *Dispatcher {
	if chain == nil {
		chain = webhook.NewChain()
	}
	d := &Dispatcher{
		chain: chain,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		recorder: recorder,
		events:   pub,
		logger:   log.WithComponent("dispatch"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return d
}

// BuildRequest turns a webhook declaration into the initial, untransformed request.
func BuildRequest(wh config.WebhookConfig) (webhook.Request, error) {
	method, err := webhook.ParseMethod(wh.Method)
	if err != nil {
		return webhook.Request{}, err
	}
	if wh.URL == "" {
		return webhook.Request{}, fmt.Errorf("webhook url is empty")
	}

	req := webhook.NewRequest(method, wh.URL)
	for _, h := range wh.Headers {
		req = req.WithHeaderValues(h.Name, h.Values...)
	}
	if wh.Body != nil {
		req = req.WithBody(*wh.Body)
	}
	return req.WithParameters(wh.Extra), nil
}

// Dispatch starts one goroutine per webhook and returns immediately. The
// deliveries outlive ctx's cancellation but keep its values (trace context).
func (d *Dispatcher) Dispatch(ctx context.Context, event webhook.ServeEvent, hooks []config.WebhookConfig) {
	ctx = context.WithoutCancel(ctx)
	for i, wh := range hooks {
		req, err := BuildRequest(wh)
		if err != nil {
			d.logger.Error("invalid webhook definition", "serve_event_id", event.ID, "index", i, "error", err)
			continue
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_, _ = d.Deliver(ctx, event, req)
		}()
	}
}

// Wait blocks until every delivery started by Dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver runs the chain over req and sends the result. The returned delivery
// is what was recorded; err is non-nil for aborted and failed deliveries.
func (d *Dispatcher) Deliver(ctx context.Context, event webhook.ServeEvent, req webhook.Request) (*journal.Delivery, error) {
	started := time.Now().UTC()
	logger := log.WithEvent(event.ID).With("component", "dispatch", "url", req.URL())

	delivery := journal.Delivery{
		ServeEventID: event.ID,
		Stub:         event.Stub,
		Request:      req,
		CreatedAt:    started,
	}

	out, err := d.chain.Apply(ctx, event, req)
	if err != nil {
		logger.Error("webhook transform failed", "error", err)
		delivery.Status = journal.StatusAborted
		delivery.Error = err.Error()
		return d.finish(ctx, logger, delivery), fmt.Errorf("transform webhook: %w", err)
	}
	delivery.Request = out

	resp, err := d.send(ctx, out)
	if err != nil {
		logger.Warn("webhook delivery failed", "error", err)
		delivery.Status = journal.StatusFailed
		delivery.Error = err.Error()
		return d.finish(ctx, logger, delivery), err
	}

	delivery.Status = journal.StatusDelivered
	delivery.Response = resp
	logger.Info("webhook delivered",
		"method", out.Method(),
		"status", resp.Status,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return d.finish(ctx, logger, delivery), nil
}

func (d *Dispatcher) send(ctx context.Context, req webhook.Request) (*webhook.LoggedResponse, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body io.Reader
	if b, ok := req.Body(); ok {
		body = strings.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method()), req.URL(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = req.Header().HTTP()

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &webhook.LoggedResponse{
		Status: resp.StatusCode,
		Header: webhook.HeaderFromHTTP(resp.Header),
		Body:   respBody,
	}, nil
}

type deliveryEvent struct {
	DeliveryID   string `json:"delivery_id"`
	ServeEventID string `json:"serve_event_id"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, delivery journal.Delivery) *journal.Delivery {
	delivery.CompletedAt = time.Now().UTC()

	if d.recorder != nil {
		id, err := d.recorder.Record(ctx, delivery)
		if err != nil {
			logger.Error("failed to record delivery", "error", err)
		} else {
			delivery.ID = id
			log.WithDelivery(id).Debug("delivery recorded",
				"serve_event_id", delivery.ServeEventID,
				"status", string(delivery.Status),
			)
		}
	}

	if d.events != nil {
		ev := deliveryEvent{
			DeliveryID:   delivery.ID,
			ServeEventID: delivery.ServeEventID,
			URL:          delivery.Request.URL(),
			Status:       string(delivery.Status),
			Error:        delivery.Error,
		}
		eventType := events.TypeWebhookFailed
		if delivery.Response != nil {
			ev.HTTPStatus = delivery.Response.Status
			eventType = events.TypeWebhookDispatched
		}
		d.events.Publish(eventType, ev)
	}
	return &delivery
}
