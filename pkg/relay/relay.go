// Package relay toggles the fan relay on the sensor device.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nimdanitro/dht-poller/pkg/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const DefaultPath = "/fanon"

type Trigger struct {
	client *resty.Client
	log    *zap.Logger
	path   string
}

type Option func(t *Trigger)

func WithLogger(l *zap.Logger) Option {
	return func(t *Trigger) { t.log = l }
}

func WithPath(p string) Option {
	return func(t *Trigger) { t.path = p }
}

func WithTimeout(d time.Duration) Option {
	return func(t *Trigger) { t.client.SetTimeout(d) }
}

// WithTransport replaces the round tripper, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(t *Trigger) { t.client.SetTransport(rt) }
}

// New returns a trigger for the device at baseURL. Requests are never retried.
func New(baseURL string, opts ...Option) *Trigger {
	t := &Trigger{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(0).
			SetTimeout(10 * time.Second).
			SetTransport(otelhttp.NewTransport(http.DefaultTransport)),
		log:  zap.L(),
		path: DefaultPath,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Trigger sends one request to the relay endpoint and returns whatever JSON
// the device answered with. The response is only logged; its content does
// not change what happens next.
func (t *Trigger) Trigger(ctx context.Context) (any, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(t.path)
	if err != nil {
		metrics.RelayTriggers.WithLabelValues(metrics.OutcomeFailed).Inc()
		t.log.Error("relay request failed", zap.Error(err))
		return nil, fmt.Errorf("relay request: %w", err)
	}

	var body any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.RelayTriggers.WithLabelValues(metrics.OutcomeFailed).Inc()
		t.log.Error("cannot decode relay response",
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", resp.Body()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decode relay response: %w", err)
	}

	metrics.RelayTriggers.WithLabelValues(metrics.OutcomeOK).Inc()
	t.log.Info("relay response", zap.Int("status", resp.StatusCode()), zap.Any("body", body))
	return body, nil
}

// Fire triggers the relay in the background and returns at once.
func (t *Trigger) Fire(ctx context.Context) {
	go func() {
		_, _ = t.Trigger(ctx)
	}()
}
