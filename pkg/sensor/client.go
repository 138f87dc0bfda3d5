package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "http://192.168.1.50:5000"
	DefaultReadingsPath = "/readings"
	DefaultTimeout      = 30 * time.Second
)

var (
	// ErrRemote is returned when the device answers with an error field.
	ErrRemote = errors.New("sensor reported an error")
	// ErrStatus is returned for non-2xx answers whose body cannot be decoded.
	ErrStatus = errors.New("unexpected status")
)

type Fetcher interface {
	Fetch(ctx context.Context) (*Reading, error)
}

type Client struct {
	client  *http.Client
	limit   *rate.Limiter
	log     *zap.Logger
	url     string
	timeout time.Duration
}

type Option func(c *Client) error

func NewFetcher(opts ...Option) (*Client, error) {
	c := &Client{
		log:     zap.L(),
		limit:   rate.NewLimiter(rate.Every(time.Second), 4),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		url:     DefaultBaseURL + DefaultReadingsPath,
		timeout: DefaultTimeout,
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// WithBaseURL points the client at a device, e.g. http://10.0.0.7:5000.
// The readings path is appended to it.
func WithBaseURL(base, path string) Option {
	return func(c *Client) error {
		u, err := JoinURL(base, path)
		if err != nil {
			return err
		}
		c.url = u
		return nil
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		if h == nil {
			return errors.New("nil http client")
		}
		c.client = h
		return nil
	}
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) error {
		c.limit = l
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// URL returns the endpoint the client fetches from.
func (c *Client) URL() string { return c.url }

// Fetch issues a single GET for the current reading.
func (c *Client) Fetch(ctx context.Context) (*Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("fetching readings", zap.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// apply the ratelimit
	if c.limit != nil {
		if err := c.limit.Wait(ctx); err != nil {
			return nil, fmt.Errorf("await rate limit: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	data, decodeErr := decodeReadings(resp.Body)
	if decodeErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %s: %v", ErrStatus, resp.Status, decodeErr)
		}
		return nil, fmt.Errorf("decode readings: %w", decodeErr)
	}
	// the body decides, not the status
	if msg, ok := data.remoteError(); ok {
		return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
	}

	return &Reading{
		TemperatureC: data.TemperatureC,
		TemperatureF: data.TemperatureF,
		Humidity:     data.Humidity,
		FetchedAt:    time.Now(),
	}, nil
}

// decodeReadings reads exactly one JSON object from r.
func decodeReadings(r io.Reader) (*readingsResponse, error) {
	dec := json.NewDecoder(r)
	var data *readingsResponse
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("body is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after the JSON body")
	}
	return data, nil
}

// IntervalLimiter lets one request through per poll interval, with room for
// a few overlapping ones.
func IntervalLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 4)
}

// JoinURL appends path to the device base URL.
func JoinURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse device url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("device url %q must be absolute", base)
	}
	return u.JoinPath(path).String(), nil
}
