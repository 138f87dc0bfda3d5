// Package poller keeps the latest sensor reading fresh by fetching it on a
// fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimdanitro/dht-poller/pkg/metrics"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

var ErrAlreadyRunning = errors.New("poller already running")

// Observer is called with every accepted reading.
type Observer func(ctx context.Context, r sensor.Reading)

type Poller struct {
	fetcher   sensor.Fetcher
	interval  time.Duration
	log       *zap.Logger
	observers []Observer

	current atomic.Pointer[sensor.Reading]

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	active  atomic.Bool
	flights sync.WaitGroup
}

type Option func(p *Poller) error

func New(f sensor.Fetcher, opts ...Option) (*Poller, error) {
	if f == nil {
		return nil, errors.New("nil fetcher")
	}
	p := &Poller{
		fetcher:  f,
		interval: DefaultInterval,
		log:      zap.L(),
	}
	initial := sensor.PlaceholderReading()
	p.current.Store(&initial)

	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func WithInterval(d time.Duration) Option {
	return func(p *Poller) error {
		if d <= 0 {
			return fmt.Errorf("interval must be positive, got %v", d)
		}
		p.interval = d
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) error {
		p.log = l
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(p *Poller) error {
		p.observers = append(p.observers, o)
		return nil
	}
}

// Snapshot returns the latest accepted reading, or placeholders.
func (p *Poller) Snapshot() sensor.Reading {
	return *p.current.Load()
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Start fetches once right away and then once per interval until Stop is
// called or ctx is done. Fetches run on ctx, so Stop leaves requests that
// are already outstanding alone.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return ErrAlreadyRunning
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.active.Store(true)

	p.log.Info("starting poller", zap.Duration("interval", p.interval))
	p.refresh(ctx)
	go p.loop(ctx, p.stop, p.done)
	return nil
}

// Stop cancels the refresh timer and waits for the loop to exit. Readings
// that arrive afterwards are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	p.active.Store(false)
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
	p.log.Info("poller stopped")
}

// Wait blocks until every outstanding fetch has returned.
func (p *Poller) Wait() {
	p.flights.Wait()
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refresh(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			p.active.Store(false)
			return
		}
	}
}

// refresh does not wait for the previous fetch; a slow device leads to
// several requests in flight at once.
func (p *Poller) refresh(ctx context.Context) {
	p.flights.Add(1)
	metrics.Inflight.Inc()
	go func() {
		defer p.flights.Done()
		defer metrics.Inflight.Dec()
		p.fetch(ctx)
	}()
}

func (p *Poller) fetch(ctx context.Context) {
	start := time.Now()
	reading, err := p.fetcher.Fetch(ctx)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, sensor.ErrRemote):
		metrics.Fetches.WithLabelValues(metrics.OutcomeRemoteError).Inc()
		p.log.Warn("sensor reported an error, keeping previous reading", zap.Error(err))
		return
	case err != nil:
		metrics.Fetches.WithLabelValues(metrics.OutcomeFailed).Inc()
		p.log.Error("failed to fetch readings, keeping previous reading", zap.Error(err))
		return
	}

	if !p.active.Load() {
		metrics.Fetches.WithLabelValues(metrics.OutcomeDropped).Inc()
		p.log.Debug("dropping reading that arrived after stop")
		return
	}

	r := *reading
	p.current.Store(&r)
	metrics.Fetches.WithLabelValues(metrics.OutcomeOK).Inc()
	p.log.Info("fetched readings",
		zap.Stringer("temperatureC", r.TemperatureC),
		zap.Stringer("temperatureF", r.TemperatureF),
		zap.Stringer("humidity", r.Humidity),
	)

	for _, o := range p.observers {
		o(ctx, r)
	}
}
