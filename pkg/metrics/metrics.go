package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK          = "ok"
	OutcomeRemoteError = "remote_error"
	OutcomeFailed      = "failed"
	OutcomeDropped     = "dropped"
)

// Fetches of GET /readings, labeled by outcome.
var Fetches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dht_poller_fetches_total",
		Help: "The total number of reading fetches by outcome",
	},
	[]string{"outcome"},
)

var FetchDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "dht_poller_fetch_duration_seconds",
		Help:    "Latency of reading fetches",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

// Inflight fetches. Grows past one when the device is slower than the interval.
var Inflight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "dht_poller_fetches_inflight",
		Help: "Number of reading fetches currently outstanding",
	},
)

var RelayTriggers = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dht_poller_relay_triggers_total",
		Help: "The total number of relay requests by outcome",
	},
	[]string{"outcome"},
)
