package main

import (
	"context"
	"time"

	"github.com/nimdanitro/dht-poller/pkg/poller"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"go.opentelemetry.io/otel/metric"
)

// newReadingRecorder returns a poller observer feeding the sensor gauges.
func newReadingRecorder(meter metric.Meter) (poller.Observer, error) {
	temperature, err := meter.Float64Gauge("sensor.temperature",
		metric.WithUnit("Cel"),
		metric.WithDescription("Temperature in degrees Celsius"),
	)
	if err != nil {
		return nil, err
	}

	humidity, err := meter.Float64Gauge("sensor.humidity",
		metric.WithUnit("%"),
		metric.WithDescription("Relative humidity as a percentage"),
	)
	if err != nil {
		return nil, err
	}

	lastReading, err := meter.Float64Histogram(
		"sensor.lastReading.duration",
		metric.WithDescription("The duration since the last sensor reading."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, r sensor.Reading) {
		if v, ok := r.TemperatureC.Float(); ok {
			temperature.Record(ctx, v)
		}
		if v, ok := r.Humidity.Float(); ok {
			humidity.Record(ctx, v)
		}
		if !r.FetchedAt.IsZero() {
			lastReading.Record(ctx, time.Since(r.FetchedAt).Seconds())
		}
	}, nil
}
