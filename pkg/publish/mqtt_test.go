package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := encode(sensor.Reading{
		TemperatureC: sensor.NumberValue(22),
		TemperatureF: sensor.NumberValue(71),
		Humidity:     sensor.StringValue("48"),
		FetchedAt:    at,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"temperature_c": 22,
		"temperature_f": 71,
		"humidity": "48",
		"timestamp": "2024-06-01T12:00:00Z"
	}`, string(data))
}

func TestEncode_StampsMissingTime(t *testing.T) {
	data, err := encode(sensor.Reading{TemperatureC: sensor.NumberValue(1)})
	require.NoError(t, err)

	var msg struct {
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)
}

func TestObserve_NotConnected(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPublisher(Config{Broker: "127.0.0.1", Port: 1, ClientID: "test", Topic: "sensors/readings"}, zap.New(core))

	assert.False(t, p.IsConnected())
	assert.Error(t, p.Publish(sensor.PlaceholderReading()))

	p.Observe(context.Background(), sensor.PlaceholderReading())
	assert.Equal(t, 1, logs.FilterMessage("cannot publish reading").Len())
}
