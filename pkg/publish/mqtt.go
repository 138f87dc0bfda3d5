// Package publish forwards accepted readings to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"go.uber.org/zap"
)

type Config struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

type Publisher struct {
	client mqtt.Client
	cfg    Config
	log    *zap.Logger

	mu        sync.RWMutex
	connected bool
}

// message is the payload sent for each reading.
type message struct {
	TemperatureC sensor.Value `json:"temperature_c"`
	TemperatureF sensor.Value `json:"temperature_f"`
	Humidity     sensor.Value `json:"humidity"`
	Timestamp    time.Time    `json:"timestamp"`
}

func NewPublisher(cfg Config, log *zap.Logger) *Publisher {
	p := &Publisher{cfg: cfg, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		log.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.Int("port", cfg.Port))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the first connection to the broker, honoring ctx.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Observe publishes r. It has the shape of a poller observer, so failures
// are logged and not returned.
func (p *Publisher) Observe(_ context.Context, r sensor.Reading) {
	if err := p.Publish(r); err != nil {
		p.log.Warn("cannot publish reading", zap.String("topic", p.cfg.Topic), zap.Error(err))
	}
}

func (p *Publisher) Publish(r sensor.Reading) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := encode(r)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.cfg.Topic, 1, true, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", p.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	p.log.Debug("published reading", zap.String("topic", p.cfg.Topic))
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	p.setConnected(false)
	p.log.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func encode(r sensor.Reading) ([]byte, error) {
	ts := r.FetchedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	data, err := json.Marshal(message{
		TemperatureC: r.TemperatureC,
		TemperatureF: r.TemperatureF,
		Humidity:     r.Humidity,
		Timestamp:    ts.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal reading: %w", err)
	}
	return data, nil
}
