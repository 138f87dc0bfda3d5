package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nimdanitro/dht-poller/pkg/poller"
	"github.com/nimdanitro/dht-poller/pkg/relay"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DeviceURL      string        `mapstructure:"device-url"`
	ReadingsPath   string        `mapstructure:"readings-path"`
	RelayPath      string        `mapstructure:"relay-path"`
	Interval       time.Duration `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	Listen      string        `mapstructure:"listen"`
	CORSOrigins []string      `mapstructure:"cors-origins"`
	LogLevel    zapcore.Level `mapstructure:"-"`

	MQTTBroker   string `mapstructure:"mqtt-broker"`
	MQTTPort     int    `mapstructure:"mqtt-port"`
	MQTTClientID string `mapstructure:"mqtt-client-id"`
	MQTTTopic    string `mapstructure:"mqtt-topic"`

	// Args holds the positional arguments left after flag parsing.
	Args []string `mapstructure:"-"`
}

// Load reads the configuration from, in increasing priority: defaults,
// poller.yaml, the environment (POLLER_*, a .env file is loaded first) and
// command line flags.
func Load(args []string) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("dht-poller", pflag.ContinueOnError)
	fs.String("device-url", sensor.DefaultBaseURL, "Base URL of the sensor device")
	fs.String("readings-path", sensor.DefaultReadingsPath, "Path of the readings endpoint on the device")
	fs.String("relay-path", relay.DefaultPath, "Path of the fan relay endpoint on the device")
	fs.Duration("interval", poller.DefaultInterval, "How often the readings are refreshed")
	fs.Duration("request-timeout", sensor.DefaultTimeout, "Timeout of a single request to the device")
	fs.String("listen", ":8080", "Address the dashboard listens on")
	fs.StringSlice("cors-origins", nil, "Origins allowed to call the dashboard API (default any)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("mqtt-broker", "", "MQTT broker host, readings are not published when empty")
	fs.Int("mqtt-port", 1883, "MQTT broker port")
	fs.String("mqtt-client-id", "dht-poller", "MQTT client ID")
	fs.String("mqtt-topic", "sensors/readings", "MQTT topic readings are published to")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("poller")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/poller")
	v.AddConfigPath(".")
	v.SetEnvPrefix("POLLER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Args = fs.Args()

	level, err := zapcore.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log-level %q: %w", v.GetString("log-level"), err)
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := sensor.JoinURL(c.DeviceURL, c.ReadingsPath); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.MQTTBroker != "" && (c.MQTTPort <= 0 || c.MQTTPort > 65535) {
		return fmt.Errorf("invalid mqtt-port %d", c.MQTTPort)
	}
	return nil
}
