package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.50:5000", cfg.DeviceURL)
	assert.Equal(t, "/readings", cfg.ReadingsPath)
	assert.Equal(t, "/fanon", cfg.RelayPath)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, 1883, cfg.MQTTPort)
	assert.Empty(t, cfg.Args)
}

func TestLoad_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load([]string{
		"--device-url", "http://10.0.0.7:5000",
		"--interval", "2s",
		"--log-level", "debug",
		"--cors-origins", "http://localhost:5173,http://phone.lan",
		"fan",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.7:5000", cfg.DeviceURL)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:5173", "http://phone.lan"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"fan"}, cfg.Args)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POLLER_DEVICE_URL", "http://10.0.0.8:5000")
	t.Setenv("POLLER_INTERVAL", "10s")
	t.Setenv("POLLER_MQTT_BROKER", "broker.lan")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.8:5000", cfg.DeviceURL)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, "broker.lan", cfg.MQTTBroker)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POLLER_INTERVAL", "10s")

	cfg, err := Load([]string{"--interval", "3s"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Interval)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poller.yaml"), []byte(
		"device-url: http://10.0.0.9:5000\nrelay-path: /relay\n",
	), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:5000", cfg.DeviceURL)
	assert.Equal(t, "/relay", cfg.RelayPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "relative device url", args: []string{"--device-url", "10.0.0.7:5000"}},
		{name: "zero interval", args: []string{"--interval", "0s"}},
		{name: "negative timeout", args: []string{"--request-timeout", "-1s"}},
		{name: "log level", args: []string{"--log-level", "loud"}},
		{name: "mqtt port", args: []string{"--mqtt-broker", "b", "--mqtt-port", "70000"}},
		{name: "unknown flag", args: []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}
