package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrigger_OneRequestPerCall(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"fan": "on"}`},
		{name: "error body", status: http.StatusOK, body: `{"error": "relay busy"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": "gpio"}`},
		{name: "not json", status: http.StatusBadGateway, body: `bad gateway`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				assert.Equal(t, "/fanon", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			trig := New(srv.URL, WithLogger(zap.NewNop()))
			_, err := trig.Trigger(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestTrigger_LogsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fan": "on"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	trig := New(srv.URL, WithLogger(zap.New(core)))

	body, err := trig.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"fan": "on"}, body)
	assert.Equal(t, 1, logs.FilterMessage("relay response").Len())
}

func TestTrigger_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	trig := New(srv.URL, WithLogger(zap.New(core)), WithTimeout(time.Second))

	_, err := trig.Trigger(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("relay request failed").Len())
}

func TestFire(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	trig := New(srv.URL, WithLogger(zap.NewNop()), WithPath("/relay"))
	trig.Fire(context.Background())

	assert.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}
