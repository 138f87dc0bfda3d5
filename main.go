package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimdanitro/dht-poller/pkg/config"
	"github.com/nimdanitro/dht-poller/pkg/dashboard"
	"github.com/nimdanitro/dht-poller/pkg/poller"
	"github.com/nimdanitro/dht-poller/pkg/publish"
	"github.com/nimdanitro/dht-poller/pkg/relay"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"github.com/nimdanitro/dht-poller/pkg/settings"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const scope = "github.com/nimdanitro/dht-poller"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	// Setup Otel
	shutdown, err := setupOTelSDK(ctx)
	defer shutdown(context.Background())
	if err != nil {
		panic(err)
	}

	// Initialize logger
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(os.Stdout), cfg.LogLevel),
		otelzap.NewCore(scope, otelzap.WithLoggerProvider(global.GetLoggerProvider())),
	)
	logger := zap.New(core)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("starting up", zap.String("version", version), zap.String("commit", commit), zap.String("buildDate", date))

	trigger := relay.New(cfg.DeviceURL,
		relay.WithPath(cfg.RelayPath),
		relay.WithTimeout(cfg.RequestTimeout),
		relay.WithLogger(logger.Named("relay")),
	)

	if len(cfg.Args) > 0 {
		switch cfg.Args[0] {
		case "fan":
			if _, err := trigger.Trigger(ctx); err != nil {
				logger.Error("cannot trigger the fan", zap.Error(err))
			}
		default:
			logger.Error("unknown command", zap.String("command", cfg.Args[0]))
		}
		return
	}

	if err := run(ctx, cfg, logger, trigger); err != nil {
		logger.Error("poller exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, trigger *relay.Trigger) error {
	// Initialize metrics
	meter := otel.Meter(
		scope,
		metric.WithInstrumentationAttributes(semconv.OTelScopeName(scope)),
	)
	recordReading, err := newReadingRecorder(meter)
	if err != nil {
		return err
	}

	// create the fetcher
	client, err := sensor.NewFetcher(
		sensor.WithLogger(logger.Named("sensor")),
		sensor.WithBaseURL(cfg.DeviceURL, cfg.ReadingsPath),
		sensor.WithTimeout(cfg.RequestTimeout),
		sensor.WithLimiter(sensor.IntervalLimiter(cfg.Interval)),
	)
	if err != nil {
		return err
	}

	opts := []poller.Option{
		poller.WithLogger(logger.Named("poller")),
		poller.WithInterval(cfg.Interval),
		poller.WithObserver(recordReading),
	}

	if cfg.MQTTBroker != "" {
		pub := publish.NewPublisher(publish.Config{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger.Named("mqtt"))

		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := pub.Connect(connectCtx); err != nil {
			logger.Warn("mqtt connection failed, continuing without it", zap.Error(err))
		}
		connectCancel()
		defer pub.Disconnect()
		opts = append(opts, poller.WithObserver(pub.Observe))
	}

	p, err := poller.New(client, opts...)
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Wait()
	defer p.Stop()

	form := &settings.Form{}
	srv := dashboard.NewServer(cfg.Listen, dashboard.NewHandler(p, trigger, form, dashboard.Options{
		Refresh:     cfg.Interval,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("dashboard"),
	}))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Listen), zap.String("device", client.URL()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
