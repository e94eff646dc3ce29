package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hab-status-etl/internal/adapter/fwc"
	httpadapter "github.com/couchcryptid/hab-status-etl/internal/adapter/http"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/hab-status-etl/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/hab-status-etl/internal/adapter/mqtt"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/registryfile"
	"github.com/couchcryptid/hab-status-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/hab-status-etl/internal/config"
	"github.com/couchcryptid/hab-status-etl/internal/observability"
	"github.com/couchcryptid/hab-status-etl/internal/pipeline"
)

const connectTimeout = 30 * time.Second

// closer pairs a resource with the name used when logging close errors.
type closer struct {
	name string
	c    io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		publishers []pipeline.Publisher
		closers    []closer
		registry   pipeline.RegistryLoader
		history    httpadapter.HistoryReader
	)
	fail := func(msg string, err error) {
		logger.Error(msg, "error", err)
		closeAll(logger, closers)
		os.Exit(1)
	}

	var store *sqlite.Store
	if cfg.RegistrySource == config.RegistrySQLite || cfg.HistoryEnabled {
		store, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			fail("failed to open sqlite store", err)
		}
		closers = append(closers, closer{"sqlite", store})
		logger.Info("sqlite store opened", "path", cfg.SQLitePath)
	}

	if cfg.RegistrySource == config.RegistrySQLite {
		registry = store
	} else {
		registry = registryfile.NewLoader(cfg.RegistryPath)
	}
	logger.Info("registry configured", "source", cfg.RegistrySource)

	if cfg.HistoryEnabled {
		publishers = append(publishers, store)
		history = store
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		publishers = append(publishers, writer)
		closers = append(closers, closer{"kafka writer", writer})
		logger.Info("kafka publisher enabled", "topic", cfg.KafkaStatusTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.MQTTEnabled {
		pub := mqttadapter.NewPublisher(cfg, logger)
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			fail("failed to connect to mqtt broker", err)
		}
		publishers = append(publishers, pub)
		closers = append(closers, closer{"mqtt", pub})
		logger.Info("mqtt publisher enabled", "broker", cfg.MQTTBroker, "qos", cfg.MQTTQoS)
	}

	if cfg.InfluxEnabled {
		writer, err := influx.NewWriter(ctx, cfg, logger)
		if err != nil {
			fail("failed to connect to influxdb", err)
		}
		publishers = append(publishers, writer)
		closers = append(closers, closer{"influx", writer})
		logger.Info("influx publisher enabled", "url", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}

	if len(publishers) == 0 {
		logger.Warn("no publishers enabled; statuses are only served over http")
	}

	opts := pipeline.Options{
		Interval:      cfg.RunInterval,
		MaxSampleAge:  cfg.MaxSampleAge,
		MinConfidence: cfg.PublishMinConfidence,
	}
	if cfg.TestMode {
		opts.BeachLimit = cfg.TestLimit
		logger.Warn("test mode enabled", "beach_limit", cfg.TestLimit)
	}

	source := fwc.NewClient(cfg.FWCURL, cfg.FWCTimeout, cfg.FWCMaxRetries, metrics, logger)
	p := pipeline.New(source, registry, publishers, clockwork.NewRealClock(), logger, metrics, opts)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, history, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start status pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	closeAll(logger, closers)

	logger.Info("shutdown complete")
}

func closeAll(logger *slog.Logger, closers []closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].c.Close(); err != nil {
			logger.Error("close error", "resource", closers[i].name, "error", err)
		}
	}
}
