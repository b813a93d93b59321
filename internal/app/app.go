// v0
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auton88n/tradeayn-sub003/internal/api"
	"github.com/auton88n/tradeayn-sub003/internal/circuitbreaker"
	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/config"
	"github.com/auton88n/tradeayn-sub003/internal/events"
	"github.com/auton88n/tradeayn-sub003/internal/logging"
	"github.com/auton88n/tradeayn-sub003/internal/observability"
	"github.com/auton88n/tradeayn-sub003/internal/runstore"
	"github.com/auton88n/tradeayn-sub003/internal/service"
)

// Application wires configuration, logging, the rule table backend, the
// run store, event sinks and the HTTP surface of the compliance service.
type Application struct {
	cfg     config.Config
	log     *logging.Logger
	metrics *observability.Metrics
	server  *http.Server
	health  *api.HealthState
	store   *runstore.FileStore
	file    *codes.FileSource
	sqlite  *codes.SQLiteStore
	kafka   *events.KafkaPublisher
	mqtt    *events.MQTTNotifier
}

// New builds a fully wired service instance. Partially initialized
// resources are released on error.
func New(ctx context.Context, cfg config.Config) (_ *Application, err error) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	lg, err := logging.Open(cfg.LogFilePath, level)
	if err != nil {
		return nil, err
	}
	a := &Application{
		cfg:     cfg,
		log:     lg,
		metrics: observability.NewMetrics(),
		health:  api.NewHealthState(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	logger := lg.Logger

	source, err := a.openSource(ctx, logger.With(slog.String("component", "codes")))
	if err != nil {
		return nil, err
	}

	store, err := runstore.NewFileStore(cfg.RunStorePath, logger.With(slog.String("component", "runstore")))
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	a.store = store

	notifier, err := a.openNotifier(ctx, logger.With(slog.String("component", "events")))
	if err != nil {
		return nil, err
	}

	svc, err := service.New(service.Options{
		Source:        source,
		Store:         store,
		Notifier:      notifier,
		Metrics:       a.metrics,
		Logger:        logger.With(slog.String("component", "service")),
		ReportSkipped: cfg.ReportSkipped,
	})
	if err != nil {
		return nil, err
	}

	handler := api.NewRouter(api.RouterOptions{
		Logger:      logger.With(slog.String("component", "http")),
		Health:      a.health,
		Service:     svc,
		Metrics:     a.metrics,
		CORSOrigins: cfg.CORSOrigins,
	})
	a.server = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}

	logger.Info("compliance_service_configured",
		slog.String("address", cfg.ListenAddress),
		slog.String("codes_source", cfg.CodesSource),
		slog.String("event_sink", cfg.EventSink),
		slog.String("runstore", cfg.RunStorePath),
		slog.Bool("report_skipped", cfg.ReportSkipped),
	)
	return a, nil
}

func (a *Application) openSource(ctx context.Context, logger *slog.Logger) (codes.Source, error) {
	var src codes.Source
	switch a.cfg.CodesSource {
	case config.SourceFile:
		fs, err := codes.NewFileSource(a.cfg.CodesFile, logger)
		if err != nil {
			return nil, fmt.Errorf("codes file: %w", err)
		}
		fs.OnReload(a.metrics.CodesReloaded)
		a.file = fs
		src = fs
	case config.SourceSQLite:
		db, err := codes.OpenSQLite(ctx, a.cfg.CodesDBPath)
		if err != nil {
			return nil, fmt.Errorf("codes db: %w", err)
		}
		a.sqlite = db
		src = db
	case config.SourceRemote:
		client := circuitbreaker.NewHTTPClient("codes-remote", a.cfg.Breaker, a.cfg.CodesRemoteURL,
			&http.Client{Timeout: 10 * time.Second},
			circuitbreaker.WithLogger(logger),
			circuitbreaker.WithStateListener(a.metrics.BreakerListener()),
		)
		src = codes.NewRemoteClient(a.cfg.CodesRemoteURL, a.cfg.CodesRemoteAPIKey, client)
	default:
		return nil, fmt.Errorf("unsupported codes source %q", a.cfg.CodesSource)
	}
	src = codes.NewInstrumented(src, a.metrics)
	if a.cfg.CodesSource == config.SourceFile {
		// the file source is already in memory
		return src, nil
	}
	cached := codes.NewCachedSource(src, a.cfg.CodesCacheTTL, a.metrics)
	return cached, nil
}

func (a *Application) openNotifier(ctx context.Context, logger *slog.Logger) (events.Notifier, error) {
	switch a.cfg.EventSink {
	case config.SinkNone, "":
		return events.Nop{}, nil
	case config.SinkKafka:
		if a.cfg.KafkaEnsureTopic {
			if _, err := events.EnsureTopic(ctx, logger, events.TopicSpec{
				Brokers:     a.cfg.KafkaBrokers,
				Topic:       a.cfg.KafkaTopic,
				Partitions:  a.cfg.KafkaPartitions,
				Replication: a.cfg.KafkaReplication,
			}); err != nil {
				return nil, fmt.Errorf("ensure kafka topic: %w", err)
			}
		}
		pub, err := events.NewKafkaPublisher(events.KafkaConfig{
			Topic:   a.cfg.KafkaTopic,
			Brokers: a.cfg.KafkaBrokers,
			Acks:    a.cfg.KafkaAcks,
			KeyMode: events.KeyMode(a.cfg.KafkaKeyMode),
			Breaker: a.cfg.Breaker,
			Publish: a.cfg.Publish,
		}, logger, a.metrics, circuitbreaker.WithStateListener(a.metrics.BreakerListener()))
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		a.kafka = pub
		return pub, nil
	case config.SinkMQTT:
		n, err := events.NewMQTTNotifier(events.MQTTConfig{
			Broker:      a.cfg.MQTTBroker,
			ClientID:    a.cfg.MQTTClientID,
			TopicPrefix: a.cfg.MQTTTopicPrefix,
		}, logger, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		a.mqtt = n
		return n, nil
	}
	return nil, fmt.Errorf("unsupported event sink %q", a.cfg.EventSink)
}

// Logger exposes the configured logger to main.
func (a *Application) Logger() *slog.Logger {
	return a.log.Logger
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run blocks until ctx is cancelled or a component fails, then shuts the
// HTTP server down gracefully.
func (a *Application) Run(ctx context.Context) error {
	logger := a.log.Logger
	g, gctx := errgroup.WithContext(ctx)

	if a.kafka != nil {
		if err := a.kafka.Start(gctx); err != nil {
			return fmt.Errorf("start kafka publisher: %w", err)
		}
	}
	if a.file != nil && a.cfg.CodesWatch {
		g.Go(func() error {
			return a.file.Watch(gctx)
		})
	}

	g.Go(func() error {
		a.health.SetReady(true)
		logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
		err := a.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", slog.Any("err", err))
			return err
		}
		logger.Info("server_closed")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http_shutdown_error", slog.Any("err", err))
			return err
		}
		if a.kafka != nil {
			if err := a.kafka.Stop(shutdownCtx); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// Close releases every resource opened by New. It is safe to call after Run
// and more than once.
func (a *Application) Close() error {
	var errs []error
	if a.kafka != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		errs = append(errs, a.kafka.Stop(ctx))
		cancel()
		a.kafka = nil
	}
	if a.mqtt != nil {
		a.mqtt.Close()
		a.mqtt = nil
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
		a.sqlite = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	return errors.Join(errs...)
}
