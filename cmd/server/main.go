package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"supernomad/internal/chat"
	chathandler "supernomad/internal/chat/handler"
	"supernomad/internal/location"
	"supernomad/internal/notify"
	"supernomad/internal/platform/config"
	"supernomad/internal/platform/httpserver"
	"supernomad/internal/platform/kafka"
	"supernomad/internal/platform/logger"
	"supernomad/internal/platform/metrics"
	"supernomad/internal/platform/middleware"
	"supernomad/internal/storage"
	"supernomad/internal/subscription"
	subscriptionhandler "supernomad/internal/subscription/handler"
	"supernomad/internal/tracking/engine"
	trackinghandler "supernomad/internal/tracking/handler"
	"supernomad/internal/tracking/loop"
	trackingmetrics "supernomad/internal/tracking/metrics"
	"supernomad/internal/tracking/registry"
	"supernomad/internal/tracking/service"
	"supernomad/pkg/platform/httputil"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// app holds the wired components main needs for serving and shutdown.
type app struct {
	router    http.Handler
	provider  *location.PushProvider
	loop      *loop.Loop
	publisher *kafka.Publisher
	store     io.Closer
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, a.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting supernomad", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.provider.StopBackgroundTracking()
		err := srv.Shutdown(shutdownCtx)
		if cerr := a.loop.Close(); cerr != nil {
			log.Warn("failed to close tracking loop", "error", cerr)
		}
		if a.publisher != nil {
			if perr := a.publisher.Close(shutdownCtx); perr != nil {
				log.Warn("failed to flush notification publisher", "error", perr)
			}
		}
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// wire builds every component from cfg and mounts the HTTP routes.
func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	trackingMetrics := trackingmetrics.New(reg)

	store, storeCloser, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	log.Info("store opened", "driver", cfg.Storage.Driver)
	a := &app{store: storeCloser}
	fail := func(err error) (*app, error) {
		_ = storeCloser.Close()
		return nil, err
	}

	zone, err := cfg.Tracking.Location()
	if err != nil {
		return fail(err)
	}

	feed := notify.NewFeed(cfg.Tracking.FeedSize)
	dispatchers := notify.Multi{feed, notify.NewLogDispatcher(log)}
	if cfg.Kafka.Enabled() {
		a.publisher, err = kafka.NewPublisher(ctx, cfg.Kafka, kafka.WithLogger(log))
		if err != nil {
			return fail(fmt.Errorf("start notification publisher: %w", err))
		}
		dispatchers = append(dispatchers, a.publisher)
		log.Info("publishing notifications to kafka", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	subs, err := subscription.New(store, subscription.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	subs.Load(ctx)

	countries, err := registry.New(store,
		registry.WithLogger(log),
		registry.WithMetrics(trackingMetrics),
		registry.WithTierGate(subs),
	)
	if err != nil {
		return fail(err)
	}
	countries.Load(ctx)

	eng, err := engine.New(countries, store,
		engine.WithLogger(log),
		engine.WithMetrics(trackingMetrics),
		engine.WithDispatcher(dispatchers),
		engine.WithLocation(zone),
		engine.WithVPNSuspectThreshold(cfg.Tracking.VPNSuspectThreshold),
		engine.WithTaxResidentPolicy(engine.TaxResidentPolicy(cfg.Tracking.TaxResidentNotify)),
	)
	if err != nil {
		return fail(err)
	}
	eng.Load(ctx)

	a.loop = loop.New(cfg.Tracking.QueueSize, loop.WithLogger(log), loop.WithMetrics(trackingMetrics))
	svc, err := service.New(a.loop, countries, eng, service.WithLogger(log))
	if err != nil {
		return fail(err)
	}

	a.provider = location.NewPushProvider(location.WithLogger(log))
	if err := a.provider.StartBackgroundTracking(ctx, svc.RecordLocation); err != nil {
		return fail(err)
	}

	chatClient, err := chat.New(cfg.Chat, chat.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	if !chatClient.Configured() {
		log.Info("chat assistant disabled, NOMAD_CHAT_GATEWAY_URL is empty")
	}

	httpMetrics := metrics.New(reg)
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(metrics.LatencyMiddleware(httpMetrics))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	trackinghandler.New(svc, a.provider, feed, log, trackinghandler.WithTimeZone(zone)).Register(r)
	subscriptionhandler.New(subs, log).Register(r)
	chathandler.New(chatClient, log).Register(r)

	a.router = r
	return a, nil
}
