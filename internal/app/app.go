// Package app собирает сервис заказов из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/outbox"
	httpapi "github.com/vladislavdragonenkov/ordersvc/internal/transport/http"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

// App: собранное приложение: HTTP API, сервер метрик и фоновые воркеры.
type App struct {
	cfg    config.Config
	logger *log.Entry

	deps    *Dependencies
	pubs    publishers
	api     *httpapi.Server
	health  *healthcheck.Handler
	outbox  *outbox.Worker
	cleanup *idempotency.CleanupWorker
}

// New собирает приложение. Метрики регистрируются в глобальном регистре Prometheus.
func New(ctx context.Context, cfg config.Config, logger *log.Entry) (*App, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	pubs, err := initPublishers(cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	if !cfg.LocalDirectories() {
		promgrpc.EnableClientHandlingTimeHistogram()
	}

	sagaMetrics := metrics.NewSagaMetrics(prometheus.DefaultRegisterer)
	events := messaging.NewRecorder(deps.Outbox, deps.Timeline, sagaMetrics, logger.WithField("layer", "events"))
	orchestrator := createOrchestrator(deps, cfg, sagaMetrics, events, logger)
	orderService := createOrderService(deps, cfg, events, logger)

	guard := idempotency.NewGuard(deps.Idempotency, cfg.Idempotency.TTL, logger.WithField("layer", "idempotency"))
	opts := []httpapi.Option{
		httpapi.WithLogger(logger.WithField("layer", "http")),
		httpapi.WithIdempotency(guard),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)),
	}
	if auth := httpapi.NewAdminAuth(cfg.Security.AdminJWTSecret, cfg.Security.Issuer, cfg.Security.Audience); auth != nil {
		opts = append(opts, httpapi.WithAdminAuth(auth))
	} else {
		logger.Warn("security.admin_jwt_secret is empty, admin routes are not protected")
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		pubs:    pubs,
		api:     httpapi.NewServer(orchestrator, orderService, opts...),
		health:  healthcheck.NewHandler(version.GetVersion()),
		cleanup: idempotency.NewCleanupWorker(deps.Idempotency, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatch, logger.WithField("layer", "idempotency-cleanup")),
	}
	for name, checker := range deps.Checkers {
		a.health.RegisterChecker(name, checker)
	}
	if pubs.main != nil {
		a.outbox = outbox.NewWorker(deps.Outbox, pubs.main, outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			RetryDelay:   cfg.Outbox.RetryDelay,
		}, outbox.WithLogger(logger.WithField("layer", "outbox")), outbox.WithDeadLetter(pubs.deadLetter))
	}
	return a, nil
}

// Handler возвращает HTTP API.
func (a *App) Handler() http.Handler { return a.api.Handler() }

// MetricsHandler возвращает обработчик /metrics и проверок состояния.
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", a.health)
	mux.HandleFunc("/readyz", a.health.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// Close освобождает подключения к брокеру и хранилищам.
func (a *App) Close() error {
	a.pubs.close(a.logger)
	return a.deps.Close()
}

// Run обслуживает запросы до отмены ctx, затем аккуратно останавливается.
func (a *App) Run(ctx context.Context) error {
	apiSrv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
	}
	metricsSrv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           a.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var wg sync.WaitGroup
	if a.outbox != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.outbox.Run(workerCtx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cleanup.Run(workerCtx)
	}()

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		a.logger.Infof("%s сервер слушает %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go serve("http", apiSrv)
	go serve("metrics", metricsSrv)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("получен сигнал остановки, останавливаем сервер")
	case runErr = <-errCh:
		a.logger.WithError(runErr).Error("server failed, shutting down")
	}

	shutdownHTTP(apiSrv, a.cfg.HTTP.ShutdownTimeout, a.logger)
	shutdownHTTP(metricsSrv, a.cfg.HTTP.ShutdownTimeout, a.logger)
	stopWorkers()
	wg.Wait()
	return runErr
}

// Run собирает приложение и обслуживает его до отмены ctx.
func Run(ctx context.Context, cfg config.Config, logger *log.Entry) error {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close dependencies")
		}
	}()
	return a.Run(ctx)
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
