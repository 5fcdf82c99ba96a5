package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	directoryclient "github.com/vladislavdragonenkov/ordersvc/internal/clients/directory"
	inventoryclient "github.com/vladislavdragonenkov/ordersvc/internal/clients/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/directory"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/payment"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/redisstore"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	Users     domain.UserDirectory
	Inventory domain.Inventory
	Payments  domain.PaymentProcessor

	// Checkers: проверки для /healthz и /readyz.
	Checkers map[string]health.Checker

	closers []io.Closer
}

// NewDependencies поднимает хранилища и клиентов по конфигурации.
// При ошибке уже открытые ресурсы закрываются.
func NewDependencies(ctx context.Context, cfg config.Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{
		Payments: payment.NewMockService(),
		Checkers: make(map[string]health.Checker),
	}

	steps := []func() error{
		func() error { return deps.initStorage(ctx, cfg, logger) },
		func() error { return deps.initDirectories(cfg, logger) },
		func() error { return deps.initIdempotency(ctx, cfg, logger) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			if cerr := deps.Close(); cerr != nil {
				logger.WithError(cerr).Warn("close partially initialised dependencies")
			}
			return nil, err
		}
	}
	deps.Checkers["outbox"] = health.NewOutboxBacklogChecker(deps.Outbox, cfg.Outbox.BatchSize*10, 0)
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg config.Config, logger *log.Entry) error {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		store, err := postgres.OpenWithOptions(ctx, cfg.Storage.PostgresDSN, postgres.PoolOptions{
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		d.closers = append(d.closers, store)
		if cfg.Storage.AutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}
		d.Orders = postgres.NewOrderRepository(store)
		d.Outbox = postgres.NewOutboxRepository(store)
		d.Timeline = postgres.NewTimelineRepository(store)
		d.Checkers["postgres"] = health.NewPingChecker("postgres", store.Ping)
		logger.Info("storage: postgres")
	default:
		d.Orders = memory.NewOrderRepository()
		d.Outbox = memory.NewOutboxRepository()
		d.Timeline = memory.NewTimelineRepository()
		logger.Info("storage: in-memory")
	}
	return nil
}

// initDirectories выбирает встроенные справочники или gRPC-клиентов удалённых сервисов.
func (d *Dependencies) initDirectories(cfg config.Config, logger *log.Entry) error {
	if cfg.LocalDirectories() {
		d.Users = directory.NewMemory(directory.DefaultUsers())
		d.Inventory = inventory.NewCatalog(inventory.DefaultProducts(),
			inventory.WithAllowNegative(cfg.Saga.AllowNegativeStock))
		logger.Warn("remote services are not configured, using built-in user and product directories")
		return nil
	}

	userConn, err := d.dial(cfg.Remote.UserServiceAddr)
	if err != nil {
		return err
	}
	productConn, err := d.dial(cfg.Remote.ProductServiceAddr)
	if err != nil {
		return err
	}
	d.Users = directoryclient.NewClient(userConn, cfg.Remote.CallTimeout)
	d.Inventory = inventoryclient.NewClient(productConn, cfg.Remote.CallTimeout)
	logger.WithFields(log.Fields{
		"user_service":    cfg.Remote.UserServiceAddr,
		"product_service": cfg.Remote.ProductServiceAddr,
	}).Info("remote directories configured")
	return nil
}

func (d *Dependencies) dial(target string) (*grpc.ClientConn, error) {
	if target == "" {
		return nil, errors.New("remote.user_service_addr and remote.product_service_addr must be set together")
	}
	conn, err := rpc.Dial(target)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, conn)
	return conn, nil
}

func (d *Dependencies) initIdempotency(ctx context.Context, cfg config.Config, logger *log.Entry) error {
	if cfg.Idempotency.Store == config.IdempotencyStoreRedis {
		rdb, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		d.closers = append(d.closers, rdb)
		d.Idempotency = redisstore.NewIdempotencyRepository(rdb)
		d.Checkers["redis"] = health.NewPingChecker("redis", func(ctx context.Context) error {
			return pingRedis(ctx, rdb)
		})
		logger.WithField("addr", cfg.Redis.Addr).Info("idempotency keys: redis")
		return nil
	}

	if store, ok := d.postgresStore(); ok {
		d.Idempotency = postgres.NewIdempotencyRepository(store)
		return nil
	}
	d.Idempotency = memory.NewIdempotencyRepository()
	return nil
}

func (d *Dependencies) postgresStore() (*postgres.Store, bool) {
	for _, c := range d.closers {
		if store, ok := c.(*postgres.Store); ok {
			return store, true
		}
	}
	return nil, false
}

func pingRedis(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}

// Close закрывает соединения в обратном порядке.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
