// Package config собирает конфигурацию сервиса из значений по умолчанию,
// необязательного YAML-файла и переменных окружения с префиксом OMS_.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix: префикс переменных окружения. Вложенность задаётся через "__":
// OMS_STORAGE__DRIVER=postgres, OMS_REMOTE__CALL_TIMEOUT=2s.
const EnvPrefix = "OMS_"

// Драйверы хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Брокеры для публикации событий outbox.
const (
	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Хранилища ключей идемпотентности.
const (
	IdempotencyStoreStorage = "storage"
	IdempotencyStoreRedis   = "redis"
)

// Config описывает все настройки запуска приложения.
type Config struct {
	App struct {
		Name string `koanf:"name"`
		Env  string `koanf:"env"`
	} `koanf:"app"`

	HTTP struct {
		Addr            string        `koanf:"addr"`
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`

	Log struct {
		Level      string `koanf:"level"`
		Format     string `koanf:"format"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	Storage struct {
		Driver          string        `koanf:"driver"`
		PostgresDSN     string        `koanf:"postgres_dsn"`
		AutoMigrate     bool          `koanf:"auto_migrate"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"storage"`

	Remote struct {
		// Пустые адреса включают встроенные in-memory справочники (локальный режим).
		UserServiceAddr    string        `koanf:"user_service_addr"`
		ProductServiceAddr string        `koanf:"product_service_addr"`
		CallTimeout        time.Duration `koanf:"call_timeout"`
	} `koanf:"remote"`

	Saga struct {
		StockRetryAttempts   int           `koanf:"stock_retry_attempts"`
		StockRetryBaseDelay  time.Duration `koanf:"stock_retry_base_delay"`
		StockRetryMaxDelay   time.Duration `koanf:"stock_retry_max_delay"`
		StrictTransitions    bool          `koanf:"strict_transitions"`
		AllowNegativeStock   bool          `koanf:"allow_negative_stock"`
		CompensationsEnabled bool          `koanf:"compensations_enabled"`
	} `koanf:"saga"`

	Outbox struct {
		Broker       string        `koanf:"broker"`
		PollInterval time.Duration `koanf:"poll_interval"`
		BatchSize    int           `koanf:"batch_size"`
		MaxAttempts  int           `koanf:"max_attempts"`
		RetryDelay   time.Duration `koanf:"retry_delay"`
	} `koanf:"outbox"`

	Kafka struct {
		Brokers  []string `koanf:"brokers"`
		Topic    string   `koanf:"topic"`
		DLQTopic string   `koanf:"dlq_topic"`
	} `koanf:"kafka"`

	RabbitMQ struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
	} `koanf:"rabbitmq"`

	Idempotency struct {
		Store           string        `koanf:"store"`
		TTL             time.Duration `koanf:"ttl"`
		CleanupInterval time.Duration `koanf:"cleanup_interval"`
		CleanupBatch    int           `koanf:"cleanup_batch"`
	} `koanf:"idempotency"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Security struct {
		AdminJWTSecret string `koanf:"admin_jwt_secret"`
		Issuer         string `koanf:"issuer"`
		Audience       string `koanf:"audience"`
	} `koanf:"security"`
}

// Default возвращает конфигурацию для локального запуска.
func Default() Config {
	var c Config
	c.App.Name = "order-service"
	c.App.Env = "dev"

	c.HTTP.Addr = ":3007"
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 15 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 5 * time.Second

	c.Metrics.Addr = ":9090"

	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 7

	c.Storage.Driver = StorageDriverMemory
	c.Storage.AutoMigrate = true
	c.Storage.MaxOpenConns = 20
	c.Storage.MaxIdleConns = 10
	c.Storage.ConnMaxLifetime = 30 * time.Minute

	c.Remote.CallTimeout = 3 * time.Second

	c.Saga.StockRetryAttempts = 3
	c.Saga.StockRetryBaseDelay = 100 * time.Millisecond
	c.Saga.StockRetryMaxDelay = 2 * time.Second
	c.Saga.CompensationsEnabled = true

	c.Outbox.Broker = BrokerNone
	c.Outbox.PollInterval = time.Second
	c.Outbox.BatchSize = 100
	c.Outbox.MaxAttempts = 5
	c.Outbox.RetryDelay = 500 * time.Millisecond

	c.Kafka.Topic = "orders.order.events"
	c.Kafka.DLQTopic = "orders.dlq"

	c.RabbitMQ.Exchange = "orders.events"
	c.RabbitMQ.RoutingKey = "order.event"
	c.RabbitMQ.Queue = "orders.events.q"

	c.Idempotency.Store = IdempotencyStoreStorage
	c.Idempotency.TTL = 24 * time.Hour
	c.Idempotency.CleanupInterval = time.Minute
	c.Idempotency.CleanupBatch = 500

	c.Redis.Addr = "localhost:6379"

	return c
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если path не пустой),
// затем переменные окружения.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	// Unmarshal поверх значений по умолчанию: отсутствующие ключи не затираются.
	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ToLower(s)
}

// normalize разбирает списки, пришедшие из окружения одной строкой.
func (c *Config) normalize() {
	var brokers []string
	for _, b := range c.Kafka.Brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				brokers = append(brokers, part)
			}
		}
	}
	c.Kafka.Brokers = brokers
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Outbox.Broker = strings.ToLower(strings.TrimSpace(c.Outbox.Broker))
	c.Idempotency.Store = strings.ToLower(strings.TrimSpace(c.Idempotency.Store))
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr required"))
	}
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Outbox.Broker {
	case BrokerNone:
	case BrokerKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers required for kafka broker"))
		}
	case BrokerRabbitMQ:
		if c.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("rabbitmq.url required for rabbitmq broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown outbox.broker %q", c.Outbox.Broker))
	}
	switch c.Idempotency.Store {
	case IdempotencyStoreStorage:
	case IdempotencyStoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr required for redis idempotency store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown idempotency.store %q", c.Idempotency.Store))
	}
	if c.Remote.CallTimeout <= 0 {
		errs = append(errs, errors.New("remote.call_timeout must be positive"))
	}
	if c.Saga.StockRetryAttempts <= 0 {
		errs = append(errs, errors.New("saga.stock_retry_attempts must be positive"))
	}

	return errors.Join(errs...)
}

// LocalDirectories сообщает, что удалённые сервисы не заданы и используются встроенные справочники.
func (c Config) LocalDirectories() bool {
	return c.Remote.UserServiceAddr == "" && c.Remote.ProductServiceAddr == ""
}
