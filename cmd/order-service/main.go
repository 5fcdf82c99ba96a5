package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/app"
	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	"github.com/vladislavdragonenkov/ordersvc/internal/logging"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

const envConfigFile = "OMS_CONFIG_FILE"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}
}

// run разбирает флаги, загружает конфигурацию и запускает сервис.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("order-service", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", os.Getenv(envConfigFile), "path to YAML config (fallback: "+envConfigFile+")")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, err := fmt.Fprintln(stdout, version.Get().String())
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()

	logger.WithFields(log.Fields{
		"version":      version.GetVersion(),
		"env":          cfg.App.Env,
		"http_addr":    cfg.HTTP.Addr,
		"metrics_addr": cfg.Metrics.Addr,
		"storage":      cfg.Storage.Driver,
		"broker":       cfg.Outbox.Broker,
	}).Info("запускаем order-service")

	if err := app.Run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("order-service остановлен")
	return nil
}
