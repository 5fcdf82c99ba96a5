package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run применяет, откатывает или показывает миграции схемы заказов.
// DSN берётся из -dsn, иначе из конфигурации (storage.postgres_dsn / OMS_STORAGE__POSTGRES_DSN).
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	direction := fs.String("direction", "up", "migration direction: up|down|status|list")
	steps := fs.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (fallback: storage.postgres_dsn from config)")
	configPath := fs.String("config", os.Getenv("OMS_CONFIG_FILE"), "path to YAML config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := strings.ToLower(strings.TrimSpace(*direction))
	switch dir {
	case "up", "down", "status", "list":
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status|list)", *direction)
	}

	target := strings.TrimSpace(*dsn)
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		target = strings.TrimSpace(cfg.Storage.PostgresDSN)
	}
	if target == "" {
		return fmt.Errorf("postgres dsn is required: pass -dsn or set OMS_STORAGE__POSTGRES_DSN")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch dir {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, *steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "list":
		applied, err := store.AppliedMigrations(ctx)
		if err != nil {
			return fmt.Errorf("list migrations: %w", err)
		}
		for _, m := range applied {
			fmt.Fprintf(stdout, "%04d %s %s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
		}
		return nil
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	fmt.Fprintf(stdout, "migrate %s ok: version=%d applied=%d\n", dir, version, count)
	return nil
}
