// @title ElderCare API
// @version 0.1
// @description Users and VR environment ingestion for ElderCare.

// @host localhost:5000
// @BasePath /
// @schemes http

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "eldercare/backend/docs"
	"eldercare/backend/internal/app"
	"eldercare/backend/internal/config"
	"eldercare/backend/internal/pkg/logging"
	"eldercare/backend/internal/repository"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "eldercare",
		Usage: "ElderCare users and environment ingestion API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional dotenv file read before the process environment",
				Value: ".env",
			},
		},
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serveCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply postgres document store migrations",
				Action: migrateCommand,
			},
			{
				Name:   "orphans",
				Usage:  "List stored blobs that no environment record references",
				Action: orphansCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCommand(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, cfg, logger)
}

func migrateCommand(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.DocBackend != config.DocBackendPostgres {
		return fmt.Errorf("migrate requires DOC_BACKEND=%s, got %q", config.DocBackendPostgres, cfg.DocBackend)
	}

	db, err := repository.NewDB(cfg.DSN())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := repository.Migrate(c.Context, sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func orphansCommand(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return printOrphans(c.Context, a, c.App.Writer)
}

func printOrphans(ctx context.Context, a *app.App, w io.Writer) error {
	orphans, err := a.Environments.FindOrphans(ctx)
	if err != nil {
		return err
	}
	for _, key := range orphans {
		fmt.Fprintln(w, key)
	}
	a.Logger.Info("orphan scan finished", "orphans", len(orphans))
	return nil
}
