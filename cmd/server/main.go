package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"axiapac.com/payroll/config"
	"axiapac.com/payroll/core"
	"axiapac.com/payroll/infrastructure/communication"
	"axiapac.com/payroll/store"
	"axiapac.com/payroll/web"
	"axiapac.com/payroll/web/events"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefaultConfig()
	if err := config.Load(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("slack", cfg.Slack.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	dm, err := core.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer dm.Close()

	if err := dm.Migrate(ctx); err != nil {
		return err
	}

	broker := events.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	notifier := communication.FromConfig(cfg.Slack)
	if err := notifier.Info(ctx, "payroll server starting on "+cfg.App.HTTP.Address()); err != nil {
		logger.Warn("slack notification failed", slog.String("error", err.Error()))
	}

	router := web.NewRouter(web.RouterOptions{
		Store:     store.New(dm.DB, logger),
		DB:        dm.DB,
		Broker:    broker,
		Notifier:  notifier,
		JWTSecret: cfg.Auth.SecretBytes(),
		Cookie:    cfg.Auth.Cookie,
		Logger:    logger,
	})

	if err := web.Serve(ctx, cfg.App.HTTP.Address(), router, logger, broker.Close); err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "payroll-server",
		Usage:  "Serves the timesheet hierarchy API",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
