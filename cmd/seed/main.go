package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"axiapac.com/payroll/config"
	"axiapac.com/payroll/core"
	"axiapac.com/payroll/infrastructure/filesystem"
	"axiapac.com/payroll/seed"
	"axiapac.com/payroll/utils"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefaultConfig()
	if err := config.Load(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	dm, err := core.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer dm.Close()

	if err := dm.Migrate(ctx); err != nil {
		return err
	}

	var batch *seed.Batch
	if path := cmd.String("csv"); path != "" {
		files, err := filesystem.ReadAll(ctx, path, ".csv")
		if err != nil {
			return err
		}
		batch = &seed.Batch{}
		for _, f := range files {
			b, err := seed.FromCSV(bytes.NewReader(f.Data))
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			batch.Append(b)
		}
	} else {
		start := utils.MustParseDate(cmd.String("start"))
		if start.IsZero() {
			return fmt.Errorf("invalid start date %q", cmd.String("start"))
		}
		batch = seed.Demo(int(cmd.Int("employees")), start, cmd.String("pay-period"))
	}

	if err := batch.Insert(ctx, dm.DB); err != nil {
		return err
	}
	logger.Info("seeded",
		slog.Int("timesheets", len(batch.Timesheets)),
		slog.Int("dtrs", len(batch.DTRs)),
		slog.Int("timelogs", len(batch.Timelogs)),
		slog.Int("clockEvents", len(batch.ClockEvents)))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "seed",
		Usage:  "Creates the hierarchy tables and fills them with demo or CSV data",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{Name: "csv", Usage: "Import rows from a CSV file, s3://bucket/key or s3://bucket/prefix/ instead of generating demo data"},
			&cli.IntFlag{Name: "employees", Value: 12, Usage: "Number of demo timesheets"},
			&cli.StringFlag{Name: "start", Value: time.Now().Format("2006-01-02"), Usage: "First day of the demo week (yyyy-MM-dd)"},
			&cli.StringFlag{Name: "pay-period", Value: "demo", Usage: "Pay period of the demo timesheets"},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
