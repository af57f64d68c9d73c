package core

import (
	"context"
	"fmt"
	"log/slog"

	appconfig "axiapac.com/payroll/config"
	"axiapac.com/payroll/infrastructure/devops"
)

// Open connects using cfg. The DSN comes from SSM Parameter Store when
// SSMParameter is set.
func Open(ctx context.Context, cfg appconfig.DatabaseConfig, log *slog.Logger) (*DatabaseManager, error) {
	dsn := cfg.DSN
	if cfg.SSMParameter != "" {
		var err error
		if dsn, err = devops.LoadDSN(ctx, cfg.SSMParameter); err != nil {
			return nil, fmt.Errorf("failed to load dsn from %s: %w", cfg.SSMParameter, err)
		}
	}
	return New(cfg.Driver, dsn, cfg.MaxConnections, ParseLogLevel(cfg.LogLevel), log)
}
