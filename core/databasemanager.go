package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"axiapac.com/payroll/model"
)

type LogLevel int

const (
	LogLevelSilent LogLevel = iota + 1
	LogLevelError
	LogLevelWarn
	LogLevelInfo
)

// ParseLogLevel maps a slog style level name onto the gorm log level.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "info", "debug":
		return LogLevelInfo
	}
	return LogLevelWarn
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type DatabaseManager struct {
	DB       *gorm.DB
	LogLevel LogLevel
	logger   *slog.Logger
}

// New opens the pool for driver. For sqlite the dsn is a file path or
// "file::memory:?cache=shared".
func New(driver, dsn string, maxConnection int, level LogLevel, log *slog.Logger) (*DatabaseManager, error) {
	if log == nil {
		log = slog.Default()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	// Map local LogLevel to GORM LogLevel
	gormLogLevel := logger.Silent
	switch level {
	case LogLevelError:
		gormLogLevel = logger.Error
	case LogLevelWarn:
		gormLogLevel = logger.Warn
	case LogLevelInfo:
		gormLogLevel = logger.Info
	case LogLevelSilent:
		gormLogLevel = logger.Silent
	default:
		gormLogLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite serialises writers; one connection also keeps an in-memory db alive
		maxConnection = 1
	}
	sqlDB.SetMaxOpenConns(maxConnection)
	sqlDB.SetMaxIdleConns(maxConnection)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping pool: %w", err)
	}

	log.Info("database connected", slog.String("driver", driver), slog.Int("maxConnections", maxConnection))
	return &DatabaseManager{DB: db, LogLevel: level, logger: log}, nil
}

// GetDB returns a session bound to ctx.
func (dm *DatabaseManager) GetDB(ctx context.Context) *gorm.DB {
	return dm.DB.WithContext(ctx)
}

func (dm *DatabaseManager) Exec(ctx context.Context, fn func(db *gorm.DB) error) error {
	return fn(dm.GetDB(ctx))
}

// Migrate creates or updates the hierarchy tables.
func (dm *DatabaseManager) Migrate(ctx context.Context) error {
	if err := dm.GetDB(ctx).AutoMigrate(
		&model.Timesheet{},
		&model.DTR{},
		&model.Timelog{},
		&model.ClockEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	dm.logger.Info("database migrated")
	return nil
}

// Close closes the global pool
func (dm *DatabaseManager) Close() error {
	sqlDB, err := dm.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
