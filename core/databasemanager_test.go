package core

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appconfig "axiapac.com/payroll/config"
	"axiapac.com/payroll/model"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelSilent, ParseLogLevel("silent"))
	assert.Equal(t, LogLevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("info"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel(""))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New("postgres", "x", 1, LogLevelSilent, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenAndMigrate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dm, err := Open(context.Background(), appconfig.DatabaseConfig{
		Driver:         DriverSQLite,
		DSN:            "file:TestOpenAndMigrate?mode=memory&cache=shared",
		MaxConnections: 10,
		LogLevel:       "silent",
	}, logger)
	require.NoError(t, err)
	defer dm.Close()

	require.NoError(t, dm.Migrate(context.Background()))
	for _, m := range []any{&model.Timesheet{}, &model.DTR{}, &model.Timelog{}, &model.ClockEvent{}} {
		assert.True(t, dm.DB.Migrator().HasTable(m), "%T", m)
	}

	err = dm.Exec(context.Background(), func(db *gorm.DB) error {
		return db.Create(&model.Timesheet{ID: "ts1", EmployeeName: "Juan Dela Cruz"}).Error
	})
	require.NoError(t, err)
}
