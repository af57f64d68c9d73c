package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the configuration of the payroll server and tools.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Database DatabaseConfig    `yaml:"database"`
	Auth     AuthConfig        `yaml:"auth"`
	Slack    SlackConfig       `yaml:"slack"`
	Events   EventsConfig      `yaml:"events"`
}

func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Slack.Validate(); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return c.Events.Validate()
}

type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the driver and connection. When SSMParameter is set
// the DSN is read from AWS SSM Parameter Store instead of DSN.
type DatabaseConfig struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	MaxConnections int    `yaml:"max_connections"`
	SSMParameter   string `yaml:"ssm_parameter"`
	LogLevel       string `yaml:"log_level"`
}

func (c *DatabaseConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In("mysql", "sqlite")),
		validation.Field(&c.MaxConnections, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("silent", "error", "warn", "info", "debug")),
	); err != nil {
		return err
	}
	if c.DSN == "" && c.SSMParameter == "" {
		return errors.New("one of dsn or ssm_parameter is required")
	}
	return nil
}

// AuthConfig holds the base64 encoded HMAC secret used to sign and verify
// bearer tokens.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Cookie string `yaml:"cookie"`
}

func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.By(isBase64)),
	)
}

// SecretBytes returns the decoded signing secret.
func (c *AuthConfig) SecretBytes() []byte {
	b, _ := base64.StdEncoding.DecodeString(c.Secret)
	return b
}

// SlackConfig enables error notifications when Token is set.
type SlackConfig struct {
	Token          string `yaml:"token"`
	InfoChannelID  string `yaml:"info_channel"`
	ErrorChannelID string `yaml:"error_channel"`
}

func (c *SlackConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ErrorChannelID, validation.When(c.Token != "", validation.Required)),
	)
}

func (c *SlackConfig) Enabled() bool {
	return c.Token != ""
}

type EventsConfig struct {
	// Throttle coalesces bursts of change events per topic.
	Throttle time.Duration `yaml:"throttle"`
}

func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

func isBase64(value any) error {
	s, _ := value.(string)
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return errors.New("must be base64 encoded")
	}
	return nil
}

// NewDefaultConfig returns a configuration suitable for local development.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8090,
			},
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			DSN:            "payroll.db",
			MaxConnections: 30,
			LogLevel:       "warn",
		},
		Auth: AuthConfig{
			Cookie: "axiapac.ApplicationCookie",
		},
		Events: EventsConfig{
			Throttle: 500 * time.Millisecond,
		},
	}
}
