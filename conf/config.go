// Package conf holds the connection's build metadata and its configuration,
// loaded through viper from an optional YAML file and the environment.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	// Slack drops a command or interaction that is not acknowledged within
	// three seconds.
	slackAckWindow = 3 * time.Second
)

// Config is the full connection configuration.
type Config struct {
	Slack        SlackConfig       `mapstructure:"slack"`
	Server       ServerConfig      `mapstructure:"server"`
	Database     DatabaseConfig    `mapstructure:"database"`
	GlobalAdmins []string          `mapstructure:"global_admins"`
	Webhooks     map[string]string `mapstructure:"webhooks"`
}

// SlackConfig carries the Slack app credentials.
type SlackConfig struct {
	AppID         string        `mapstructure:"app_id"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	SigningSecret string        `mapstructure:"signing_secret"`
	BotToken      string        `mapstructure:"bot_token"`
	UserToken     string        `mapstructure:"user_token"`
	APIURL        string        `mapstructure:"api_url"`
	AckTimeout    time.Duration `mapstructure:"ack_timeout"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	Metrics  bool   `mapstructure:"metrics"`
}

// DatabaseConfig selects the gorm dialector.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	User   string `mapstructure:"user"`
	Pass   string `mapstructure:"pass"`
	Host   string `mapstructure:"host"`
	Name   string `mapstructure:"name"`
}

// SetDefaults registers every key with viper so that AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("slack.app_id", "")
	v.SetDefault("slack.client_id", "")
	v.SetDefault("slack.client_secret", "")
	v.SetDefault("slack.signing_secret", "")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.user_token", "")
	v.SetDefault("slack.api_url", "")
	v.SetDefault("slack.ack_timeout", "2500ms")
	v.SetDefault("server.listen", ":3000")
	v.SetDefault("server.base_path", "/slack")
	v.SetDefault("server.metrics", true)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.pass", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.name", "")
	v.SetDefault("global_admins", []string{})
}

// BindEnv wires the NEXUS_SLACK_* environment plus the conventional Slack
// variable names.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("NEXUS_SLACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("slack.signing_secret", "NEXUS_SLACK_SLACK_SIGNING_SECRET", "SLACK_SIGNING_SECRET")
	_ = v.BindEnv("slack.bot_token", "NEXUS_SLACK_SLACK_BOT_TOKEN", "SLACK_OAUTH_TOKEN")
	_ = v.BindEnv("slack.user_token", "NEXUS_SLACK_SLACK_USER_TOKEN", "SLACK_USER_TOKEN")
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("conf: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")
	if c.Server.BasePath == "/" {
		c.Server.BasePath = ""
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))

	var admins []string
	for _, admin := range c.GlobalAdmins {
		if trimmed := strings.TrimSpace(admin); trimmed != "" {
			admins = append(admins, trimmed)
		}
	}
	c.GlobalAdmins = admins
}

// Validate reports every missing or out of range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("slack.signing_secret is required"))
	}
	if c.Slack.BotToken == "" {
		errs = append(errs, errors.New("slack.bot_token is required"))
	}
	if c.Slack.AckTimeout <= 0 || c.Slack.AckTimeout >= slackAckWindow {
		errs = append(errs, fmt.Errorf("slack.ack_timeout must be between 0 and %s, got %s", slackAckWindow, c.Slack.AckTimeout))
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverMySQL:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			errs = append(errs, errors.New("database.dsn or database.host and database.name are required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	for name, url := range c.Webhooks {
		if url == "" {
			errs = append(errs, fmt.Errorf("webhooks.%s has no url", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("conf: %w", errors.Join(errs...))
	}
	return nil
}

// DataSource returns the DSN for the configured driver.
func (d DatabaseConfig) DataSource() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == DriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True", d.User, d.Pass, d.Host, d.Name)
	}
	return "file::memory:?cache=shared"
}
