// Package config loads the bot configuration from a YAML file with
// environment variable overrides. An invalid configuration is fatal: the
// process must not start with, say, a zero rate budget or an inverted
// threshold pair.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wachawo/trading-bot/internal/model"
)

// Duration is a time.Duration that unmarshals from YAML strings like "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Provider struct {
		Name    string `yaml:"name"` // coingecko | apex | mock
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"provider"`
	Assets []model.Asset `yaml:"assets"`
	RSI    struct {
		Window       int `yaml:"window"`
		LookbackDays int `yaml:"lookback_days"`
	} `yaml:"rsi"`
	Thresholds struct {
		Oversold float64 `yaml:"oversold"`
		Reset    float64 `yaml:"reset"`
	} `yaml:"thresholds"`
	Schedule struct {
		Interval Duration `yaml:"interval"`
	} `yaml:"schedule"`
	RateLimit struct {
		MaxCalls int      `yaml:"max_calls"`
		Window   Duration `yaml:"window"`
	} `yaml:"rate_limit"`
	Retry struct {
		MaxAttempts int      `yaml:"max_attempts"`
		Timeout     Duration `yaml:"timeout"`
	} `yaml:"retry"`
	Alerts struct {
		MaxAttempts int      `yaml:"max_attempts"`
		Timeout     Duration `yaml:"timeout"`
		Cooldown    Duration `yaml:"cooldown"`
	} `yaml:"alerts"`
	Database struct {
		SQLitePath        string `yaml:"sqlite_path"`
		PersistAlertState *bool  `yaml:"persist_alert_state"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("COINGECKO_API_KEY_ACCOUNT"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Schedule.Interval = Duration(parsed)
		}
	}
	if v := os.Getenv("RSI_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RSI.Window = n
		}
	}

	// Defaults
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "coingecko"
	}
	if cfg.RSI.Window == 0 {
		cfg.RSI.Window = 14
	}
	if cfg.RSI.LookbackDays == 0 {
		cfg.RSI.LookbackDays = 59
	}
	if cfg.Thresholds.Oversold == 0 {
		cfg.Thresholds.Oversold = 30
	}
	if cfg.Thresholds.Reset == 0 {
		cfg.Thresholds.Reset = 40
	}
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = Duration(time.Hour)
	}
	if cfg.RateLimit.MaxCalls == 0 {
		cfg.RateLimit.MaxCalls = 25
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = Duration(time.Minute)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = Duration(30 * time.Second)
	}
	if cfg.Alerts.MaxAttempts == 0 {
		cfg.Alerts.MaxAttempts = 3
	}
	if cfg.Alerts.Timeout == 0 {
		cfg.Alerts.Timeout = Duration(30 * time.Second)
	}

	return cfg, nil
}

// PersistAlertState reports whether alert state should survive restarts.
// Defaults to true whenever a database path is configured.
func (c *Config) PersistAlertState() bool {
	if c.Database.PersistAlertState != nil {
		return *c.Database.PersistAlertState
	}
	return c.Database.SQLitePath != ""
}

// Validate checks that the configuration can run unattended. Any error
// here must abort startup with a non-zero exit.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	switch c.Provider.Name {
	case "coingecko", "apex", "mock":
	default:
		return fmt.Errorf("provider.name must be one of coingecko, apex, mock; got %q", c.Provider.Name)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("at least one tracked asset is required")
	}
	for i, a := range c.Assets {
		if a.ID == "" || a.Symbol == "" {
			return fmt.Errorf("assets[%d]: id and symbol are required", i)
		}
	}
	if c.RSI.Window < 1 {
		return fmt.Errorf("rsi.window must be >= 1, got %d", c.RSI.Window)
	}
	if c.RSI.LookbackDays < c.RSI.Window+1 {
		return fmt.Errorf("rsi.lookback_days %d cannot cover window %d (need at least %d)",
			c.RSI.LookbackDays, c.RSI.Window, c.RSI.Window+1)
	}
	if c.Thresholds.Reset <= c.Thresholds.Oversold {
		return fmt.Errorf("thresholds.reset %.2f must be greater than thresholds.oversold %.2f",
			c.Thresholds.Reset, c.Thresholds.Oversold)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive")
	}
	if c.RateLimit.MaxCalls <= 0 {
		return fmt.Errorf("rate_limit.max_calls must be positive, got %d", c.RateLimit.MaxCalls)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	return nil
}
