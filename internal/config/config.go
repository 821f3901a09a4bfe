package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config keeps runtime settings for the bot and the maintenance CLI.
type Config struct {
	TelegramToken     string        `toml:"telegram_token"`
	DatabaseURL       string        `toml:"database_url"`
	ReportInterval    time.Duration `toml:"-"`
	ReportHours       int           `toml:"report_interval_hours"`
	BackupDir         string        `toml:"backup_dir"`
	BackupTime        string        `toml:"backup_time"`
	LogLevel          string        `toml:"log_level"`
	MinPasswordLength int           `toml:"min_password_length"`
}

const (
	defaultDatabaseURL       = "spaces.db"
	defaultReportHours       = 5
	defaultBackupTime        = "03:00"
	defaultLogLevel          = "info"
	defaultMinPasswordLength = 4
)

// Load reads configuration from an optional TOML file and then environment
// variables, on top of sane defaults. path may be empty; SPACES_CONFIG is used
// then and a missing file is skipped. A path passed explicitly must exist.
func Load(path string) (Config, error) {
	cfg := Config{
		DatabaseURL:       defaultDatabaseURL,
		ReportHours:       defaultReportHours,
		BackupTime:        defaultBackupTime,
		LogLevel:          defaultLogLevel,
		MinPasswordLength: defaultMinPasswordLength,
	}

	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(os.Getenv("SPACES_CONFIG"))
	}
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	loadFromEnv(&cfg)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ReportHours < 0 {
		cfg.ReportHours = 0
	}
	cfg.ReportInterval = time.Duration(cfg.ReportHours) * time.Hour
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = defaultMinPasswordLength
	}

	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if v := env("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("REPORT_INTERVAL_HOURS"); v != "" {
		cfg.ReportHours = parseHours(v)
	}
	if v := env("BACKUP_DIR"); v != "" {
		cfg.BackupDir = v
	}
	if v := env("BACKUP_TIME"); v != "" {
		cfg.BackupTime = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("MIN_PASSWORD_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinPasswordLength = n
		}
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseHours(raw string) int {
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
