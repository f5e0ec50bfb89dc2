package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Telegram    TelegramConfig            `json:"telegram" yaml:"telegram"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Worker      WorkerConfig              `json:"worker" yaml:"worker"`
	Batch       BatchConfig               `json:"batch" yaml:"batch"`
	Render      RenderConfig              `json:"render" yaml:"render"`
	Journal     JournalConfig             `json:"journal" yaml:"journal"`
	Admin       AdminConfig               `json:"admin" yaml:"admin"`
	Log         LogConfig                 `json:"log" yaml:"log"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
}

type TelegramConfig struct {
	Token              string `json:"token" yaml:"token"`
	WebhookURL         string `json:"webhook_url" yaml:"webhook_url"`
	WebhookSecret      string `json:"webhook_secret" yaml:"webhook_secret"`
	PollTimeoutSeconds int    `json:"poll_timeout_seconds" yaml:"poll_timeout_seconds"`
	MaxFileBytes       int64  `json:"max_file_bytes" yaml:"max_file_bytes"`
	Debug              bool   `json:"debug" yaml:"debug"`
}

// Webhook reports whether updates arrive over HTTP instead of long polling.
func (t TelegramConfig) Webhook() bool {
	return t.WebhookURL != ""
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type WorkerConfig struct {
	MinWorkers         int `json:"min_workers" yaml:"min_workers"`
	MaxWorkers         int `json:"max_workers" yaml:"max_workers"`
	QueueSize          int `json:"queue_size" yaml:"queue_size"`
	IdleTimeoutSeconds int `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

func (w WorkerConfig) IdleTimeout() time.Duration {
	return time.Duration(w.IdleTimeoutSeconds) * time.Second
}

type BatchConfig struct {
	QuietWindowMillis int `json:"quiet_window_ms" yaml:"quiet_window_ms"`
}

func (b BatchConfig) QuietWindow() time.Duration {
	return time.Duration(b.QuietWindowMillis) * time.Millisecond
}

type RenderConfig struct {
	DPI float64 `json:"dpi" yaml:"dpi"`
}

type JournalConfig struct {
	Driver               string `json:"driver" yaml:"driver"`
	RetentionHours       int    `json:"retention_hours" yaml:"retention_hours"`
	CleanIntervalMinutes int    `json:"clean_interval_minutes" yaml:"clean_interval_minutes"`
}

// Enabled reports whether operations are journaled.
func (j JournalConfig) Enabled() bool {
	return j.Driver != ""
}

func (j JournalConfig) Retention() time.Duration {
	return time.Duration(j.RetentionHours) * time.Hour
}

func (j JournalConfig) CleanInterval() time.Duration {
	return time.Duration(j.CleanIntervalMinutes) * time.Minute
}

type AdminConfig struct {
	APIToken string `json:"api_token" yaml:"api_token"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

const (
	defaultServerAddress = ":8080"
	defaultMaxFileBytes  = 20 << 20
	defaultPollTimeout   = 60
	defaultQueueSize     = 128
	defaultQuietWindowMs = 1500
	defaultDPI           = 150
	defaultRetention     = 24 * 7
	defaultCleanInterval = 60
)

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error: the service can run from the
// environment alone.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg, filepath.Dir(absPath))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PDFBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("PDFBOT_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("PDFBOT_WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("PDFBOT_ADMIN_TOKEN"); v != "" {
		cfg.Admin.APIToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.BasicConfig.ServerAddress = ":" + v
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config, baseDir string) {
	if cfg.BasicConfig.ServerAddress == "" {
		cfg.BasicConfig.ServerAddress = defaultServerAddress
	}
	if cfg.Telegram.MaxFileBytes <= 0 {
		cfg.Telegram.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.Telegram.PollTimeoutSeconds <= 0 {
		cfg.Telegram.PollTimeoutSeconds = defaultPollTimeout
	}
	if cfg.Worker.MinWorkers <= 0 {
		cfg.Worker.MinWorkers = 2
	}
	if cfg.Worker.MaxWorkers < cfg.Worker.MinWorkers {
		cfg.Worker.MaxWorkers = cfg.Worker.MinWorkers * 4
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = defaultQueueSize
	}
	if cfg.Batch.QuietWindowMillis <= 0 {
		cfg.Batch.QuietWindowMillis = defaultQuietWindowMs
	}
	if cfg.Render.DPI <= 0 {
		cfg.Render.DPI = defaultDPI
	}
	if cfg.Journal.RetentionHours <= 0 {
		cfg.Journal.RetentionHours = defaultRetention
	}
	if cfg.Journal.CleanIntervalMinutes <= 0 {
		cfg.Journal.CleanIntervalMinutes = defaultCleanInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	// relative sqlite files live next to the config file
	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && db.DSN != ":memory:" && !strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

func (cfg *Config) validate() error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token must be configured")
	}
	if cfg.Telegram.Webhook() && cfg.Telegram.WebhookSecret == "" {
		return fmt.Errorf("webhook_secret must be configured when webhook_url is set")
	}
	if cfg.Journal.Enabled() {
		if _, ok := cfg.Databases[cfg.Journal.Driver]; !ok {
			return fmt.Errorf("journal driver %s has no database config", cfg.Journal.Driver)
		}
	}
	return nil
}
