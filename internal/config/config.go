package config

import (
	"errors"
	"fmt"
	"os"

	"shefixes/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Backup      BackupConfig      `yaml:"backup"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	API         APIConfig         `yaml:"api"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Google      GoogleConfig      `yaml:"google"`
	Exports     ExportConfig      `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// MarketplaceConfig holds the booking and scheduling policy knobs.
type MarketplaceConfig struct {
	SlotStartClock    string `yaml:"slot_start_clock"`
	SlotEndClock      string `yaml:"slot_end_clock"`
	SlotDurationMin   int    `yaml:"slot_duration_min"`
	MaxGenerateDays   int    `yaml:"max_generate_days"`
	MaxBookingDays    int    `yaml:"max_booking_days"`
	RateLimitRequests int    `yaml:"rate_limit_requests"`
	RateLimitWindow   int    `yaml:"rate_limit_window"`
	DraftTTLSeconds   int    `yaml:"draft_ttl_seconds"`
}

type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	OpsChatID int64  `yaml:"ops_chat_id"`
	Debug     bool   `yaml:"debug"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.Marketplace.MaxGenerateDays < 0 || c.Marketplace.MaxBookingDays < 0 {
		return errors.New("marketplace day limits must not be negative")
	}
	if _, err := models.ParseClock(c.Marketplace.SlotStartClock); err != nil {
		return fmt.Errorf("invalid slot_start_clock: %w", err)
	}
	end, err := models.ParseClock(c.Marketplace.SlotEndClock)
	if err != nil {
		return fmt.Errorf("invalid slot_end_clock: %w", err)
	}
	start, _ := models.ParseClock(c.Marketplace.SlotStartClock)
	if end <= start {
		return errors.New("slot_end_clock must be after slot_start_clock")
	}
	if c.Marketplace.SlotDurationMin <= 0 {
		return errors.New("slot_duration_min must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Marketplace.SlotStartClock == "" {
		c.Marketplace.SlotStartClock = "09:00"
	}
	if c.Marketplace.SlotEndClock == "" {
		c.Marketplace.SlotEndClock = "17:00"
	}
	if c.Marketplace.SlotDurationMin == 0 {
		c.Marketplace.SlotDurationMin = 60
	}
	if c.Marketplace.MaxGenerateDays == 0 {
		c.Marketplace.MaxGenerateDays = models.DefaultMaxGenerateDays
	}
	if c.Marketplace.MaxBookingDays == 0 {
		c.Marketplace.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Marketplace.RateLimitRequests == 0 {
		c.Marketplace.RateLimitRequests = models.RateLimitRequests
	}
	if c.Marketplace.RateLimitWindow == 0 {
		c.Marketplace.RateLimitWindow = models.RateLimitWindow
	}
	if c.Marketplace.DraftTTLSeconds == 0 {
		c.Marketplace.DraftTTLSeconds = models.DefaultStateTTL
	}
}
