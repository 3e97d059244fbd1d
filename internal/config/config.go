package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"campusbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig          `yaml:"app"`
	Database   DatabaseConfig     `yaml:"database"`
	Redis      RedisConfig        `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	API        APIConfig          `yaml:"api"`
	Approvals  ApprovalsConfig    `yaml:"approvals"`
	SMTP       SMTPConfig         `yaml:"smtp"`
	Telegram   TelegramConfig     `yaml:"telegram"`
	Exports    ExportConfig       `yaml:"exports"`
	Backup     BackupConfig       `yaml:"backup"`
	Facilities []models.Facility  `yaml:"facilities"`
	Equipment  []models.Equipment `yaml:"equipment"`
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

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// APIAuthConfig describes the admin API key scheme. Auth is on whenever at
// least one key is configured; an empty key list leaves /api open.
type APIAuthConfig struct {
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

// ApprovalsConfig binds the system-level signatory accounts and the public
// link surface. Adviser and dean addresses travel with each booking; the
// president and director are institution-wide.
type ApprovalsConfig struct {
	BaseURL        string `yaml:"base_url"`
	PresidentEmail string `yaml:"president_email"`
	PresidentName  string `yaml:"president_name"`
	DirectorEmail  string `yaml:"director_email"`
	DirectorName   string `yaml:"director_name"`
	LinkRateLimit  int    `yaml:"link_rate_limit"`
	LinkRateWindow int    `yaml:"link_rate_window"` // seconds
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"` // Go duration, e.g. "24h"
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен, но если есть — подхватываем
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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

	if c.Approvals.BaseURL == "" {
		return errors.New("approvals base_url is required")
	}

	if c.Approvals.PresidentEmail != "" && !ValidEmail(c.Approvals.PresidentEmail) {
		return fmt.Errorf("invalid president_email: %q", c.Approvals.PresidentEmail)
	}
	if c.Approvals.DirectorEmail != "" && !ValidEmail(c.Approvals.DirectorEmail) {
		return fmt.Errorf("invalid director_email: %q", c.Approvals.DirectorEmail)
	}

	if err := ValidateFacilities(c.Facilities); err != nil {
		return err
	}
	return ValidateEquipment(c.Equipment)
}

func ValidateFacilities(facilities []models.Facility) error {
	ids := make(map[int64]bool)
	for _, f := range facilities {
		if f.ID == 0 {
			return fmt.Errorf("facility '%s' has invalid ID 0", f.Name)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate facility ID found: %d", f.ID)
		}
		ids[f.ID] = true
	}
	return nil
}

func ValidateEquipment(equipment []models.Equipment) error {
	ids := make(map[int64]bool)
	for _, e := range equipment {
		if e.ID == 0 {
			return fmt.Errorf("equipment '%s' has invalid ID 0", e.Name)
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate equipment ID found: %d", e.ID)
		}
		ids[e.ID] = true
	}
	return nil
}

// ValidEmail reports whether addr parses as a bare RFC 5322 address.
func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Approvals.LinkRateLimit == 0 {
		c.Approvals.LinkRateLimit = models.DefaultLinkRateLimit
	}
	if c.Approvals.LinkRateWindow == 0 {
		c.Approvals.LinkRateWindow = models.DefaultLinkRateWindow
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
