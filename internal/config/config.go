package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderAPI  = "api"
	ProviderXLSX = "xlsx"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Policy   PolicyConfig
	Sync     SyncConfig
	Provider ProviderConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port               int
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
}

type PolicyConfig struct {
	DefaultMaxDailyHours float64
}

type SyncConfig struct {
	LookbackDays       int
	ScheduleInterval   time.Duration
	AutoCreateInterval time.Duration
}

type ProviderConfig struct {
	Type         string
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	InboxDir     string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "timesheet"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:               appPort,
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Policy configuration
	maxDaily, err := strconv.ParseFloat(getEnv("POLICY_DEFAULT_MAX_DAILY_HOURS", "16"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid POLICY_DEFAULT_MAX_DAILY_HOURS: %w", err)
	}
	config.Policy = PolicyConfig{DefaultMaxDailyHours: maxDaily}

	// Sync configuration
	lookbackDays, err := strconv.Atoi(getEnv("SYNC_LOOKBACK_DAYS", "14"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOOKBACK_DAYS: %w", err)
	}
	scheduleInterval, err := time.ParseDuration(getEnv("SYNC_SCHEDULE_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SCHEDULE_INTERVAL: %w", err)
	}
	autoCreateInterval, err := time.ParseDuration(getEnv("AUTO_CREATE_INTERVAL", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_CREATE_INTERVAL: %w", err)
	}

	config.Sync = SyncConfig{
		LookbackDays:       lookbackDays,
		ScheduleInterval:   scheduleInterval,
		AutoCreateInterval: autoCreateInterval,
	}

	// Attendance provider configuration
	config.Provider = ProviderConfig{
		Type:         strings.ToLower(getEnv("PROVIDER_TYPE", ProviderAPI)),
		BaseURL:      getEnv("PROVIDER_BASE_URL", ""),
		TokenURL:     getEnv("PROVIDER_TOKEN_URL", ""),
		ClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
		ClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		Scopes:       getEnvSlice("PROVIDER_SCOPES"),
		InboxDir:     getEnv("PROVIDER_INBOX_DIR", "./inbox"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return errors.New("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if c.Policy.DefaultMaxDailyHours <= 0 || c.Policy.DefaultMaxDailyHours > 24 {
		return errors.New("POLICY_DEFAULT_MAX_DAILY_HOURS must be between 0 and 24")
	}
	if c.Sync.LookbackDays < 0 {
		return errors.New("SYNC_LOOKBACK_DAYS must not be negative")
	}

	switch c.Provider.Type {
	case ProviderAPI:
		if c.Provider.BaseURL == "" {
			return errors.New("PROVIDER_BASE_URL is required")
		}
		if c.Provider.TokenURL == "" {
			return errors.New("PROVIDER_TOKEN_URL is required")
		}
		if c.Provider.ClientID == "" {
			return errors.New("PROVIDER_CLIENT_ID is required")
		}
		if c.Provider.ClientSecret == "" {
			return errors.New("PROVIDER_CLIENT_SECRET is required")
		}
	case ProviderXLSX:
		if c.Provider.InboxDir == "" {
			return errors.New("PROVIDER_INBOX_DIR is required")
		}
	default:
		return fmt.Errorf("PROVIDER_TYPE must be %q or %q", ProviderAPI, ProviderXLSX)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
