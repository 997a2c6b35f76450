package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	AppMode      string
	Port         string
	Database     DatabaseConfig
	JWT          JWTConfig
	Log          LogConfig
	Redis        RedisConfig
	Email        EmailConfig
	Commission   CommissionConfig
	Voucher      VoucherConfig
	Notification NotificationConfig
	Cron         CronConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RedisConfig holds cache configuration; an empty Addr disables caching
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Enabled        bool
	From           string
	Host           string
	Port           int
	Username       string
	Password       string
	UseTLS         bool
	TimeoutSeconds int
}

// CommissionConfig holds the commission policy. Values are fixed for the
// lifetime of the process; a restart picks up changes.
type CommissionConfig struct {
	DefaultSaleRate       decimal.Decimal
	RentalMonths          decimal.Decimal
	MinCommission         decimal.Decimal
	MaxCommission         decimal.Decimal
	CapRentals            bool
	RequiredDocuments     int
	RateSumWarnLow        decimal.Decimal
	RateSumWarnHigh       decimal.Decimal
	DefaultSelfRate       decimal.Decimal
	DefaultDirectRate     decimal.Decimal
	DefaultIndirectRate   decimal.Decimal
	TransientRetryAttempt uint
}

// VoucherConfig holds voucher generation and delivery settings
type VoucherConfig struct {
	Prefix       string
	AutoGenerate bool
	AutoEmail    bool
	Template     string
	CompanyName  string
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	TTL          time.Duration
	EmailOnEvent bool
}

// CronConfig holds background job schedules
type CronConfig struct {
	Enabled         bool
	PurgeSpec       string
	EmailRetrySpec  string
	EmailRetryBatch int
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	commission, err := loadCommissionConfig()
	if err != nil {
		return nil, err
	}

	voucher := loadVoucherConfig()
	switch voucher.Template {
	case "plain", "detailed", "receipt":
	default:
		return nil, fmt.Errorf("invalid VOUCHER_TEMPLATE: '%s' (must be plain, detailed or receipt)", voucher.Template)
	}

	config := &Config{
		AppMode:      appMode,
		Port:         getEnv("PORT", "3000"),
		Database:     loadDatabaseConfig(appMode),
		JWT:          loadJWTConfig(appMode),
		Log:          loadLogConfig(appMode),
		Redis:        loadRedisConfig(),
		Email:        loadEmailConfig(),
		Commission:   commission,
		Voucher:      voucher,
		Notification: loadNotificationConfig(),
		Cron:         loadCronConfig(),
	}

	AppConfig = config
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "estate_commission"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 60),
	}
}

func loadLogConfig(mode string) LogConfig {
	format := "text"
	if mode == "prod" {
		format = "json"
	}
	return LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", format),
		FilePath:   getEnv("LOG_FILE", ""),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       getEnv("REDIS_ADDR", ""),
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         getEnvInt("REDIS_DB", 0),
		SummaryTTL: time.Duration(getEnvInt("SUMMARY_CACHE_SECONDS", 300)) * time.Second,
	}
}

func loadEmailConfig() EmailConfig {
	enabled, _ := strconv.ParseBool(getEnv("SMTP_ENABLED", "false"))
	useTLS, _ := strconv.ParseBool(getEnv("SMTP_TLS", "false"))
	return EmailConfig{
		Enabled:        enabled,
		From:           getEnv("SMTP_FROM", "no-reply@estate.local"),
		Host:           getEnv("SMTP_HOST", "localhost"),
		Port:           getEnvInt("SMTP_PORT", 587),
		Username:       getEnv("SMTP_USER", ""),
		Password:       getEnv("SMTP_PASS", ""),
		UseTLS:         useTLS,
		TimeoutSeconds: getEnvInt("SMTP_TIMEOUT_SECONDS", 30),
	}
}

func loadCommissionConfig() (CommissionConfig, error) {
	cfg := CommissionConfig{}
	fields := []struct {
		key  string
		def  string
		dest *decimal.Decimal
	}{
		{"COMMISSION_DEFAULT_SALE_RATE", "3", &cfg.DefaultSaleRate},
		{"COMMISSION_RENTAL_MONTHS", "1", &cfg.RentalMonths},
		{"COMMISSION_MIN", "1000", &cfg.MinCommission},
		{"COMMISSION_MAX", "50000", &cfg.MaxCommission},
		{"COMMISSION_RATE_SUM_WARN_LOW", "80", &cfg.RateSumWarnLow},
		{"COMMISSION_RATE_SUM_WARN_HIGH", "100", &cfg.RateSumWarnHigh},
		{"AGENT_DEFAULT_SELF_RATE", "95", &cfg.DefaultSelfRate},
		{"AGENT_DEFAULT_DIRECT_RATE", "5", &cfg.DefaultDirectRate},
		{"AGENT_DEFAULT_INDIRECT_RATE", "0", &cfg.DefaultIndirectRate},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(getEnv(f.key, f.def))
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dest = v
	}
	if cfg.MinCommission.GreaterThan(cfg.MaxCommission) {
		return cfg, fmt.Errorf("COMMISSION_MIN must not exceed COMMISSION_MAX")
	}

	cfg.CapRentals, _ = strconv.ParseBool(getEnv("COMMISSION_CAP_RENTALS", "true"))
	cfg.RequiredDocuments = getEnvInt("REQUIRED_DOCUMENTS", 3)
	cfg.TransientRetryAttempt = uint(getEnvInt("STORAGE_RETRY_ATTEMPTS", 3))
	return cfg, nil
}

func loadVoucherConfig() VoucherConfig {
	autoGen, _ := strconv.ParseBool(getEnv("VOUCHER_AUTO_GENERATE", "true"))
	autoEmail, _ := strconv.ParseBool(getEnv("VOUCHER_AUTO_EMAIL", "true"))
	return VoucherConfig{
		Prefix:       getEnv("VOUCHER_PREFIX", "PV"),
		AutoGenerate: autoGen,
		AutoEmail:    autoEmail,
		Template:     getEnv("VOUCHER_TEMPLATE", "detailed"),
		CompanyName:  getEnv("COMPANY_NAME", "Estate Commission"),
	}
}

func loadNotificationConfig() NotificationConfig {
	email, _ := strconv.ParseBool(getEnv("NOTIFY_EMAIL", "false"))
	return NotificationConfig{
		TTL:          time.Duration(getEnvInt("NOTIFICATION_TTL_DAYS", 7)) * 24 * time.Hour,
		EmailOnEvent: email,
	}
}

func loadCronConfig() CronConfig {
	enabled, _ := strconv.ParseBool(getEnv("CRON_ENABLED", "true"))
	return CronConfig{
		Enabled:         enabled,
		PurgeSpec:       getEnv("CRON_PURGE_SPEC", "@hourly"),
		EmailRetrySpec:  getEnv("CRON_EMAIL_RETRY_SPEC", "@every 15m"),
		EmailRetryBatch: getEnvInt("CRON_EMAIL_RETRY_BATCH", 50),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://agents.estate.local"
	}
	return origins
}

// DefaultCommissionConfig returns the built-in commission policy
func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		DefaultSaleRate:       decimal.NewFromInt(3),
		RentalMonths:          decimal.NewFromInt(1),
		MinCommission:         decimal.NewFromInt(1000),
		MaxCommission:         decimal.NewFromInt(50000),
		CapRentals:            true,
		RequiredDocuments:     3,
		RateSumWarnLow:        decimal.NewFromInt(80),
		RateSumWarnHigh:       decimal.NewFromInt(100),
		DefaultSelfRate:       decimal.NewFromInt(95),
		DefaultDirectRate:     decimal.NewFromInt(5),
		DefaultIndirectRate:   decimal.Zero,
		TransientRetryAttempt: 3,
	}
}
