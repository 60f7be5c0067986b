// Package config provides production configuration management with validation and environment variable support
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds the complete application configuration
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Security  SecurityConfig  `json:"security"`
	JWT       JWTConfig       `json:"jwt"`
	SMS       SMSConfig       `json:"sms"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Email     EmailConfig     `json:"email"`
	Upload    UploadConfig    `json:"upload"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Cache     CacheConfig     `json:"cache"`
	Admin     AdminConfig     `json:"admin"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

// SecurityConfig holds security and CORS settings
type SecurityConfig struct {
	BcryptCost       int           `json:"bcrypt_cost"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	AllowedMethods   []string      `json:"allowed_methods"`
	AllowedHeaders   []string      `json:"allowed_headers"`
	AllowCredentials bool          `json:"allow_credentials"`
	CORSMaxAge       int           `json:"cors_max_age"`
	AuthRateLimit    int           `json:"auth_rate_limit"`
	GlobalRateLimit  int           `json:"global_rate_limit"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
}

// JWTConfig holds token signing settings
type JWTConfig struct {
	SecretKey      string        `json:"-"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// SMSConfig holds SMS gateway settings
type SMSConfig struct {
	Provider     string        `json:"provider"` // "mock" or "gateway"
	APIURL       string        `json:"api_url"`
	APIKey       string        `json:"-"`
	SourceNumber string        `json:"source_number"`
	RetryCount   int           `json:"retry_count"`
	Timeout      time.Duration `json:"timeout"`
}

// WhatsAppConfig holds WhatsApp Business API settings
type WhatsAppConfig struct {
	Provider string        `json:"provider"` // "mock" or "api"
	APIURL   string        `json:"api_url"`
	APIToken string        `json:"-"`
	Timeout  time.Duration `json:"timeout"`
}

// EmailConfig holds email gateway settings
type EmailConfig struct {
	Provider    string `json:"provider"` // "mock" or "gateway"
	APIURL      string `json:"api_url"`
	APIKey      string `json:"-"`
	FromAddress string `json:"from_address"`
}

// UploadConfig holds file upload storage settings
type UploadConfig struct {
	Dir            string `json:"dir"`
	MaxReceiptSize int64  `json:"max_receipt_size"`
}

// SchedulerConfig holds message delivery scheduler settings
type SchedulerConfig struct {
	SweepInterval time.Duration `json:"sweep_interval"`
	SweepBatch    int           `json:"sweep_batch"`
	LogFile       string        `json:"log_file"`
	LogMaxSizeMB  int           `json:"log_max_size_mb"`
	LogMaxBackups int           `json:"log_max_backups"`
	LogMaxAgeDays int           `json:"log_max_age_days"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	AccessLogs bool   `json:"access_logs"`
}

// MetricsConfig holds prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// CacheConfig holds redis cache settings
type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// AdminConfig holds the seed operator account created at startup
type AdminConfig struct {
	Email    string `json:"email"`
	Password string `json:"-"`
	FullName string `json:"full_name"`
}

// LoadProductionConfig loads configuration from environment variables,
// reading a .env file first when one is present
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "clinio"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 16*1024*1024), // receipts can be large
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvInt("BCRYPT_COST", 12),
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://clinio.app", "https://api.clinio.app"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:    getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 1*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "clinio-crm-api"),
			Audience:       getEnvString("JWT_AUDIENCE", "clinio-operators"),
		},
		SMS: SMSConfig{
			Provider:     getEnvString("SMS_PROVIDER", "mock"),
			APIURL:       getEnvString("SMS_API_URL", ""),
			APIKey:       getEnvString("SMS_API_KEY", ""),
			SourceNumber: getEnvString("SMS_SOURCE_NUMBER", ""),
			RetryCount:   getEnvInt("SMS_RETRY_COUNT", 2),
			Timeout:      getEnvDuration("SMS_TIMEOUT", 30*time.Second),
		},
		WhatsApp: WhatsAppConfig{
			Provider: getEnvString("WHATSAPP_PROVIDER", "mock"),
			APIURL:   getEnvString("WHATSAPP_API_URL", ""),
			APIToken: getEnvString("WHATSAPP_API_TOKEN", ""),
			Timeout:  getEnvDuration("WHATSAPP_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Provider:    getEnvString("EMAIL_PROVIDER", "mock"),
			APIURL:      getEnvString("EMAIL_API_URL", ""),
			APIKey:      getEnvString("EMAIL_API_KEY", ""),
			FromAddress: getEnvString("EMAIL_FROM_ADDRESS", "billing@clinio.app"),
		},
		Upload: UploadConfig{
			Dir:            getEnvString("UPLOAD_DIR", "/var/lib/clinio/uploads"),
			MaxReceiptSize: int64(getEnvInt("UPLOAD_MAX_RECEIPT_SIZE", 10*1024*1024)),
		},
		Scheduler: SchedulerConfig{
			SweepInterval: getEnvDuration("SCHEDULER_SWEEP_INTERVAL", 1*time.Minute),
			SweepBatch:    getEnvInt("SCHEDULER_SWEEP_BATCH", 100),
			LogFile:       getEnvString("SCHEDULER_LOG_FILE", "/var/log/clinio/scheduler.log"),
			LogMaxSizeMB:  getEnvInt("SCHEDULER_LOG_MAX_SIZE_MB", 50),
			LogMaxBackups: getEnvInt("SCHEDULER_LOG_MAX_BACKUPS", 5),
			LogMaxAgeDays: getEnvInt("SCHEDULER_LOG_MAX_AGE_DAYS", 30),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			AccessLogs: getEnvBool("LOG_ACCESS_LOGS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "clinio:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Minute),
		},
		Admin: AdminConfig{
			Email:    getEnvString("ADMIN_EMAIL", ""),
			Password: getEnvString("ADMIN_PASSWORD", ""),
			FullName: getEnvString("ADMIN_FULL_NAME", "Clinic Operator"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	if cfg.SMS.Provider != "mock" {
		if cfg.SMS.APIURL == "" {
			errors = append(errors, "SMS_API_URL is required for the gateway SMS provider")
		}
		if cfg.SMS.APIKey == "" {
			errors = append(errors, "SMS_API_KEY is required for the gateway SMS provider")
		}
		if cfg.SMS.SourceNumber == "" {
			errors = append(errors, "SMS_SOURCE_NUMBER is required for the gateway SMS provider")
		}
	}

	if cfg.WhatsApp.Provider != "mock" {
		if cfg.WhatsApp.APIURL == "" {
			errors = append(errors, "WHATSAPP_API_URL is required for the WhatsApp API provider")
		}
		if cfg.WhatsApp.APIToken == "" {
			errors = append(errors, "WHATSAPP_API_TOKEN is required for the WhatsApp API provider")
		}
	}

	if cfg.Email.Provider != "mock" {
		if cfg.Email.APIURL == "" {
			errors = append(errors, "EMAIL_API_URL is required for the gateway email provider")
		}
		if cfg.Email.APIKey == "" {
			errors = append(errors, "EMAIL_API_KEY is required for the gateway email provider")
		}
		if cfg.Email.FromAddress == "" {
			errors = append(errors, "EMAIL_FROM_ADDRESS is required for the gateway email provider")
		}
	}

	if cfg.Upload.Dir == "" {
		errors = append(errors, "UPLOAD_DIR is required")
	}

	if cfg.Scheduler.SweepInterval <= 0 {
		errors = append(errors, "SCHEDULER_SWEEP_INTERVAL must be positive")
	}
	if cfg.Scheduler.SweepBatch <= 0 {
		errors = append(errors, "SCHEDULER_SWEEP_BATCH must be positive")
	}

	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
