package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Log           LogConfig
	Uploads       UploadsConfig
	Registration  RegistrationConfig
	Review        ReviewConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
	Dashboard     DashboardConfig
	Alerts        AlertsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig tunes the login lockout. MaxLoginAttempts is the fallback when
// the max_login_attempts configuration entry is missing.
type AuthConfig struct {
	MaxLoginAttempts int
	LockoutWindow    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig controls document storage and intake limits.
type UploadsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

// RegistrationConfig governs the public multi-step registration drafts.
type RegistrationConfig struct {
	DraftTTL            time.Duration
	DefaultEmailDomains []string
}

// ReviewConfig governs verifier selections and bulk approval.
type ReviewConfig struct {
	SelectionTTL time.Duration
	BulkMax      int
}

// NotificationsConfig sizes the notification dispatch queue.
type NotificationsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// RateLimitConfig defines per-client limits for public endpoints.
type RateLimitConfig struct {
	Enabled       bool
	PublicRPS     float64
	PublicBurst   int
	AuthRPS       float64
	AuthBurst     int
	ClientIdleTTL time.Duration
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL       time.Duration
	ExpiringWithin int
}

// AlertsConfig controls the background expiry scan.
type AlertsConfig struct {
	Enabled      bool
	ScanInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 30*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		MaxLoginAttempts: positiveInt(v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"), 5),
		LockoutWindow:    parseDuration(v.GetString("AUTH_LOCKOUT_WINDOW"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxUpload,
	}

	cfg.Registration = RegistrationConfig{
		DraftTTL:            parseDuration(v.GetString("REGISTRATION_DRAFT_TTL"), time.Hour),
		DefaultEmailDomains: splitAndTrim(v.GetString("REGISTRATION_EMAIL_DOMAINS")),
	}

	cfg.Review = ReviewConfig{
		SelectionTTL: parseDuration(v.GetString("REVIEW_SELECTION_TTL"), 8*time.Hour),
		BulkMax:      positiveInt(v.GetInt("REVIEW_BULK_MAX"), 200),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    positiveInt(v.GetInt("NOTIFICATIONS_WORKERS"), 2),
		BufferSize: positiveInt(v.GetInt("NOTIFICATIONS_BUFFER"), 256),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
		PublicRPS:     v.GetFloat64("RATE_LIMIT_PUBLIC_RPS"),
		PublicBurst:   positiveInt(v.GetInt("RATE_LIMIT_PUBLIC_BURST"), 20),
		AuthRPS:       v.GetFloat64("RATE_LIMIT_AUTH_RPS"),
		AuthBurst:     positiveInt(v.GetInt("RATE_LIMIT_AUTH_BURST"), 5),
		ClientIdleTTL: parseDuration(v.GetString("RATE_LIMIT_CLIENT_TTL"), 10*time.Minute),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL:       parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		ExpiringWithin: positiveInt(v.GetInt("DASHBOARD_EXPIRING_DAYS"), 30),
	}

	cfg.Alerts = AlertsConfig{
		Enabled:      v.GetBool("ALERTS_ENABLED"),
		ScanInterval: parseDuration(v.GetString("ALERTS_SCAN_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "supermen")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "30m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("AUTH_MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("AUTH_LOCKOUT_WINDOW", "15m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "15m")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("REGISTRATION_DRAFT_TTL", "1h")
	v.SetDefault("REGISTRATION_EMAIL_DOMAINS", ".go.id")

	v.SetDefault("REVIEW_SELECTION_TTL", "8h")
	v.SetDefault("REVIEW_BULK_MAX", 200)

	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER", 256)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "2s")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_PUBLIC_RPS", 100.0/60.0)
	v.SetDefault("RATE_LIMIT_PUBLIC_BURST", 20)
	v.SetDefault("RATE_LIMIT_AUTH_RPS", 0.2)
	v.SetDefault("RATE_LIMIT_AUTH_BURST", 5)
	v.SetDefault("RATE_LIMIT_CLIENT_TTL", "10m")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_EXPIRING_DAYS", 30)

	v.SetDefault("ALERTS_ENABLED", true)
	v.SetDefault("ALERTS_SCAN_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// isMissingFile reports a missing .env; viper surfaces it as a path error when SetConfigFile is used.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
