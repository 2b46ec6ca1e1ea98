package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Intake       IntakeConfig
	Lifecycle    LifecycleConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. File output is enabled when
// FilePath is set and is rotated by size.
type LoggerConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AuthConfig defines how sessions issued by the auth backend are verified.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	SessionCookie         string
	LoginPath             string
}

// IntakeConfig tunes the ticket intake form.
type IntakeConfig struct {
	SubmitDelayMS           int
	IdempotencyTTLSeconds   int
	MaxTitleLength          int
	MaxDescriptionLength    int
	DescriptionPreviewRunes int
}

// LifecycleConfig tunes automatic ticket transitions.
type LifecycleConfig struct {
	AutoCloseAfterHours      int
	AutoCloseIntervalSeconds int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			SessionCookie:         getEnv("AUTH_SESSION_COOKIE", "session"),
			LoginPath:             getEnv("AUTH_LOGIN_PATH", "/"),
		},
		Intake: IntakeConfig{
			SubmitDelayMS:           getEnvAsInt("INTAKE_SUBMIT_DELAY_MS", 1000),
			IdempotencyTTLSeconds:   getEnvAsInt("INTAKE_IDEMPOTENCY_TTL_SECONDS", 86400),
			MaxTitleLength:          getEnvAsInt("INTAKE_MAX_TITLE_LENGTH", 200),
			MaxDescriptionLength:    getEnvAsInt("INTAKE_MAX_DESCRIPTION_LENGTH", 5000),
			DescriptionPreviewRunes: getEnvAsInt("INTAKE_DESCRIPTION_PREVIEW_RUNES", 160),
		},
		Lifecycle: LifecycleConfig{
			AutoCloseAfterHours:      getEnvAsInt("TICKET_AUTO_CLOSE_AFTER_HOURS", 72),
			AutoCloseIntervalSeconds: getEnvAsInt("TICKET_AUTO_CLOSE_INTERVAL_SECONDS", 300),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "dev-secret" {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	if c.Intake.SubmitDelayMS < 0 {
		return fmt.Errorf("invalid INTAKE_SUBMIT_DELAY_MS: %d", c.Intake.SubmitDelayMS)
	}
	if c.Intake.MaxTitleLength <= 0 || c.Intake.MaxDescriptionLength <= 0 {
		return errors.New("intake field limits must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of development tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// SubmitDelay returns the simulated submission latency.
func (i IntakeConfig) SubmitDelay() time.Duration {
	return time.Duration(i.SubmitDelayMS) * time.Millisecond
}

// IdempotencyTTL returns how long a creation request token is remembered.
func (i IntakeConfig) IdempotencyTTL() time.Duration {
	return time.Duration(i.IdempotencyTTLSeconds) * time.Second
}

// AutoCloseAfter returns how long a resolved ticket waits before closing. Zero disables.
func (l LifecycleConfig) AutoCloseAfter() time.Duration {
	if l.AutoCloseAfterHours <= 0 {
		return 0
	}
	return time.Duration(l.AutoCloseAfterHours) * time.Hour
}

// AutoCloseInterval returns the sweep period of the auto-close worker.
func (l LifecycleConfig) AutoCloseInterval() time.Duration {
	if l.AutoCloseIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(l.AutoCloseIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
