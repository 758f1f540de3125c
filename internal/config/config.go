package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BehindProxy    bool     // trust X-Forwarded-For / X-Real-IP headers
	AllowedOrigins []string // CORS origins allowed to send credentials
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	// GeneralRateLimit is the coarse per-IP request ceiling for routes not
	// covered by the strict login limiter.
	GeneralRateLimit int
}

// AuthConfig holds the security-policy knobs. Defaults match the documented
// policy: 24h sessions, 5-failure/15m lockout, 1h CSRF TTL, 15m session sweep.
type AuthConfig struct {
	BcryptCost             int
	SessionDuration        time.Duration
	LockoutThreshold       int
	LockoutWindow          time.Duration
	CSRFTokenTTL           time.Duration
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	SessionCleanupInterval time.Duration
	AttemptRetention       time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BehindProxy:    getEnvAsBool("BEHIND_PROXY", false),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),
			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", false),
			CookieSameSite: getEnv("COOKIE_SAMESITE", "strict"),

			GeneralRateLimit: getEnvAsInt("GENERAL_RATE_LIMIT", 120),
		},
		Auth: AuthConfig{
			BcryptCost:             getEnvAsInt("BCRYPT_COST", 12),
			SessionDuration:        getEnvAsDuration("SESSION_DURATION", 24*time.Hour),
			LockoutThreshold:       getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutWindow:          getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			CSRFTokenTTL:           getEnvAsDuration("CSRF_TOKEN_TTL", 1*time.Hour),
			RateLimitRequests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:        getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			SessionCleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),
			AttemptRetention:       getEnvAsDuration("ATTEMPT_RETENTION", 30*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.BcryptCost < 10 || cfg.Auth.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 10 and 31 (got %d)", cfg.Auth.BcryptCost)
	}

	if cfg.Auth.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1 (got %d)", cfg.Auth.LockoutThreshold)
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
