package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Security groups every knob the auth core consumes. The values are injected
// into the services at construction time; nothing reads the environment after
// Load returns.
type Security struct {
	JWTSecret    string
	JWTAlgorithm string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	MinPasswordLength   int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireDigits       bool
	RequireSpecialChars bool

	EncryptionKey string
}

type NASA struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	RedisURL    string
	SentryDSN   string

	Security Security
	NASA     NASA

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration
}

const (
	minAccessTTL  = 5 * time.Minute
	maxAccessTTL  = 60 * time.Minute
	minRefreshTTL = 24 * time.Hour
	maxRefreshTTL = 30 * 24 * time.Hour
)

func Load() (Config, error) {
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("missing required env: JWT_SECRET")
	}
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, fmt.Errorf("missing required env: DATABASE_URL")
	}

	cfg := Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("APP_ENV", "development"),
		DatabaseURL: databaseURL,
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		Security: Security{
			JWTSecret:           jwtSecret,
			JWTAlgorithm:        envOrDefault("JWT_ALGORITHM", "HS256"),
			AccessTokenTTL:      clampDuration(envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 30), minAccessTTL, maxAccessTTL),
			RefreshTokenTTL:     clampDuration(envDaysOrDefault("REFRESH_TOKEN_TTL_DAYS", 7), minRefreshTTL, maxRefreshTTL),
			MaxLoginAttempts:    envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
			LockoutDuration:     envMinutesOrDefault("LOGIN_LOCK_MINUTES", 30),
			MinPasswordLength:   envIntOrDefault("MIN_PASSWORD_LENGTH", 12),
			RequireUppercase:    envBoolOrDefault("PASSWORD_REQUIRE_UPPERCASE", true),
			RequireLowercase:    envBoolOrDefault("PASSWORD_REQUIRE_LOWERCASE", true),
			RequireDigits:       envBoolOrDefault("PASSWORD_REQUIRE_DIGITS", true),
			RequireSpecialChars: envBoolOrDefault("PASSWORD_REQUIRE_SPECIAL", true),
			EncryptionKey:       strings.TrimSpace(os.Getenv("ENCRYPTION_KEY")),
		},
		NASA: NASA{
			APIKey:  envOrDefault("NASA_API_KEY", "DEMO_KEY"),
			BaseURL: envOrDefault("NASA_BASE_URL", "https://api.nasa.gov"),
			Timeout: envSecondsOrDefault("NASA_API_TIMEOUT_SECONDS", 30),
		},
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	}

	return cfg, nil
}

func clampDuration(value, min, max time.Duration) time.Duration {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}
