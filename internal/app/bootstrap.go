package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"neo-guardian/internal/apikey"
	"neo-guardian/internal/audit"
	"neo-guardian/internal/auth"
	"neo-guardian/internal/config"
	"neo-guardian/internal/db"
	"neo-guardian/internal/maintenance"
	"neo-guardian/internal/neo"
	"neo-guardian/internal/observability"
	"neo-guardian/internal/security"
	"neo-guardian/internal/simulator"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires configuration, storage, the auth core and the HTTP surface
// into a runnable handler. It is shared by the server binary and the
// serverless entrypoint.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var redisClient *redis.Client
	var revoked auth.RevocationStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = redisClient.Close()
			_ = database.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		revoked = auth.NewRedisRevocationStore(redisClient)
	} else {
		logger.Info("revocation_store_memory", map[string]any{
			"note": "REDIS_URL not set, revocations will not survive restarts",
		})
		revoked = auth.NewMemoryRevocationStore()
	}

	encryptionKey := cfg.Security.EncryptionKey
	if encryptionKey == "" {
		encryptionKey, err = security.GenerateEncryptionKey()
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("generate encryption key: %w", err)
		}
		logger.Error("encryption_key_generated", map[string]any{
			"note": "ENCRYPTION_KEY not set, stored emails will be unreadable after restart",
		})
	}
	encryptor, err := security.NewEncryptor(encryptionKey)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init encryptor: %w", err)
	}

	codec, err := auth.NewCodec(cfg.Security.JWTSecret, cfg.Security.JWTAlgorithm)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	repo := auth.NewRepository(database)
	recorder := audit.NewSQLRecorder(database, logger)
	hasher := security.NewPasswordHasher(security.PasswordPolicy{
		MinLength:           cfg.Security.MinPasswordLength,
		RequireUppercase:    cfg.Security.RequireUppercase,
		RequireLowercase:    cfg.Security.RequireLowercase,
		RequireDigits:       cfg.Security.RequireDigits,
		RequireSpecialChars: cfg.Security.RequireSpecialChars,
	})
	tokens := auth.NewTokenManager(codec, revoked, cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL)
	lockout := auth.NewLockoutPolicy(cfg.Security.MaxLoginAttempts, cfg.Security.LockoutDuration)

	authService := auth.NewService(repo, hasher, encryptor, tokens, lockout, recorder)
	guard := auth.NewGuard(tokens, repo, lockout, recorder, logger)
	authHandler := auth.NewHandler(authService)
	apiKeyHandler := apikey.NewHandler(repo, recorder)

	neoClient := neo.NewClient(cfg.NASA.APIKey, cfg.NASA.BaseURL, cfg.NASA.Timeout)
	neoHandler := neo.NewHandler(neoClient)
	simulatorHandler := simulator.NewHandler()

	cleanupHandler := maintenance.NewCleanupHandler(
		repo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("AUDIT_LOG_RETENTION_DAYS", 90),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	if err := authService.BootstrapAdmin(
		context.Background(),
		os.Getenv("ADMIN_USERNAME"),
		os.Getenv("ADMIN_PASSWORD"),
		os.Getenv("ADMIN_EMAIL"),
	); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	authed := guard.Authenticate
	readScoped := func(h http.Handler) http.Handler {
		return authed(guard.ScopedAccess("read")(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("POST /auth/change-password", authed(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /auth/me", authed(http.HandlerFunc(authHandler.Me)))

	mux.Handle("POST /apikeys", authed(http.HandlerFunc(apiKeyHandler.Create)))
	mux.Handle("GET /apikeys", authed(http.HandlerFunc(apiKeyHandler.List)))
	mux.Handle("DELETE /apikeys/{id}", authed(http.HandlerFunc(apiKeyHandler.Revoke)))
	mux.Handle("POST /apikeys/{id}/regenerate", authed(http.HandlerFunc(apiKeyHandler.Regenerate)))

	mux.Handle("GET /neo/feed", readScoped(http.HandlerFunc(neoHandler.Feed)))
	mux.Handle("GET /neo/today", readScoped(http.HandlerFunc(neoHandler.Today)))
	mux.Handle("GET /neo/hazardous", readScoped(http.HandlerFunc(neoHandler.Hazardous)))
	mux.Handle("GET /neo/analysis/closest", readScoped(http.HandlerFunc(neoHandler.Closest)))
	mux.Handle("GET /neo/analysis/largest", readScoped(http.HandlerFunc(neoHandler.Largest)))
	mux.Handle("GET /neo/{id}", readScoped(http.HandlerFunc(neoHandler.Lookup)))

	mux.Handle("POST /simulator/impact", readScoped(http.HandlerFunc(simulatorHandler.Simulate)))
	mux.Handle("GET /simulator/historical", readScoped(http.HandlerFunc(simulatorHandler.Historical)))
	mux.Handle("GET /simulator/historical/{name}", readScoped(http.HandlerFunc(simulatorHandler.HistoricalByName)))
	mux.Handle("GET /simulator/historical/{name}/simulate", readScoped(http.HandlerFunc(simulatorHandler.SimulateHistorical)))
	mux.Handle("GET /simulator/compare", readScoped(http.HandlerFunc(simulatorHandler.Compare)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			audit.Middleware(mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
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

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
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
