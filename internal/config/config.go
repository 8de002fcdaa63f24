// Package config loads and validates the server's environment configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting consumed at boot. Read-only
// after LoadConfig returns; never mutated.
type Config struct {
	// Server
	ServerPort      int
	MaxClients      int
	ThreadPoolSize  int
	IdleTimeout     time.Duration
	TurnTimeLimit   time.Duration
	AFKMaxTimeouts  int
	ReconnectWindow time.Duration

	// Database
	DBType     string // "sqlite" or "postgres"
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBPoolSize int

	// Local auth
	JWTSecret          string // loaded from JWT_SECRET, optional; password hashing does not read it
	SessionTimeout     time.Duration
	PasswordSaltRounds int

	// JWT / OIDC
	JWKSURL            string
	JWTIssuer          string
	JWTAudiences       []string
	JWTCacheTTL        time.Duration
	JWTRefreshInterval time.Duration
	JWTGracePeriod     time.Duration

	// Version gate
	ServerVersion        string
	BuildDate            string
	GitCommit            string
	Branch               string
	IsProduction         bool
	Features             []string
	MinClientVersion     string
	DownloadURL          string
	ForceUpdate          bool
	GracePeriodHours     int

	// Logging / debug
	LogLevel       string
	LogDirectory   string
	DebugMode      bool
	EnableSQLLog   bool

	// Redis (optional — session cache + cross-instance broadcast bus)
	RedisEnabled bool
	RedisAddr    string
	RedisPassword string

	// Rate limiting
	RateLimitConnPerIP  string
	RateLimitCmdsPerSession string

	// Admin HTTP sidecar
	MetricsPort int

	// Tracing (optional)
	OTelCollectorAddr string
}

// LoadConfig reads every variable from the process environment (after
// optionally loading a .env file for local development) and returns a
// validated Config, or an aggregated error describing every problem found.
func LoadConfig() (*Config, error) {
	// .env is best-effort; a missing file is not fatal, a malformed one is
	// only logged by godotenv itself, never by us.
	_ = godotenv.Load()

	var errs []string
	cfg := &Config{}

	cfg.ServerPort = envInt("SERVER_PORT", 7777, &errs)
	cfg.MaxClients = envInt("SERVER_MAX_CLIENTS", 500, &errs)
	cfg.ThreadPoolSize = envInt("SERVER_THREAD_POOL_SIZE", 16, &errs)
	cfg.IdleTimeout = envDurationMinutes("SESSION_IDLE_TIMEOUT_MINS", 30, &errs)
	cfg.TurnTimeLimit = envDurationSeconds("TURN_TIME_LIMIT_SECS", 30, &errs)
	cfg.AFKMaxTimeouts = envInt("AFK_MAX_TIMEOUTS", 3, &errs)
	cfg.ReconnectWindow = envDurationSeconds("RECONNECT_WINDOW_SECS", 60, &errs)

	cfg.DBType = envString("DB_TYPE", "sqlite")
	if cfg.DBType != "sqlite" && cfg.DBType != "postgres" {
		errs = append(errs, fmt.Sprintf("invalid DB_TYPE: must be 'sqlite' or 'postgres' (got %q)", cfg.DBType))
	}
	cfg.DBHost = envString("DB_HOST", "localhost")
	cfg.DBPort = envInt("DB_PORT", 5432, &errs)
	cfg.DBUser = envString("DB_USER", "blokus")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = envString("DB_NAME", "data/blokus.db")
	cfg.DBPoolSize = envInt("DB_POOL_SIZE", 10, &errs)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.SessionTimeout = envDurationHours("SESSION_TIMEOUT_HOURS", 24, &errs)
	cfg.PasswordSaltRounds = envInt("PASSWORD_SALT_ROUNDS", 1, &errs)

	cfg.JWKSURL = os.Getenv("JWKS_URL")
	cfg.JWTIssuer = os.Getenv("JWT_ISSUER")
	if aud := os.Getenv("JWT_AUDIENCES"); aud != "" {
		cfg.JWTAudiences = splitAndTrim(aud)
	}
	cfg.JWTCacheTTL = envDurationMinutes("JWT_CACHE_TTL_MINS", 10, &errs)
	cfg.JWTRefreshInterval = envDurationMinutes("JWT_REFRESH_INTERVAL_MINS", 5, &errs)
	cfg.JWTGracePeriod = envDurationSeconds("JWT_GRACE_PERIOD_SECS", 30, &errs)

	cfg.ServerVersion = envString("SERVER_VERSION", "1.0.0")
	cfg.BuildDate = envString("BUILD_DATE", "")
	cfg.GitCommit = envString("GIT_COMMIT", "")
	cfg.Branch = envString("BRANCH", "")
	cfg.IsProduction = envBool("IS_PRODUCTION", false)
	if feats := os.Getenv("FEATURES"); feats != "" {
		cfg.Features = splitAndTrim(feats)
	}
	cfg.MinClientVersion = envString("MIN_CLIENT_VERSION", "1.0.0")
	cfg.DownloadURL = os.Getenv("DOWNLOAD_URL")
	cfg.ForceUpdate = envBool("FORCE_UPDATE", false)
	cfg.GracePeriodHours = envInt("GRACE_PERIOD_HOURS", 0, &errs)

	cfg.LogLevel = envString("LOG_LEVEL", "info")
	cfg.LogDirectory = envString("LOG_DIRECTORY", "logs")
	cfg.DebugMode = envBool("DEBUG_MODE", false)
	cfg.EnableSQLLog = envBool("ENABLE_SQL_LOGGING", false)

	cfg.RedisEnabled = envBool("REDIS_ENABLED", false)
	cfg.RedisAddr = envString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.RateLimitConnPerIP = envString("RATE_LIMIT_CONN_PER_IP", "20-M")
	cfg.RateLimitCmdsPerSession = envString("RATE_LIMIT_CMDS_PER_SESSION", "60-M")

	cfg.MetricsPort = envInt("METRICS_PORT", 9090, &errs)
	cfg.OTelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	if cfg.ServerPort < 1 || cfg.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT out of range: %d", cfg.ServerPort))
	}
	if cfg.MaxClients < 1 {
		errs = append(errs, "SERVER_MAX_CLIENTS must be at least 1")
	}
	if cfg.DBName == "" {
		errs = append(errs, "DB_NAME cannot be empty")
	}
	if cfg.DBType == "postgres" && cfg.DBHost == "" {
		errs = append(errs, "DB_HOST required when DB_TYPE=postgres")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// ConnectionString returns the database/sql data source name for this
// config's DBType.
func (c *Config) ConnectionString() string {
	switch c.DBType {
	case "sqlite":
		return c.DBName
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
	default:
		return ""
	}
}

// ListenAddress returns the host:port the TCP game server should bind to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

func envInt(key string, def int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s: %v", key, err))
		return def
	}
	return n
}

func envDurationSeconds(key string, defSecs int, errs *[]string) time.Duration {
	return time.Duration(envInt(key, defSecs, errs)) * time.Second
}

func envDurationMinutes(key string, defMins int, errs *[]string) time.Duration {
	return time.Duration(envInt(key, defMins, errs)) * time.Minute
}

func envDurationHours(key string, defHours int, errs *[]string) time.Duration {
	return time.Duration(envInt(key, defHours, errs)) * time.Hour
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
