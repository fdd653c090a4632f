package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAudioBytes is the largest decoded audio payload accepted (10 MiB).
const DefaultMaxAudioBytes = 10 << 20

type Config struct {
	Server      ServerConfig
	Auth        AuthConfig
	Recognition RecognitionConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Usage       UsageConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type AuthConfig struct {
	APIKeys []string
}

type RecognitionConfig struct {
	MaxAudioBytes int64
	Timeout       time.Duration
	MaxConcurrent int
	BackendsFile  string
}

type RateLimitConfig struct {
	RPS   float64 // 0 disables limiting
	Burst int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string // empty uses the embedded migrations
}

type UsageConfig struct {
	Enabled           bool
	WorkerConcurrency int
}

type LogConfig struct {
	Level slog.Level
}

func Load() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	port, err := getEnvInt("SERVER_PORT", 8090)
	collect(err)
	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second)
	collect(err)
	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 90*time.Second)
	collect(err)
	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	collect(err)

	maxAudio, err := getEnvInt("MAX_AUDIO_BYTES", DefaultMaxAudioBytes)
	collect(err)
	timeout, err := getEnvDuration("RECOGNIZE_TIMEOUT", 60*time.Second)
	collect(err)
	maxConcurrent, err := getEnvInt("MAX_CONCURRENT_RECOGNITIONS", 16)
	collect(err)

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 50)
	collect(err)
	burst, err := getEnvInt("RATE_LIMIT_BURST", 100)
	collect(err)

	redisDB, err := getEnvInt("REDIS_DB", 0)
	collect(err)

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	collect(err)
	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	collect(err)

	usageEnabled, err := getEnvBool("USAGE_ENABLED", false)
	collect(err)
	workerConcurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	collect(err)

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			CORSOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Auth: AuthConfig{
			APIKeys: splitList(getEnv("API_KEYS", getEnv("API_KEY", ""))),
		},
		Recognition: RecognitionConfig{
			MaxAudioBytes: int64(maxAudio),
			Timeout:       timeout,
			MaxConcurrent: maxConcurrent,
			BackendsFile:  getEnv("BACKENDS_FILE", "backends.yaml"),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Usage: UsageConfig{
			Enabled:           usageEnabled,
			WorkerConcurrency: workerConcurrency,
		},
		Log: LogConfig{Level: level},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the settings the API server cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Auth.APIKeys) == 0 {
		problems = append(problems, "API_KEYS must list at least one key")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Recognition.MaxAudioBytes <= 0 {
		problems = append(problems, "MAX_AUDIO_BYTES must be positive")
	}
	if c.Recognition.Timeout <= 0 {
		problems = append(problems, "RECOGNIZE_TIMEOUT must be positive")
	}
	if c.Recognition.MaxConcurrent <= 0 {
		problems = append(problems, "MAX_CONCURRENT_RECOGNITIONS must be positive")
	}
	if c.RateLimit.RPS < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		problems = append(problems, "RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
