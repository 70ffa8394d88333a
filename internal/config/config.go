// Package config loads server configuration from the environment.
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
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	UploadDir      string
	MaxUploadBytes int64

	CORSOrigins     []string
	RateLimitPerMin int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	OfficeLat    float64
	OfficeLng    float64
	OfficeRadius float64

	SessionSweepCron string

	SeedAdminEmail    string
	SeedAdminPassword string
}

// Load reads .env (when present at path, or ".env" if path is empty) and then
// the process environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	cfg := &Config{
		Env:      getenv("APP_ENV", "development"),
		HTTPPort: getenv("HTTP_PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisTLS:      getenv("REDIS_TLS", "false") == "true",

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTAccessExpiry:  dur("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: dur("JWT_REFRESH_EXPIRY", 168*time.Hour),

		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(atoi("MAX_UPLOAD_MB", 16)) << 20,

		CORSOrigins:     splitCSV(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RateLimitPerMin: atoi("RATE_LIMIT_PER_MIN", 200),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAITimeout: dur("OPENAI_TIMEOUT", 15*time.Second),

		OfficeLat:    float("OFFICE_LAT", 13.0360406),
		OfficeLng:    float("OFFICE_LNG", 80.2181952),
		OfficeRadius: float("OFFICE_RADIUS_METERS", 200),

		SessionSweepCron: getenv("SESSION_SWEEP_CRON", "@hourly"),

		SeedAdminEmail:    getenv("SEED_ADMIN_EMAIL", "admin@infinite.com"),
		SeedAdminPassword: getenv("SEED_ADMIN_PASSWORD", "admin123"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= c.JWTAccessExpiry {
		return fmt.Errorf("JWT_REFRESH_EXPIRY must exceed JWT_ACCESS_EXPIRY")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
