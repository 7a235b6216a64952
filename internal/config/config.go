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
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	JWTSecret               string
	JWTIssuer               string
	JWTAudience             string
	JWTAccessTTL            time.Duration
	RefreshTokenTTL         time.Duration
	TokenRetention          time.Duration
	TokenPruneInterval      time.Duration
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	SecureCookies           bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:               getEnv("JWT_ISSUER", "go-auth-service"),
		JWTAudience:             getEnv("JWT_AUDIENCE", "go-auth-service"),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:         getDuration("REFRESH_TOKEN_TTL", 240*time.Hour),
		TokenRetention:          getDuration("TOKEN_RETENTION", 720*time.Hour),
		TokenPruneInterval:      getDuration("TOKEN_PRUNE_INTERVAL", time.Hour),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		SecureCookies:           getBool("SECURE_COOKIES", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// HS256 keys shorter than the hash size undermine the signature.
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}

	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.TokenRetention < 0 {
		return fmt.Errorf("TOKEN_RETENTION cannot be negative")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
