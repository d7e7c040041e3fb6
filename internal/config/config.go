package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/redmonkez12/go-csp/internal/csp"
)

// Report store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const defaultDirectives = "default-src self; script-src self @nonce; object-src none; base-uri self; frame-ancestors none; report-uri /csp/report"

type Config struct {
	Server   ServerConfig
	CSP      CSPConfig
	Report   ReportConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
}

type CSPConfig struct {
	Directives     csp.Directives
	ReportOnly     bool
	SetAllHeaders  bool
	DisableAndroid bool
	// Nonce enables a fresh nonce per request for the @nonce placeholder.
	Nonce bool
}

type ReportConfig struct {
	Store       string
	DedupWindow time.Duration
	MaxRecent   int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// PASETO symmetric key (32 bytes for v4.local). Empty disables the
	// operator endpoints.
	PasetoKey     []byte
	TokenDuration time.Duration
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	directives, err := csp.ParseDirectives(getEnv("CSP_DIRECTIVES", defaultDirectives))
	if err != nil {
		return nil, fmt.Errorf("CSP_DIRECTIVES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", nil),
		},
		CSP: CSPConfig{
			Directives:     directives,
			ReportOnly:     getBoolEnv("CSP_REPORT_ONLY", false),
			SetAllHeaders:  getBoolEnv("CSP_SET_ALL_HEADERS", false),
			DisableAndroid: getBoolEnv("CSP_DISABLE_ANDROID", false),
			Nonce:          getBoolEnv("CSP_NONCE", true),
		},
		Report: ReportConfig{
			Store:       getEnv("REPORT_STORE", StoreMemory),
			DedupWindow: getDurationEnv("REPORT_DEDUP_WINDOW", 10*time.Minute),
			MaxRecent:   getIntEnv("REPORT_MAX_RECENT", 500),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "csp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			PasetoKey:     []byte(getEnv("PASETO_KEY", "")),
			TokenDuration: getDurationEnv("TOKEN_DURATION", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if n := len(c.Auth.PasetoKey); n != 0 && n != 32 {
		return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", n)
	}
	switch c.Report.Store {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("unsupported REPORT_STORE %q", c.Report.Store)
	}
	if c.Report.MaxRecent <= 0 {
		return fmt.Errorf("REPORT_MAX_RECENT must be positive, got %d", c.Report.MaxRecent)
	}
	return nil
}

// Options converts the CSP settings into builder options for one request.
func (c *CSPConfig) Options(nonce string) csp.Options {
	return csp.Options{
		SetAllHeaders:  c.SetAllHeaders,
		ReportOnly:     c.ReportOnly,
		DisableAndroid: c.DisableAndroid,
		Nonce:          nonce,
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// OperatorEndpointsEnabled reports whether a token key is configured.
func (c *AuthConfig) OperatorEndpointsEnabled() bool {
	return len(c.PasetoKey) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return b
}

// getDurationEnv reads a whole number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
