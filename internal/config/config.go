package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	commoncfg "wisefido-casebook/owl-common/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLen = 32
)

// Config wisefido-casebook（HTTP API）配置
type Config struct {
	Env  string
	HTTP struct {
		Addr string
	}
	DBEnabled    bool
	Database     commoncfg.DatabaseConfig
	RedisEnabled bool
	Redis        commoncfg.RedisConfig
	Log          struct {
		Level  string
		Format string
	}
	Auth  AuthConfig
	Audit AuditConfig
}

// AuthConfig 凭证签发/校验配置
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	CookieName string
	// generatedSecret marks a dev-only random secret (tokens die with the process).
	generatedSecret bool
}

// AuditConfig 病例事件流配置
type AuditConfig struct {
	Stream   string
	Group    string
	Consumer string
	MaxLen   int64
}

func Load() *Config {
	cfg := &Config{}
	cfg.Env = getEnv("APP_ENV", EnvDevelopment)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Same as wisefido-data: default on, fall back to the in-memory store when the DB is unreachable.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "casebook",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.TokenTTL = time.Duration(parseInt(getEnv("TOKEN_TTL_HOURS", "168"), 168)) * time.Hour
	cfg.Auth.BcryptCost = parseInt(getEnv("BCRYPT_COST", "10"), 10)
	cfg.Auth.CookieName = getEnv("AUTH_COOKIE_NAME", "token")

	cfg.Audit.Stream = getEnv("AUDIT_STREAM", "casebook:case-events")
	cfg.Audit.Group = getEnv("AUDIT_GROUP", "casebook-audit")
	cfg.Audit.Consumer = getEnv("AUDIT_CONSUMER", hostnameOr("casebook-audit-1"))
	cfg.Audit.MaxLen = int64(parseInt(getEnv("AUDIT_STREAM_MAXLEN", "100000"), 100000))

	return cfg
}

// IsDevelopment 本地开发环境
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// SecureCookies 非本地开发环境下凭证 cookie 必须带 Secure
func (c *Config) SecureCookies() bool {
	return !c.IsDevelopment()
}

// GeneratedSecret reports whether Validate had to invent a signing secret.
func (c *Config) GeneratedSecret() bool {
	return c.Auth.generatedSecret
}

// Validate checks the settings that must hold before the process serves traffic.
// In development an empty JWT secret is replaced by a random one.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
		}
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("generate dev secret: %w", err)
		}
		c.Auth.JWTSecret = secret
		c.Auth.generatedSecret = true
	}
	if len(c.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("AUTH_COOKIE_NAME must not be empty")
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
