package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const minJWTSecretLength = 32

type Config struct {
	GeminiAPIKey      string        `env:"GEMINI_API_KEY" env-required:"true"`
	GeminiModel       string        `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	DatabaseURL       string        `env:"DATABASE_URL" env-default:"cardscan.db"`
	HTTPPort          string        `env:"HTTP_PORT" env-default:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" env-default:"INFO"`
	JWTSecret         string        `env:"JWT_SECRET" env-required:"true"`
	JWTTTL            time.Duration `env:"JWT_TTL" env-default:"24h"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" env-default:"4194304"` // 4MB
	ExtractionTimeout time.Duration `env:"EXTRACTION_TIMEOUT" env-default:"60s"`
}

// Load reads a .env file if one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ExtractionTimeout <= 0 {
		return fmt.Errorf("EXTRACTION_TIMEOUT must be positive")
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values fall back to Info.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO", "":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
