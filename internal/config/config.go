package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	GenAIBaseURL     string  `mapstructure:"GENAI_BASE_URL"`
	GenAIAPIKey      string  `mapstructure:"GENAI_API_KEY"`
	GenAIModel       string  `mapstructure:"GENAI_MODEL"`
	GenAITemperature float64 `mapstructure:"GENAI_TEMPERATURE"`
	GenAIMaxTokens   int     `mapstructure:"GENAI_MAX_TOKENS"`
	GenAITimeoutSec  int     `mapstructure:"GENAI_TIMEOUT_SEC"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("GENAI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GENAI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GENAI_TEMPERATURE", 0.2)
	v.SetDefault("GENAI_MAX_TOKENS", 4096)
	v.SetDefault("GENAI_TIMEOUT_SEC", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_ISSUER")
	v.BindEnv("GENAI_BASE_URL")
	v.BindEnv("GENAI_API_KEY")
	v.BindEnv("GENAI_MODEL")
	v.BindEnv("GENAI_TEMPERATURE")
	v.BindEnv("GENAI_MAX_TOKENS")
	v.BindEnv("GENAI_TIMEOUT_SEC")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GenAIAPIKey == "" {
		log.Println("WARNING: GENAI_API_KEY is not set; summary and report generation will fail")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-insecure-secret"
		log.Println("WARNING: JWT_SECRET not set, using development default")
	}
	if !cfg.IsDev() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) GenAITimeout() time.Duration {
	return time.Duration(c.GenAITimeoutSec) * time.Second
}
