package config

import (
	"os"
	"testing"
)

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/nurture_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if !cfg.IsDev() {
		t.Error("IsDev() = false, want true")
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool sizing = %d/%d, want 20/5", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.GenAIModel == "" {
		t.Error("GenAIModel default missing")
	}
	if cfg.GenAITimeout().Seconds() != 60 {
		t.Errorf("GenAITimeout = %v, want 60s", cfg.GenAITimeout())
	}
	// Dev fallback secret kicks in when JWT_SECRET is unset.
	if cfg.JWTSecret == "" {
		t.Error("expected development JWT secret fallback")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/nurture_test")
	os.Setenv("PORT", "9090")
	os.Setenv("GENAI_MODEL", "gemini-1.5-pro")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("PORT")
		os.Unsetenv("GENAI_MODEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.GenAIModel != "gemini-1.5-pro" {
		t.Errorf("GenAIModel = %q, want gemini-1.5-pro", cfg.GenAIModel)
	}
}
