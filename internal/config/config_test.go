package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/gateway")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if !cfg.MLLPEnabled || cfg.MLLPAddr != ":2575" {
		t.Errorf("unexpected MLLP defaults: enabled=%v addr=%s", cfg.MLLPEnabled, cfg.MLLPAddr)
	}
	if cfg.HoldMaxMinutes != 30 {
		t.Errorf("expected default hold max 30, got %d", cfg.HoldMaxMinutes)
	}
	if !cfg.IsDev() {
		t.Error("expected IsDev for default env")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing AUTH_SECRET in production")
	}

	t.Setenv("AUTH_SECRET", "sekret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction")
	}
}

func TestLoad_CORSOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example.com" {
		t.Errorf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_MLLPDisabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MLLP_ENABLED", "false")
	t.Setenv("MLLP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MLLPEnabled {
		t.Error("expected MLLP disabled")
	}
}
