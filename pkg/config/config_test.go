package config

import (
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("AUTH_ADMIN_SECRET", "admin-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.App.Port != ":8080" {
		t.Errorf("App.Port = %q, want %q", cfg.App.Port, ":8080")
	}
	if cfg.DB.Path != "./oracle.sqlite" {
		t.Errorf("DB.Path = %q, want %q", cfg.DB.Path, "./oracle.sqlite")
	}
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Errorf("Auth.TokenTTLMinutes = %d, want 60", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.Auth.WriteLimitPerMin != 60 {
		t.Errorf("Auth.WriteLimitPerMin = %d, want 60", cfg.Auth.WriteLimitPerMin)
	}
	if cfg.Peg.IntervalSeconds != 15 {
		t.Errorf("Peg.IntervalSeconds = %d, want 15", cfg.Peg.IntervalSeconds)
	}
	if cfg.Hub.QueueSize != 64 {
		t.Errorf("Hub.QueueSize = %d, want 64", cfg.Hub.QueueSize)
	}
	if cfg.Hub.HeartbeatSeconds != 25 {
		t.Errorf("Hub.HeartbeatSeconds = %d, want 25", cfg.Hub.HeartbeatSeconds)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("AUTH_ADMIN_SECRET", "admin-secret")
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("PEG_SOURCES", "ZERA|http://example/price|data.usd|6")
	t.Setenv("AUTH_WRITE_LIMIT_PER_MIN", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.App.Port != ":9090" {
		t.Errorf("App.Port = %q, want %q", cfg.App.Port, ":9090")
	}
	if cfg.Peg.Sources != "ZERA|http://example/price|data.usd|6" {
		t.Errorf("Peg.Sources = %q", cfg.Peg.Sources)
	}
	if cfg.Auth.WriteLimitPerMin != 5 {
		t.Errorf("Auth.WriteLimitPerMin = %d, want 5", cfg.Auth.WriteLimitPerMin)
	}
}

func TestLoadConfigMissingSecrets(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_ADMIN_SECRET", "")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("LoadConfig() error = %v, want jwt_secret error", err)
	}

	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	_, err = LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "admin_secret") {
		t.Fatalf("LoadConfig() error = %v, want admin_secret error", err)
	}
}
