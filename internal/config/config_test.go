package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.FailsafeTimeout != 4*time.Second {
		t.Errorf("failsafe = %v", cfg.FailsafeTimeout)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORTAL_ENV", "production")
	t.Setenv("PORTAL_ADDR", ":9999")
	t.Setenv("PORTAL_ADMIN_EMAIL", "admin@club.be")
	t.Setenv("PORTAL_FAILSAFE_TIMEOUT", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("env override not applied")
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Admin.Email != "admin@club.be" {
		t.Errorf("admin email = %q", cfg.Admin.Email)
	}
	if cfg.FailsafeTimeout != 250*time.Millisecond {
		t.Errorf("failsafe = %v", cfg.FailsafeTimeout)
	}
}
