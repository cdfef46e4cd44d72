package config_test

import (
	"testing"
	"time"

	"cloudvps-backend/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" || cfg.StorageBackend != "file" {
		t.Errorf("unexpected defaults: port=%s backend=%s", cfg.Port, cfg.StorageBackend)
	}
	if cfg.PersistDebounce != 220*time.Millisecond {
		t.Errorf("expected 220ms debounce, got %v", cfg.PersistDebounce)
	}
	if cfg.GitHubRef != "main" || cfg.WorkflowFile != "WindowsRDP.yml" {
		t.Errorf("unexpected github defaults: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("REDIS_DB", "zero")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for non-numeric REDIS_DB")
	}
	t.Setenv("REDIS_DB", "")

	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for redis backend without REDIS_URL")
	}
	t.Setenv("STORAGE_BACKEND", "tape")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadAdminUserIDs(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "")

	t.Setenv("ADMIN_USER_IDS", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.AdminUserIDs) != 0 {
		t.Errorf("Expected no admins by default, got %v", cfg.AdminUserIDs)
	}

	t.Setenv("ADMIN_USER_IDS", " u_a, ,u_b ")
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.AdminUserIDs) != 2 || cfg.AdminUserIDs[0] != "u_a" || cfg.AdminUserIDs[1] != "u_b" {
		t.Errorf("Unexpected admin ids %v", cfg.AdminUserIDs)
	}
}
