package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"cloudvps-backend/internal/services"
)

func exerciseStore(t *testing.T, store services.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	data, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load empty store: %v", err)
	}
	if data != nil {
		t.Errorf("Expected nil for an empty store, got %q", data)
	}

	if err := store.Save(ctx, []byte(`{"version":3}`)); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.Save(ctx, []byte(`{"version":3,"users":{}}`)); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}

	data, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if string(data) != `{"version":3,"users":{}}` {
		t.Errorf("Expected the latest document, got %q", data)
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Errorf("Deleting twice should not fail: %v", err)
	}
	data, _ = store.Load(ctx)
	if data != nil {
		t.Errorf("Expected nil after delete, got %q", data)
	}
}

func TestFileStore(t *testing.T) {
	store, err := services.NewFileStore(filepath.Join(t.TempDir(), "nested"), "cloudvps/app v3")
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	exerciseStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := services.NewSQLiteStore(filepath.Join(t.TempDir(), "cloudvps.db"), "cloudvps_app_v3")
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}
