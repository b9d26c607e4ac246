package db_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/db"
)

// Startup path: YAML config pointing at a file database, migrated on start and
// reopened to check that nothing is pending afterwards.
func TestMigrateOnStart_FileDatabase(t *testing.T) {
	ctx := context.Background()
	t.Setenv("RECRUITER_ENV", "development")

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "recruiter.db")
	yml := "addr: \":0\"\n" +
		"database_path: '" + dbPath + "'\n" +
		"migrate_on_start: true\n" +
		"storage:\n  provider: local\n  local_root: '" + filepath.Join(dir, "blobs") + "'\n"
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	if !cfg.MigrateOnStart || cfg.DatabasePath != dbPath {
		t.Fatalf("unexpected config: migrate=%v path=%q", cfg.MigrateOnStart, cfg.DatabasePath)
	}

	d, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	pending, err := db.PendingMigrations(ctx, d, dbfs.Migrations)
	if err != nil || len(pending) == 0 {
		t.Fatalf("fresh database should have pending migrations: %v, %v", pending, err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	d.Close()

	d, err = db.New(ctx, dbPath, nil)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer d.Close()

	applied, err := db.AppliedMigrations(ctx, d)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if !slices.Equal(applied, pending) {
		t.Fatalf("applied %v, want %v", applied, pending)
	}
	left, err := db.PendingMigrations(ctx, d, dbfs.Migrations)
	if err != nil || len(left) != 0 {
		t.Fatalf("expected nothing pending after reopen, got %v, %v", left, err)
	}
}
