package db_test

import (
	"context"
	"testing"
	"testing/fstest"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least 1 migration recorded, got %d", count)
	}

	for _, table := range []string{"job_posts", "job_post_steps", "job_post_step_assignments", "job_applications", "interviews", "user_profiles", "jobs", "dead_letter_jobs"} {
		var name string
		if err := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}
}

func TestMigrate_SeedsSchemaAndPrompt(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	var schemaJSON string
	if err := d.QueryRow(ctx, `SELECT schema_json FROM ai_schemas WHERE version = 'cv_extraction_v1'`).Scan(&schemaJSON); err != nil {
		t.Fatalf("seeded schema missing: %v", err)
	}
	if schemaJSON == "" {
		t.Fatalf("seeded schema is empty")
	}

	// a user edited prompt must survive a second run
	if _, err := d.Exec(ctx, `UPDATE prompts SET content = 'custom' WHERE name = 'cv-extraction' AND version = 1`); err != nil {
		t.Fatalf("update prompt: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	var content string
	if err := d.QueryRow(ctx, `SELECT content FROM prompts WHERE name = 'cv-extraction' AND version = 1`).Scan(&content); err != nil {
		t.Fatalf("seeded prompt missing: %v", err)
	}
	if content != "custom" {
		t.Fatalf("expected prompt to be left untouched, got %q", content)
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	migrations := fstest.MapFS{
		"migrations/0001_ok.sql":     {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"migrations/0002_broken.sql": {Data: []byte(`CREATE TABLE b (id INTEGER); INSERT INTO missing VALUES (1);`)},
		"migrations/README.md":       {Data: []byte("ignored")},
	}
	if err := db.Migrate(ctx, d, migrations, fstest.MapFS{}); err == nil {
		t.Fatalf("expected broken migration to fail")
	}

	applied, err := db.AppliedMigrations(ctx, d)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0001_ok" {
		t.Fatalf("expected only 0001_ok recorded, got %v", applied)
	}
	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='b'`).Scan(&n); err != nil {
		t.Fatalf("check table b: %v", err)
	}
	if n != 0 {
		t.Fatalf("table from failed migration should be rolled back")
	}

	pending, err := db.PendingMigrations(ctx, d, migrations)
	if err != nil || len(pending) != 1 || pending[0] != "0002_broken" {
		t.Fatalf("pending: %v, %v", pending, err)
	}
}

func TestAppliedMigrations_FreshDatabase(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	applied, err := db.AppliedMigrations(ctx, d)
	if err != nil || len(applied) != 0 {
		t.Fatalf("expected no applied migrations, got %v, %v", applied, err)
	}
}
