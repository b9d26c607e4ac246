package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/db"
)

// db_init migrates the configured database and loads the seed data. With
// -status it only reports applied and pending migrations.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	status := flag.Bool("status", false, "List applied and pending migrations without changing the database")
	flag.Parse()
	_ = godotenv.Load()

	if err := run(*configPath, *status); err != nil {
		fmt.Fprintf(os.Stderr, "db_init: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, status bool) error {
	ctx := context.Background()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	pending, err := db.PendingMigrations(ctx, database, dbfs.Migrations)
	if err != nil {
		return err
	}
	if status {
		applied, err := db.AppliedMigrations(ctx, database)
		if err != nil {
			return err
		}
		fmt.Printf("database: %s\napplied:  %s\npending:  %s\n", cfg.DatabasePath, list(applied), list(pending))
		return nil
	}

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		return err
	}
	fmt.Printf("Database %s initialized, %d migration(s) applied.\n", cfg.DatabasePath, len(pending))
	return nil
}

func list(v []string) string {
	if len(v) == 0 {
		return "-"
	}
	return strings.Join(v, ", ")
}
