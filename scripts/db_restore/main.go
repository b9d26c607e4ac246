package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/db"
)

// db_restore replaces the configured database with a backup. The server must be stopped.
func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	src := flag.String("from", "", "Backup file to restore")
	flag.Parse()
	_ = godotenv.Load()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "Restore error: -from is required")
		os.Exit(2)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// refuse to restore something that is not a readable database
	ctx := context.Background()
	check, err := db.New(ctx, *src, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	var result string
	if err := check.QueryRow(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil || result != "ok" {
		check.Close()
		fmt.Fprintf(os.Stderr, "Restore error: backup failed integrity check (%s %v)\n", result, err)
		os.Exit(1)
	}
	check.Close()

	if err := copyFile(*src, cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database %s restored from %s.\n", cfg.DatabasePath, *src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".restoring"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// stale WAL files would be replayed over the restored copy
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	return os.Rename(tmp, dst)
}
