// Command cvextract runs CV extraction against a local file and prints the
// structured result. It uses the same database prompts and schemas as the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/garnizeh/recruiter/internal/catalog"
	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/cvparse"
	"github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/pkg/ollama"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config YAML file")
		name       = flag.String("name", "", "Candidate name to help the model")
		textOnly   = flag.Bool("text", false, "Print the extracted plain text and exit")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cvextract [-config file] [-name candidate] [-text] <cv.pdf|cv.docx|cv.txt>")
		os.Exit(2)
	}
	if err := run(*configPath, flag.Arg(0), *name, *textOnly); err != nil {
		fmt.Fprintf(os.Stderr, "cvextract: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, file, name string, textOnly bool) error {
	_ = godotenv.Load()
	ctx := context.Background()

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	text, err := cvparse.ExtractText(strings.ToLower(filepath.Ext(file)), data)
	if err != nil {
		return err
	}
	if textOnly {
		fmt.Println(text)
		return nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		return err
	}
	defer database.Close()
	repo := sqlite.New(database, nil).Repository()

	llm, err := ollama.NewClient(cfg.Ollama, nil)
	if err != nil {
		return err
	}
	defer llm.Close()
	if err := llm.Health(ctx); err != nil {
		return fmt.Errorf("ollama at %s: %w", cfg.Ollama.BaseURL, err)
	}

	loader, err := cvparse.NewLoader(ctx, repo.Schema)
	if err != nil {
		return err
	}
	ex, err := cvparse.NewExtractor(llm, catalog.NewService(repo, nil, nil), loader, cfg.CV)
	if err != nil {
		return err
	}
	out, err := ex.Extract(ctx, text, name)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
