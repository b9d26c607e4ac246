// Package cvparse turns an uploaded CV into structured profile data: it pulls
// the text out of the document, asks an LLM for JSON and validates the answer
// against a stored JSON schema.
package cvparse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/ollama"
)

var ErrSchemaMismatch = errors.New("response does not match schema")

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by internal/cvparse. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Generator is the part of the LLM client the extractor needs.
type Generator interface {
	GenerateJSON(ctx context.Context, model, prompt string) (string, error)
}

// PromptSource returns the newest live prompt with the given name.
type PromptSource interface {
	GetPrompt(ctx context.Context, name string, version *int) (*models.Prompt, error)
}

type Extractor struct {
	gen     Generator
	prompts PromptSource
	loader  *Loader
	cfg     config.CVConfig
}

func NewExtractor(gen Generator, prompts PromptSource, loader *Loader, cfg config.CVConfig) (*Extractor, error) {
	if gen == nil || prompts == nil || loader == nil {
		return nil, errors.New("cvparse: generator, prompts and loader are required")
	}
	if cfg.PromptName == "" {
		cfg.PromptName = "cv-extraction"
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "cv_extraction_v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Extractor{gen: gen, prompts: prompts, loader: loader, cfg: cfg}, nil
}

// Extract structures CV text. name is the candidate's name on file and helps
// the model pick the right person in CVs with references.
func (e *Extractor) Extract(ctx context.Context, text, name string) (*models.CVExtraction, error) {
	p, err := e.prompts.GetPrompt(ctx, e.cfg.PromptName, nil)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", e.cfg.PromptName, err)
	}
	prompt, err := ollama.RenderTemplate(p.Content, map[string]any{"Name": name, "Text": text})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := e.gen.GenerateJSON(ctxReq, e.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	doc := extractJSON(out)
	if doc == "" {
		return nil, errors.New("no JSON object found in response")
	}
	if err := e.loader.Validate(ctxReq, e.cfg.SchemaVersion, []byte(doc)); err != nil {
		logger.Warn("cvparse: invalid model output", slog.String("error", err.Error()), slog.Int("raw_len", len(out)))
		return nil, err
	}

	var cv models.CVExtraction
	if err := json.Unmarshal([]byte(doc), &cv); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	logger.Info("cvparse: cv structured",
		slog.Int("skills", len(cv.Skills)),
		slog.Int("experience", len(cv.Experience)),
		slog.Duration("took", time.Since(start)))
	return &cv, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// Models often wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
