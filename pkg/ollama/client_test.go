package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/pkg/ollama"
)

// writeSequence writes each object as a JSON line and flushes, like Ollama's streaming.
func writeSequence(w http.ResponseWriter, seq ...map[string]any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, obj := range seq {
		_ = enc.Encode(obj)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func newClient(t *testing.T, h http.HandlerFunc, cfg config.OllamaConfig) *ollama.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	c, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_ListModelsAndHealth(t *testing.T) {
	var body atomic.Value
	body.Store(`{"models":[{"name":"llama3.2","size":42}]}`)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body.Load().(string)))
	}, config.OllamaConfig{})

	ctx := context.Background()
	models, err := c.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3.2" || models[0].Size != 42 {
		t.Fatalf("unexpected models: %#v", models)
	}
	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	body.Store(`{"models":[]}`)
	if err := c.Health(ctx); err == nil {
		t.Fatal("expected Health to fail without models")
	}
}

func TestClient_Generate_ConcatenatesStream(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		writeSequence(w,
			map[string]any{"model": "m", "response": "one ", "done": false},
			map[string]any{"model": "m", "response": "final", "done": true, "eval_count": 2},
		)
	}, config.OllamaConfig{})

	res, err := c.Generate(context.Background(), "m", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "one final" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if _, ok := res.Meta["latency_ms"]; !ok {
		t.Fatal("expected latency_ms in meta")
	}
	if !strings.Contains(string(res.Raw), `"done":true`) {
		t.Fatalf("raw should hold the final chunk: %s", res.Raw)
	}
}

func TestClient_GenerateJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string          `json:"model"`
			Format json.RawMessage `json:"format"`
			Stream *bool           `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if string(req.Format) != `"json"` || req.Stream == nil || *req.Stream {
			http.Error(w, "expected json format without streaming", http.StatusBadRequest)
			return
		}
		writeSequence(w, map[string]any{"model": req.Model, "response": `{"name":"Ada"}`, "done": true})
	}, config.OllamaConfig{})

	out, err := c.GenerateJSON(context.Background(), "m", "extract")
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out != `{"name":"Ada"}` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/x-ndjson")
				_, _ = w.Write([]byte("{ this is : not json\n"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, tt.handler, config.OllamaConfig{})
			if _, err := c.Generate(context.Background(), "m", "p"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClient_Generate_RetriesTransientErrors(t *testing.T) {
	var attempts int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.Error(w, "temporary", http.StatusServiceUnavailable)
			return
		}
		writeSequence(w, map[string]any{"response": "ok", "done": true})
	}, config.OllamaConfig{Retries: 2, Backoff: 10 * time.Millisecond, CircuitFailureThreshold: 10})

	res, err := c.Generate(context.Background(), "m", "p")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "ok" || atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("text=%q attempts=%d", res.Text, attempts)
	}
}

func TestClient_CircuitBreaker_Opens(t *testing.T) {
	var attempts int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "permanent", http.StatusInternalServerError)
	}, config.OllamaConfig{Backoff: time.Millisecond, CircuitFailureThreshold: 2, CircuitReset: time.Minute})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Generate(ctx, "m", "p"); err == nil || errors.Is(err, ollama.ErrCircuitOpen) {
			t.Fatalf("attempt %d: expected upstream error, got %v", i+1, err)
		}
	}
	if _, err := c.GenerateJSON(ctx, "m", "p"); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("open circuit must not reach the server, attempts=%d", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := ollama.RenderTemplate("Name: {{.Name}}\n{{.Text}}", map[string]string{"Name": "Ada", "Text": "cv"})
	if err != nil || out != "Name: Ada\ncv" {
		t.Fatalf("RenderTemplate: %q, %v", out, err)
	}
	// cached template renders new data
	out, _ = ollama.RenderTemplate("Name: {{.Name}}\n{{.Text}}", map[string]string{"Name": "Bob"})
	if !strings.HasPrefix(out, "Name: Bob") {
		t.Fatalf("cached render: %q", out)
	}
	if _, err := ollama.RenderTemplate("{{.Broken", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
