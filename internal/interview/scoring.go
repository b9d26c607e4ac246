package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/garnizeh/recruiter/internal/config"
	"github.com/garnizeh/recruiter/internal/jobs"
)

// ScoreRequest points the scoring service at a stored transcript.
type ScoreRequest struct {
	InterviewID string `json:"interviewId"`
	Container   string `json:"container"`
	Path        string `json:"path"`
}

// Scorer hands finished interviews to the external scoring API.
type Scorer struct {
	url    string
	client *http.Client
}

// NewScorer returns nil when no scoring URL is configured.
func NewScorer(cfg config.ScoringConfig, httpClient *http.Client) *Scorer {
	if cfg.URL == "" {
		return nil
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Scorer{url: cfg.URL, client: httpClient}
}

// Score posts req. Client errors are permanent; anything else is retried by
// the worker pool.
func (s *Scorer) Score(ctx context.Context, req ScoreRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return jobs.Permanent(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return jobs.Permanent(fmt.Errorf("build scoring request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return jobs.Permanent(fmt.Errorf("scoring api: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	default:
		return fmt.Errorf("scoring api: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
