// Package elevenlabs talks to the ElevenLabs conversational AI API: it issues
// conversation tokens, reads finished conversations and validates webhooks.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/config"
)

const (
	defaultBaseURL       = "https://api.elevenlabs.io"
	defaultTokenEndpoint = "/v1/convai/conversation/token"
	maxAttempts          = 3
)

var (
	ErrNotConfigured = errors.New("elevenlabs: api key is not configured")
	ErrRateLimited   = errors.New("elevenlabs: rate limit exceeded")
)

// StatusError is a non-2xx answer from the API. It unwraps to the matching
// apperr kind so callers can branch with errors.Is.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elevenlabs: status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusBadRequest:
		return apperr.ErrInvalid
	}
	return nil
}

// Client wraps the ElevenLabs REST API with retries and a per-user rate limit.
type Client struct {
	cfg        config.ElevenLabsConfig
	client     *http.Client
	limiter    *Limiter
	retryDelay time.Duration
	closed     int32
}

func NewClient(cfg config.ElevenLabsConfig, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		}
	}

	logger.Info("elevenlabs: client created", slog.String("base_url", cfg.BaseURL), slog.Int("max_requests_per_minute", cfg.MaxRequestsPerMinute))
	return &Client{
		cfg:        cfg,
		client:     httpClient,
		limiter:    NewLimiter(cfg.MaxRequestsPerMinute, time.Minute),
		retryDelay: 500 * time.Millisecond,
	}, nil
}

// Close releases idle connections. It is idempotent.
func (c *Client) Close() error {
	if c == nil || !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

// ConversationToken is what the browser needs to open a conversation.
type ConversationToken struct {
	Token          string     `json:"token"`
	ConversationID string     `json:"conversation_id,omitempty"`
	AgentID        string     `json:"agent_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// CreateConversationToken issues a token for agentID, or the configured agent
// when agentID is empty.
func (c *Client) CreateConversationToken(ctx context.Context, userID, agentID string) (*ConversationToken, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if agentID == "" {
		agentID = c.cfg.AgentID
	}
	if agentID == "" {
		return nil, apperr.E(apperr.ErrInvalid, "agent id is required")
	}
	if err := c.allow("token", userID); err != nil {
		return nil, err
	}

	body, _, err := c.get(ctx, c.cfg.TokenEndpoint, url.Values{"agent_id": {agentID}})
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	tok := &ConversationToken{
		Token:          firstString(raw, "webrtc_token", "token", "ws_token"),
		ConversationID: firstString(raw, "conversation_id", "conversationId"),
		AgentID:        agentID,
		ExpiresAt:      parseExpiry(raw),
	}
	if tok.ConversationID == "" {
		if conv, ok := raw["conversation"].(map[string]any); ok {
			tok.ConversationID = firstString(conv, "id")
		}
	}
	if tok.Token == "" {
		return nil, errors.New("elevenlabs: token response has no token")
	}
	return tok, nil
}

// TranscriptEntry is one turn of a conversation.
type TranscriptEntry struct {
	Role           string   `json:"role"`
	Message        string   `json:"message"`
	TimeInCallSecs *float64 `json:"time_in_call_secs,omitempty"`
}

type Conversation struct {
	ID           string            `json:"conversation_id"`
	Status       string            `json:"status,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript"`
	DurationSecs *float64          `json:"duration_secs,omitempty"`
	Raw          json.RawMessage   `json:"-"`
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if conversationID == "" {
		return nil, apperr.E(apperr.ErrInvalid, "conversation id is required")
	}
	if err := c.allow("conversation", UserFromContext(ctx)); err != nil {
		return nil, err
	}
	body, _, err := c.get(ctx, "/v1/convai/conversations/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return nil, err
	}
	conv, err := ParseConversation(body)
	if err != nil {
		return nil, err
	}
	if conv.ID == "" {
		conv.ID = conversationID
	}
	return conv, nil
}

// ParseConversation reads a conversation document, accepting the field names
// used by the different API versions.
func ParseConversation(body []byte) (*Conversation, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	conv := &Conversation{
		ID:         firstString(raw, "conversation_id", "conversationId", "id"),
		Status:     firstString(raw, "status"),
		Transcript: parseTranscript(raw),
		Raw:        body,
	}
	if meta, ok := raw["metadata"].(map[string]any); ok {
		if d, ok := number(meta["call_duration_secs"]); ok {
			conv.DurationSecs = &d
		}
	}
	return conv, nil
}

func parseTranscript(raw map[string]any) []TranscriptEntry {
	var items []any
	for _, k := range []string{"transcript", "transcripts", "messages"} {
		if v, ok := raw[k].([]any); ok {
			items = v
			break
		}
	}
	out := make([]TranscriptEntry, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		e := TranscriptEntry{
			Role:    firstString(m, "role", "source", "speaker"),
			Message: firstString(m, "message", "text", "content"),
		}
		if t, ok := number(m["time_in_call_secs"]); ok {
			e.TimeInCallSecs = &t
		}
		out = append(out, e)
	}
	return out
}

// GetConversationAudio returns the recording and its content type.
func (c *Client) GetConversationAudio(ctx context.Context, conversationID string) ([]byte, string, error) {
	if c.cfg.APIKey == "" {
		return nil, "", ErrNotConfigured
	}
	if conversationID == "" {
		return nil, "", apperr.E(apperr.ErrInvalid, "conversation id is required")
	}
	if err := c.allow("audio", UserFromContext(ctx)); err != nil {
		return nil, "", err
	}
	body, contentType, err := c.get(ctx, "/v1/convai/conversations/"+url.PathEscape(conversationID)+"/audio", nil)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", fmt.Errorf("elevenlabs: empty audio for conversation %s", conversationID)
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return body, contentType, nil
}

type userKey struct{}

// WithUser returns a context whose conversation and audio fetches are rate
// limited under userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user set by WithUser, or "anonymous".
func UserFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userKey{}).(string); ok && id != "" {
		return id
	}
	return "anonymous"
}

// allow consumes one request of scope for userID.
func (c *Client) allow(scope, userID string) error {
	if c.limiter.Allow(scope + ":" + userID) {
		return nil
	}
	logger.Warn("elevenlabs: rate limited", slog.String("scope", scope), slog.String("user_id", userID))
	return ErrRateLimited
}

// get performs a GET with up to three attempts. Only transport errors and 5xx
// answers are retried.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, contentType, retry, err := c.once(ctx, u)
		if err == nil {
			return body, contentType, nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			break
		}
		logger.Warn("elevenlabs: request failed, retrying",
			slog.String("path", path), slog.Int("attempt", attempt), slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
	return nil, "", lastErr
}

func (c *Client) once(ctx context.Context, u string) (body []byte, contentType string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", true, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", resp.StatusCode >= 500, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, resp.Header.Get("Content-Type"), false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func parseExpiry(raw map[string]any) *time.Time {
	for _, k := range []string{"valid_until", "expires_at"} {
		switch v := raw[k].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return &t
			}
		case float64:
			t := time.Unix(int64(v), 0).UTC()
			return &t
		}
	}
	if v, ok := number(raw["expires_at_unix"]); ok {
		t := time.Unix(int64(v), 0).UTC()
		return &t
	}
	return nil
}
