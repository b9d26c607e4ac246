package elevenlabs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader         = "elevenlabs-signature"
	EventPostCallTranscript = "post_call_transcription"
	defaultSignatureMaxAge  = 30 * time.Minute
)

var (
	ErrMissingSignature   = errors.New("elevenlabs: missing webhook signature")
	ErrMalformedSignature = errors.New("elevenlabs: malformed webhook signature")
	ErrStaleSignature     = errors.New("elevenlabs: webhook signature expired")
	ErrInvalidSignature   = errors.New("elevenlabs: webhook signature mismatch")
)

// WebhookValidator checks the HMAC signature ElevenLabs puts on webhook calls.
type WebhookValidator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewWebhookValidator(secret string) *WebhookValidator {
	return &WebhookValidator{secret: []byte(secret), maxAge: defaultSignatureMaxAge, now: time.Now}
}

// Validate checks a header of the form "t=<unix>,v0=<hex>" against payload.
func (v *WebhookValidator) Validate(header string, payload []byte) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v0":
			sig = "v0=" + val
		}
	}
	if ts == "" || sig == "" {
		return ErrMalformedSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	if v.now().Sub(time.Unix(unix, 0)) > v.maxAge {
		return ErrStaleSignature
	}

	if !hmac.Equal([]byte(sig), []byte(Sign(v.secret, ts, payload))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the "v0=<hex>" value for a timestamp and payload.
func Sign(secret []byte, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a complete header, mostly for tests and tooling.
func SignatureHeaderValue(secret []byte, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,%s", ts, Sign(secret, ts, payload))
}

// WebhookEvent is the envelope of every webhook call.
type WebhookEvent struct {
	Type           string          `json:"type"`
	EventTimestamp int64           `json:"event_timestamp"`
	Data           json.RawMessage `json:"data"`
}

// PostCallData is the body of a post_call_transcription event.
type PostCallData struct {
	AgentID        string            `json:"agent_id"`
	ConversationID string            `json:"conversation_id"`
	Status         string            `json:"status"`
	Transcript     json.RawMessage   `json:"transcript"`
	Metadata       *PostCallMetadata `json:"metadata,omitempty"`
}

type PostCallMetadata struct {
	StartTimeUnixSecs int64   `json:"start_time_unix_secs"`
	CallDurationSecs  float64 `json:"call_duration_secs"`
}

// Entries parses the transcript turns of the event.
func (d *PostCallData) Entries() []TranscriptEntry {
	if len(d.Transcript) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(d.Transcript, &items); err != nil {
		return nil
	}
	return parseTranscript(map[string]any{"transcript": items})
}
