package elevenlabs

import (
	"errors"
	"testing"
	"time"
)

func TestWebhookValidator(t *testing.T) {
	secret := []byte("whsec")
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"type":"post_call_transcription"}`)

	v := NewWebhookValidator(string(secret))
	v.now = func() time.Time { return now }

	tests := []struct {
		name   string
		header string
		body   []byte
		want   error
	}{
		{"valid", SignatureHeaderValue(secret, now.Add(-time.Minute), payload), payload, nil},
		{"missing", "", payload, ErrMissingSignature},
		{"malformed", "garbage", payload, ErrMalformedSignature},
		{"bad timestamp", "t=abc,v0=00", payload, ErrMalformedSignature},
		{"stale", SignatureHeaderValue(secret, now.Add(-31*time.Minute), payload), payload, ErrStaleSignature},
		{"tampered", SignatureHeaderValue(secret, now, payload), []byte(`{"type":"other"}`), ErrInvalidSignature},
		{"wrong secret", SignatureHeaderValue([]byte("nope"), now, payload), payload, ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.header, tt.body)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPostCallDataEntries(t *testing.T) {
	d := PostCallData{Transcript: []byte(`[{"role":"agent","message":"Hi","time_in_call_secs":0},{"source":"user","text":"Hello"}]`)}
	got := d.Entries()
	if len(got) != 2 || got[0].Role != "agent" || got[1].Role != "user" || got[1].Message != "Hello" {
		t.Fatalf("unexpected entries: %#v", got)
	}
	if got[0].TimeInCallSecs == nil || got[1].TimeInCallSecs != nil {
		t.Fatalf("time offsets wrong: %#v", got)
	}
}
