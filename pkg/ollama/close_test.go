package ollama

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/garnizeh/recruiter/internal/config"
)

type testTransport struct{ called int32 }

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) { panic("not used") }
func (t *testTransport) CloseIdleConnections()                               { atomic.AddInt32(&t.called, 1) }

func TestClient_Close_Idempotent(t *testing.T) {
	tr := &testTransport{}
	c, err := NewClient(config.OllamaConfig{BaseURL: "http://localhost:11434", Timeout: 1}, &http.Client{Transport: tr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := c.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if got := atomic.LoadInt32(&tr.called); got != 1 {
		t.Fatalf("expected CloseIdleConnections once, got %d", got)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(config.OllamaConfig{BaseURL: "not a url"}, nil); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}
