package elevenlabs

import (
	"log/slog"
	"os"
)

// package-level logger for pkg/elevenlabs; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/elevenlabs. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
