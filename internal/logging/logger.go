package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces the value of personal attributes.
const Redacted = "***"

// personal attribute keys never written in clear.
var personal = map[string]bool{
	"address":         true,
	"service_address": true,
	"customer_name":   true,
	"name":            true,
	"latitude":        true,
	"longitude":       true,
}

// Options configures New.
type Options struct {
	Level  slog.Level
	Format string    // "text" (default) or "json"
	Output io.Writer // defaults to os.Stderr
}

// New creates a configured application logger.
// It writes to Stderr (to separate from Stdout chat/MCP traffic).
// It standardizes common keys (e.g., "error" -> "err") and redacts personal fields.
func New(level slog.Level) *slog.Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions is New with an explicit format and destination.
func NewWithOptions(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(h)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	if personal[a.Key] {
		a.Value = slog.StringValue(Redacted)
	}
	return a
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
