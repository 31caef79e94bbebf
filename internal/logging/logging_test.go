package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)
	logger.Info("commit appended", "hash", "abc123")

	out := buf.String()
	if !strings.Contains(out, "commit appended") || !strings.Contains(out, "abc123") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "json", &buf)
	logger.Info("lease reclaimed", "fail_count", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "lease reclaimed" {
		t.Errorf("msg = %v, want %q", record["msg"], "lease reclaimed")
	}
}

func TestNewLoggerWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)
	logger.Debug("dropped")
	logger.Info("dropped too")

	if buf.Len() != 0 {
		t.Errorf("below-level records were written: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	// Must be callable without panicking and swallow everything.
	Discard().Error("nothing to see")
}
