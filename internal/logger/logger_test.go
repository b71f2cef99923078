package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fd1az/nightfall-sdk/internal/logger"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "nightfall-sdk", nil)

	log.Info(context.Background(), "deposit submitted", "tx_hash", "0xabc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}

	if record["msg"] != "deposit submitted" {
		t.Errorf("expected msg 'deposit submitted', got %v", record["msg"])
	}
	if record["service"] != "nightfall-sdk" {
		t.Errorf("expected service attribute, got %v", record["service"])
	}
	if record["tx_hash"] != "0xabc" {
		t.Errorf("expected tx_hash attribute, got %v", record["tx_hash"])
	}
	source, _ := record["source"].(string)
	if !strings.Contains(source, "logger_test.go") {
		t.Errorf("expected source to point at the caller, got %q", source)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn record, got %q", buf.String())
	}
}

func TestLogger_TraceIDFn(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, "", func(ctx context.Context) string {
		return "trace-123"
	})

	log.Error(context.Background(), "boom")

	if !strings.Contains(buf.String(), `"trace_id":"trace-123"`) {
		t.Errorf("expected trace id in record, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.LevelDebug},
		{"INFO", logger.LevelInfo},
		{"warn", logger.LevelWarn},
		{"warning", logger.LevelWarn},
		{"error", logger.LevelError},
		{"", logger.LevelInfo},
		{"verbose", logger.LevelInfo},
	}

	for _, tt := range tests {
		if got := logger.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
