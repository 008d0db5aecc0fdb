package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/phoenixfitness/phoenix-stack/common/middleware"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter(&buf, level, "json"), &buf
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  slog.Level
		format string
	}{
		{name: "json format with info level", level: slog.LevelInfo, format: "json"},
		{name: "text format with debug level", level: slog.LevelDebug, format: "text"},
		{name: "default format (json) with error level", level: slog.LevelError, format: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, tt.format)
			if logger == nil || logger.Logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "text")
	logger.Info("hello", "k", "v")

	output := buf.String()
	if !strings.Contains(output, "msg=hello") || !strings.Contains(output, "k=v") {
		t.Errorf("expected text-formatted output, got: %s", output)
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelWarn)
	logger.Info("suppressed")
	logger.Warn("kept")

	output := buf.String()
	if strings.Contains(output, "suppressed") {
		t.Errorf("info message should be filtered at warn level: %s", output)
	}
	if !strings.Contains(output, "kept") {
		t.Errorf("expected warn message in output, got: %s", output)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Error("dropped")
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithContext(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		expectReqID bool
		reqID       string
	}{
		{
			name:        "context with request ID",
			ctx:         middleware.WithRequestID(context.Background(), "test-req-123"),
			expectReqID: true,
			reqID:       "test-req-123",
		},
		{
			name:        "context without request ID",
			ctx:         context.Background(),
			expectReqID: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(slog.LevelInfo)
			logger.WithContext(tt.ctx).Info("test message")

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to decode log entry: %v", err)
			}

			got, ok := entry[FieldRequestID]
			if tt.expectReqID {
				if !ok || got != tt.reqID {
					t.Errorf("expected request_id %q, got %v", tt.reqID, got)
				}
			} else if ok {
				t.Errorf("unexpected request_id in output: %v", got)
			}
		})
	}
}

func TestContextLevels(t *testing.T) {
	ctx := middleware.WithRequestID(context.Background(), "lvl-req")

	tests := []struct {
		name  string
		log   func(l *Logger)
		level string
	}{
		{name: "debug", log: func(l *Logger) { l.DebugContext(ctx, "debug message") }, level: "DEBUG"},
		{name: "info", log: func(l *Logger) { l.InfoContext(ctx, "info message") }, level: "INFO"},
		{name: "warn", log: func(l *Logger) { l.WarnContext(ctx, "warn message") }, level: "WARN"},
		{name: "error", log: func(l *Logger) { l.ErrorContext(ctx, "error message") }, level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(slog.LevelDebug)
			tt.log(logger)

			output := buf.String()
			if !strings.Contains(output, tt.name+" message") {
				t.Errorf("expected message in output, got: %s", output)
			}
			if !strings.Contains(output, tt.level) {
				t.Errorf("expected %s level in output, got: %s", tt.level, output)
			}
			if !strings.Contains(output, "lvl-req") {
				t.Errorf("expected request ID in output, got: %s", output)
			}
		})
	}
}

func TestWith(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	enriched := logger.With(Component("session"), Profile("default"))
	enriched.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"session"`) {
		t.Errorf("expected component field in output, got: %s", output)
	}
	if !strings.Contains(output, `"profile":"default"`) {
		t.Errorf("expected profile field in output, got: %s", output)
	}
}

func TestWithGroup(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)

	logger.WithGroup("refresh").Info("test message", "count", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if _, ok := entry["refresh"]; !ok {
		t.Errorf("expected 'refresh' group in output, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "DEBUG", expected: slog.LevelDebug},
		{input: " Info ", expected: slog.LevelInfo},
		{input: "invalid", expected: slog.LevelWarn},
		{input: "", expected: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	logger := New(slog.LevelInfo, "json")
	SetDefault(logger)

	if slog.Default() != logger.Logger {
		t.Error("SetDefault did not update slog.Default()")
	}
}
