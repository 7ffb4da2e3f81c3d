package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoggerWithRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := WithRun(context.Background(), "hourly", "run-1")
	logger.InfoCtx(ctx, "test message")

	output := buf.String()
	if !strings.Contains(output, `"job":"hourly"`) || !strings.Contains(output, `"run_id":"run-1"`) {
		t.Fatalf("expected context fields in log output, got %q", output)
	}
}

func TestLoggerWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := WithRun(WithRequestID(context.Background(), "req-7"), "daily", "run-2")
	logger.InfoCtx(ctx, "manual run")

	if out := buf.String(); !strings.Contains(out, `"request_id":"req-7"`) || !strings.Contains(out, `"run_id":"run-2"`) {
		t.Fatalf("expected request and run ids in log output, got %q", out)
	}

	if got := WithRequestID(context.Background(), ""); got.Value(RequestIDKey) != nil {
		t.Fatalf("empty request id must not be stored")
	}
}

func TestLogDatabaseError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.LogDatabaseError(context.Background(), errors.New("connection reset"), "settlement.commit")

	output := buf.String()
	if !strings.Contains(output, `"tag":"settlement.commit"`) || !strings.Contains(output, "connection reset") {
		t.Fatalf("expected tag and error in output, got %q", output)
	}

	buf.Reset()
	logger.LogDatabaseError(context.Background(), nil, "noop")
	if buf.Len() != 0 {
		t.Fatalf("expected nil error to be ignored, got %q", buf.String())
	}
}

func TestLoggerLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "text")

	logger.DebugCtx(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %q", buf.String())
	}
}

func TestLoggerFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{name: "json format", format: "json"},
		{name: "text format", format: "text"},
		{name: "default format", format: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureStdout(t, func() {
				logger := New(slog.LevelInfo, tt.format)
				logger.Info("formatted output")
			})

			if output == "" {
				t.Fatalf("expected log output, got empty string")
			}
		})
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()

	fn()

	_ = w.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read stdout: %v", err)
	}

	return buf.String()
}
