package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// ========================================
// Context Tests
// ========================================

func TestWithJobID(t *testing.T) {
	ctx := context.Background()
	newCtx := WithJobID(ctx, "job-123-abc")

	if ctx.Value(JobIDKey) != nil {
		t.Error("original context should not be modified")
	}
	if got := GetJobID(newCtx); got != "job-123-abc" {
		t.Errorf("GetJobID() = %q, want %q", got, "job-123-abc")
	}
}

func TestWithUserID(t *testing.T) {
	ctx := WithUserID(context.Background(), "user_456")

	if got := GetUserID(ctx); got != "user_456" {
		t.Errorf("GetUserID() = %q, want %q", got, "user_456")
	}
}

func TestGetters_WrongTypeAndNil(t *testing.T) {
	ctx := context.WithValue(context.Background(), JobIDKey, 12345)
	if got := GetJobID(ctx); got != "" {
		t.Errorf("GetJobID() with int value = %q, want empty", got)
	}

	//nolint:staticcheck // nil context is handled explicitly
	if got := GetUserID(nil); got != "" {
		t.Errorf("GetUserID(nil) = %q, want empty", got)
	}
}

func TestContextKey_Uniqueness(t *testing.T) {
	ctx := context.WithValue(context.Background(), "log_job_id", "raw")
	if got := GetJobID(ctx); got != "" {
		t.Errorf("raw string key should not match ContextKey, got %q", got)
	}
}

// ========================================
// FromContext Tests
// ========================================

func TestFromContext(t *testing.T) {
	logger := slog.Default()

	//nolint:staticcheck // nil context is handled explicitly
	if FromContext(nil, logger) != logger {
		t.Error("FromContext with nil context should return original logger")
	}
	if FromContext(context.Background(), logger) != logger {
		t.Error("FromContext without ids should return original logger")
	}

	ctx := WithUserID(WithJobID(context.Background(), "job-1"), "user-1")
	if FromContext(ctx, logger) == logger {
		t.Error("FromContext with ids should return a new logger")
	}
}

func TestFromContext_Attributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)

	ctx := WithUserID(WithJobID(context.Background(), "job-42"), "user-7")
	FromContext(ctx, logger).Info("dispatched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["job_id"] != "job-42" {
		t.Errorf("job_id = %v, want job-42", entry["job_id"])
	}
	if entry["user_id"] != "user-7" {
		t.Errorf("user_id = %v, want user-7", entry["user_id"])
	}
	if entry["msg"] != "dispatched" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

// ========================================
// Level Tests
// ========================================

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	original := GetLevel()
	t.Cleanup(func() { SetLevel(original) })

	var buf bytes.Buffer
	logger := newLogger(&buf, true)

	SetLevel(slog.LevelWarn)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}

	SetLevel(slog.LevelDebug)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug not logged after SetLevel(debug): %q", buf.String())
	}
}

func TestNew(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
	original := GetLevel()
	t.Cleanup(func() { SetLevel(original) })

	if New() == nil {
		t.Fatal("New() returned nil")
	}
	if GetLevel() != slog.LevelError {
		t.Errorf("GetLevel() = %v, want error", GetLevel())
	}
}
