package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_ZapLevel(t *testing.T) {
	if LevelDebug.ZapLevel() != zapcore.DebugLevel {
		t.Error("expected debug to map to zap debug")
	}
	if LevelError.ZapLevel() != zapcore.ErrorLevel {
		t.Error("expected error to map to zap error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"silly", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be set after InitForCLI")
	}

	Info("test-subsystem", "test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log message to appear in CLI output")
	}

	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in CLI output")
	}
}

func TestCLILevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at INFO level")
	}

	if !strings.Contains(output, "info message") {
		t.Error("Info message should appear at INFO level")
	}
}

func TestJSONFormatCarriesError(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: LevelDebug, Format: FormatJSON, Output: &buf}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Error("Registry", errors.New("boom"), "failed to put %s", "/services/prod/web/h1-80")

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["subsystem"] != "Registry" {
		t.Errorf("unexpected subsystem: %v", record["subsystem"])
	}
	if record["error"] != "boom" {
		t.Errorf("unexpected error attribute: %v", record["error"])
	}
	if record["msg"] != "failed to put /services/prod/web/h1-80" {
		t.Errorf("unexpected message: %v", record["msg"])
	}
}

func TestInitWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "discover.log")

	if err := Init(Options{Level: LevelInfo, Output: &buf, File: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info("Bootstrap", "written twice")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written twice") {
		t.Error("expected message in log file")
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Error("expected message in primary output")
	}
}

func TestZapHonoursLevel(t *testing.T) {
	InitForCLI(LevelInfo, &bytes.Buffer{})
	logger := Zap("etcd")
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected zap logger to drop info records at default level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("expected zap logger to keep warnings")
	}

	InitForCLI(LevelDebug, &bytes.Buffer{})
	if !Zap("etcd").Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected zap logger to follow debug level")
	}
}

func TestZapWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "discover.log")

	if err := Init(Options{Level: LevelInfo, Format: FormatJSON, Output: &buf, File: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Zap("etcd").Warn("lease keepalive failed")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "lease keepalive failed" || record["subsystem"] != "etcd" || record["level"] != "WARN" {
		t.Errorf("unexpected record: %v", record)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "lease keepalive failed") {
		t.Error("expected zap record in log file")
	}

	buf.Reset()
	InitForCLI(LevelWarn, &buf)
	Zap("etcd").Warn("retrying")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") || !strings.Contains(buf.String(), "retrying") {
		t.Errorf("expected a console record, got %q", buf.String())
	}
}
