package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewFileLogger(t *testing.T) {
	tempDir := t.TempDir()

	logPath := filepath.Join(tempDir, "nested", "dir", "test.log")
	config := FileLoggerConfig{
		Path:       logPath,
		Format:     FormatText,
		Level:      InfoLevel,
		MaxSizeMB:  1,
		MaxBackups: 3,
	}

	logger, err := NewFileLogger(config)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	// Directory is created eagerly, the file on first write
	if _, err := os.Stat(filepath.Dir(logPath)); os.IsNotExist(err) {
		t.Error("Log directory was not created")
	}

	logger.Info(context.Background(), "hello", nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestNewFileLogger_EmptyPath(t *testing.T) {
	if _, err := NewFileLogger(FileLoggerConfig{}); err == nil {
		t.Error("NewFileLogger() with empty path should fail")
	}
}

func TestFileLogger_LogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewFileLogger(FileLoggerConfig{
		Path:   logPath,
		Format: FormatText,
		Level:  InfoLevel,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	ctx := context.Background()
	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", nil, nil)
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	logContent := string(content)

	if strings.Contains(logContent, "debug message") {
		t.Error("Debug message should be filtered at INFO level")
	}
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("%q should be present", want)
		}
	}
}

func TestWriterLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, DebugLevel)

	logger.Debug(context.Background(), "debug message", nil)

	if !strings.Contains(buf.String(), "debug message") {
		t.Error("Debug message should be present at DEBUG level")
	}
	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Errorf("Text output should carry the level, got %q", buf.String())
	}
}

func TestWriterLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatJSON, InfoLevel)

	logger.Error(context.Background(), "copy failed", errors.New("disk full"), Fields{
		"path": "/dst/a.txt",
		"size": 42,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v (%q)", err, buf.String())
	}

	checks := map[string]interface{}{
		"level": "ERROR",
		"msg":   "copy failed",
		"error": "disk full",
		"path":  "/dst/a.txt",
		"size":  float64(42),
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("JSON entry should have a time")
	}
}

func TestWriterLogger_TextFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, InfoLevel)

	logger.Info(context.Background(), "scan", Fields{"zeta": 1, "alpha": 2})

	out := buf.String()
	if strings.Index(out, "alpha=2") > strings.Index(out, "zeta=1") {
		t.Errorf("Fields should be sorted by key, got %q", out)
	}
}

func TestWriterLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatJSON, InfoLevel)

	child := logger.WithFields(Fields{"task": "photos"})
	child.Info(context.Background(), "child message", Fields{"items": 3})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if entry["task"] != "photos" {
		t.Errorf("entry[task] = %v, want photos", entry["task"])
	}
	if entry["items"] != float64(3) {
		t.Errorf("entry[items] = %v, want 3", entry["items"])
	}

	// Derived loggers do not own the writer
	if err := child.Close(); err != nil {
		t.Errorf("child Close() error = %v", err)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	ctx := context.Background()

	// None of these should panic
	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", nil, nil)

	if logger.WithFields(Fields{"key": "value"}) == nil {
		t.Error("WithFields should return a logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	ctx := context.Background()

	child := recorder.WithFields(Fields{"task": "docs"})
	recorder.Info(ctx, "start", nil)
	child.Error(ctx, "failed", errors.New("boom"), Fields{"path": "/a"})
	child.Warn(ctx, "slow", Fields{"task": "override"})

	records := recorder.Records()
	if len(records) != 3 {
		t.Fatalf("len(Records()) = %d, want 3 shared between derived loggers", len(records))
	}
	if records[1].Level != ErrorLevel || records[1].Err == nil || records[1].Fields["task"] != "docs" || records[1].Fields["path"] != "/a" {
		t.Errorf("error record = %+v", records[1])
	}
	if records[2].Fields["task"] != "override" {
		t.Errorf("record fields should override logger fields, got %v", records[2].Fields)
	}
	if recorder.Count(InfoLevel) != 1 || recorder.Count(DebugLevel) != 0 {
		t.Errorf("Count() mismatch: %+v", records)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ParseLevel(tt.input); result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := LevelString(tt.level); result != tt.expected {
				t.Errorf("LevelString(%v) = %q, want %q", tt.level, result, tt.expected)
			}
		})
	}
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewFileLogger(FileLoggerConfig{
		Path:   logPath,
		Format: FormatText,
		Level:  InfoLevel,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	ctx := context.Background()
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 100; j++ {
				logger.Info(ctx, "concurrent message", Fields{"goroutine": id, "iteration": j})
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Timeout waiting for concurrent writes")
		}
	}
	logger.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1000 {
		t.Errorf("Expected 1000 log lines, got %d", len(lines))
	}
}
