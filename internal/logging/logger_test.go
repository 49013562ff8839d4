package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.WithIdea("idea-1").WithStage("requirements").Info("stage evaluated", "complete", true)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}

	if entry["msg"] != "stage evaluated" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["idea_id"] != "idea-1" {
		t.Errorf("idea_id = %v", entry["idea_id"])
	}
	if entry["stage"] != "requirements" {
		t.Errorf("stage = %v", entry["stage"])
	}
	if entry["complete"] != true {
		t.Errorf("complete = %v", entry["complete"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "should be filtered") {
		t.Error("INFO message leaked through WARN level")
	}
	if !strings.Contains(content, "should appear") {
		t.Error("WARN message missing")
	}
}

func TestChildLoggerDoesNotMutateParent(t *testing.T) {
	parent := NopLogger()
	child := parent.WithIdea("idea-9")

	if len(parent.attrs) != 0 {
		t.Errorf("parent attrs mutated: %v", parent.attrs)
	}
	if len(child.attrs) != 1 {
		t.Errorf("child attrs = %v", child.attrs)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
