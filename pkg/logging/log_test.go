package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLogMode(InfoMode)
	})
	return &buf
}

func TestLogModeFiltering(t *testing.T) {
	buf := captureLog(t)

	SetLogMode(WarningMode)
	Infof("hidden %d", 1)
	Warningf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info message written in warning mode: %q", out)
	}
	if !strings.Contains(out, "WARNING shown 2") {
		t.Errorf("Expected warning message in output, got %q", out)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]ModeFlag{
		"debug":  DebugMode,
		"":       InfoMode,
		"WARN":   WarningMode,
		"error":  ErrorMode,
		"silent": SilentMode,
	}
	for level, expected := range cases {
		got, err := ParseMode(level)
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", level, err)
		}
		if got != expected {
			t.Errorf("Expected mode %d for %q, got %d", expected, level, got)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Error("Expected error for unknown level, got nil")
	}
}

func TestSetLoggerWritesFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	t.Cleanup(func() {
		Shutdown()
		log.SetOutput(os.Stderr)
		SetLogMode(InfoMode)
	})

	logfile := filepath.Join(t.TempDir(), "viewer.log")
	cfg := &LogConfig{Logfile: logfile, MaxSize: 1, MaxAge: 1, Level: "debug"}
	if err := cfg.SetLogger(); err != nil {
		t.Fatalf("Failed to set logger: %v", err)
	}
	Debugf("plane fetched")
	Shutdown()

	data, err := os.ReadFile(logfile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "DEBUG plane fetched") {
		t.Errorf("Expected debug line in log file, got %q", string(data))
	}
}
