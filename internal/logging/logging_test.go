// v0
// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFansOutToEveryWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := New(slog.LevelInfo, &a, &b).With(slog.String("component", "test"))
	logger.Info("compliance_run_completed", slog.Int("results", 3))
	logger.Debug("hidden")

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		out := buf.String()
		if !strings.Contains(out, "compliance_run_completed") || !strings.Contains(out, "component=test") {
			t.Fatalf("writer %s missing record: %q", name, out)
		}
		if strings.Contains(out, "hidden") {
			t.Fatalf("writer %s logged below level: %q", name, out)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "svc.log")
	l, err := Open(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Info("hello_file")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "hello_file") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, " error ": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
