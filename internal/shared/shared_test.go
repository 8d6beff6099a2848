package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("GenerateID() = %q is not a uuid: %v", id, err)
	}
	if GenerateID() == id {
		t.Error("expected distinct ids")
	}
}

func TestGenerateState(t *testing.T) {
	seen := make(map[string]bool)
	for range 10 {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState() error = %v", err)
		}

		prefix, suffix, ok := strings.Cut(state, ".")
		if !ok {
			t.Fatalf("state %q has no separator", state)
		}
		if _, err := uuid.Parse(prefix); err != nil {
			t.Errorf("state prefix %q is not a uuid", prefix)
		}
		if len(suffix) != 22 {
			t.Errorf("expected 22 char random suffix, got %q", suffix)
		}
		if seen[state] {
			t.Fatalf("duplicate state %q", state)
		}
		seen[state] = true
	}
}

func TestLogging(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "component", "test").Info("hello")

		out := buf.String()
		if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
			t.Errorf("unexpected log output %q", out)
		}
	})

	t.Run("SetLogLevel filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("quiet")

		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "spotistats.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Error("written")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "written") {
			t.Errorf("expected log line in file, got %q", data)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	original := getRuntime
	t.Cleanup(func() { getRuntime = original })

	getRuntime = func() string { return "plan9" }
	err := OpenBrowser("https://example.com")
	if err == nil || !strings.Contains(err.Error(), "unsupported platform: plan9") {
		t.Errorf("expected unsupported platform error, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	t.Run("MarshalJSON", func(t *testing.T) {
		v := map[string]int{"a": 1}

		compact, err := MarshalJSON(v, false)
		if err != nil || string(compact) != `{"a":1}` {
			t.Errorf("compact = %s, %v", compact, err)
		}

		pretty, err := MarshalJSON(v, true)
		if err != nil || string(pretty) != "{\n  \"a\": 1\n}" {
			t.Errorf("pretty = %s, %v", pretty, err)
		}
	})

	t.Run("VisibilityString", func(t *testing.T) {
		if VisibilityString(true) != "Public" || VisibilityString(false) != "Private" {
			t.Error("unexpected visibility labels")
		}
	})
}
