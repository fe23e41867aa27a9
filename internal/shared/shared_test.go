package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLogger(t *testing.T) {
	t.Run("NewLogger Writes Key Value Pairs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("resolved", "source", "primary")

		out := buf.String()
		if !strings.Contains(out, "resolved") || !strings.Contains(out, "source=primary") {
			t.Errorf("unexpected log output: %q", out)
		}
	})

	t.Run("WithLogger Adds Fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "session")
		logger.Info("refreshed")

		if !strings.Contains(buf.String(), "component=session") {
			t.Errorf("expected component field, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger Creates Directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "tui.log")
		logger, f, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		logger.Info("started")
		f.Close()

		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(string(data), "started") {
			t.Errorf("expected log line in file, got %q (%v)", data, err)
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		tc := []struct {
			in   string
			want log.Level
		}{
			{"debug", log.DebugLevel},
			{" WARN ", log.WarnLevel},
			{"error", log.ErrorLevel},
			{"", log.InfoLevel},
			{"nonsense", log.InfoLevel},
		}

		for _, tt := range tc {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if len(a) != 36 {
		t.Errorf("expected 36 character uuid, got %q", a)
	}
	if a == b {
		t.Error("expected unique ids")
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := MarshalJSON(map[string]int{"a": 1}, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(data) != "{\n  \"a\": 1\n}" {
		t.Errorf("unexpected output %q", string(data))
	}

	data, err = MarshalJSON(map[string]int{"a": 1}, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected output %q", string(data))
	}
}
