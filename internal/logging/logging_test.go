package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"karat-arcade/internal/config"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcade.log")
	err := Init(config.LogConfig{Level: "info", File: path, MaxMB: 1})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	log.Info().Str("component", "test").Msg("hello")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"hello"`) {
		t.Fatalf("log file missing message, got %q", raw)
	}
	if Writer() == os.Stdout {
		t.Fatal("Writer() should point at the log file, not stdout")
	}
}

func TestInitDefaultsToStdout(t *testing.T) {
	if err := Init(config.LogConfig{Level: "debug"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = Close() })
	if Writer() != os.Stdout {
		t.Fatal("Writer() should be stdout when no file is configured")
	}
}
