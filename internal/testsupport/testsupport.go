// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/config"
	"revoice/internal/media"
	"revoice/internal/settings"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "revoice.sock")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.SettleDelayMillis = 0
	// Keep tests hermetic: no test should reach a live speech service.
	cfgVal.Speech.BaseURL = "http://127.0.0.1:1"
	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfgVal
}

// MustOpenStore opens a record store backed by the test config and closes it
// when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *media.Store {
	t.Helper()

	store, err := media.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewSettings creates a settings store under the test config's data directory.
func NewSettings(t testing.TB, cfg *config.Config) *settings.Store {
	t.Helper()

	store, err := settings.NewStore(cfg.SettingsPath())
	if err != nil {
		t.Fatalf("open settings store: %v", err)
	}
	return store
}

// WriteSourceFile creates a small media file under the test temp directory
// and returns its path.
func WriteSourceFile(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("test-audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
