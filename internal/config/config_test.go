package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Transcriber.BaseURL != "http://127.0.0.1:8020" {
		t.Fatalf("unexpected transcriber base URL %q", cfg.Transcriber.BaseURL)
	}
	if cfg.Speech.Format != "mp3" {
		t.Fatalf("unexpected speech format %q", cfg.Speech.Format)
	}
	if cfg.Workflow.QueuePollInterval != 5 {
		t.Fatalf("unexpected poll interval %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(base, "data") + `"

[transcriber]
base_url = "http://stt.local:9000/"

[speech]
format = "WAV"

[logging]
format = "weird"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Paths.DataDir != filepath.Join(base, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Transcriber.BaseURL != "http://stt.local:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Transcriber.BaseURL)
	}
	if cfg.Speech.Format != "wav" {
		t.Fatalf("expected lowercased format, got %q", cfg.Speech.Format)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected unknown log format to fall back to console, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidSpeechFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[speech]
format = "ogg"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error for unsupported speech format")
	}
	if !strings.Contains(err.Error(), "speech.format") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsInvertedHeartbeatWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[workflow]
heartbeat_interval = 30
heartbeat_timeout = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error when heartbeat timeout does not exceed interval")
	}
}

func TestRewriterAPIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("REVOICE_REWRITER_API_KEY", "unused")
	os.Unsetenv("REVOICE_REWRITER_API_KEY")
	t.Setenv("OPENROUTER_API_KEY", " sk-or-test ")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Rewriter.APIKey != "sk-or-test" {
		t.Fatalf("expected env fallback key, got %q", cfg.Rewriter.APIKey)
	}
}

func TestExpandPathResolvesHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("resolve home: %v", err)
	}

	expanded, err := config.ExpandPath("~/revoice-exports")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if expanded != filepath.Join(home, "revoice-exports") {
		t.Fatalf("unexpected expansion %q", expanded)
	}
}

func TestDatabaseAndSettingsPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/var/lib/revoice"

	if cfg.DatabasePath() != "/var/lib/revoice/revoice.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.SettingsPath() != "/var/lib/revoice/settings.json" {
		t.Fatalf("unexpected settings path %q", cfg.SettingsPath())
	}
}
