package settings_test

import (
	"path/filepath"
	"testing"

	"revoice/internal/settings"
)

func TestNewStoreUsesDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := settings.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	current := store.Snapshot()
	if current.BatchReviewMode {
		t.Fatal("expected review mode off by default")
	}
	if current.RewritePrompt != settings.DefaultRewritePrompt {
		t.Fatalf("unexpected default prompt %q", current.RewritePrompt)
	}
	if current.Speed != 1.0 {
		t.Fatalf("unexpected default speed %.2f", current.Speed)
	}
}

func TestUpdatePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := settings.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	next := store.Snapshot()
	next.BatchReviewMode = true
	next.Voice = "am_adam"
	next.Speed = 1.5
	next.RewritePrompt = "Summarize the text."
	if err := store.Update(next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded, err := settings.NewStore(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.Snapshot()
	if !got.BatchReviewMode || got.Voice != "am_adam" || got.Speed != 1.5 {
		t.Fatalf("unexpected reloaded settings: %#v", got)
	}
	if got.RewritePrompt != "Summarize the text." {
		t.Fatalf("unexpected reloaded prompt %q", got.RewritePrompt)
	}
}

func TestUpdateNormalizesOutOfRangeSpeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := settings.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	next := store.Snapshot()
	next.Speed = 99
	next.RewritePrompt = "   "
	if err := store.Update(next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got := store.Snapshot()
	if got.Speed != 1.0 {
		t.Fatalf("expected clamped speed 1.0, got %.2f", got.Speed)
	}
	if got.RewritePrompt != settings.DefaultRewritePrompt {
		t.Fatalf("expected default prompt restored, got %q", got.RewritePrompt)
	}
}

func TestValidateRejectsEmptyVoice(t *testing.T) {
	s := settings.Default()
	s.Voice = "  "
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for empty voice")
	}
}
