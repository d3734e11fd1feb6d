// Package settings persists operator-adjustable runtime settings that apply
// per stage invocation rather than per daemon start.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Speed bounds accepted by the speech synthesis services.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// DefaultRewritePrompt is the instruction applied when the operator has not
// customized text processing.
const DefaultRewritePrompt = "Clean up this transcription: fix grammar and punctuation, remove filler words, and keep the original meaning intact."

// Settings captures the runtime knobs an operator can change between batches.
// A snapshot is taken at the start of each stage invocation, so edits made
// while a file is mid-stage apply from the next stage onward.
type Settings struct {
	BatchReviewMode bool    `json:"batch_review_mode"`
	RewritePrompt   string  `json:"rewrite_prompt"`
	Voice           string  `json:"voice"`
	Speed           float64 `json:"speed"`
	PreserveEdits   bool    `json:"preserve_edits"`
}

// Default returns the settings applied on first run.
func Default() Settings {
	return Settings{
		BatchReviewMode: false,
		RewritePrompt:   DefaultRewritePrompt,
		Voice:           "af_heart",
		Speed:           1.0,
		PreserveEdits:   false,
	}
}

func (s *Settings) normalize() {
	s.RewritePrompt = strings.TrimSpace(s.RewritePrompt)
	if s.RewritePrompt == "" {
		s.RewritePrompt = DefaultRewritePrompt
	}
	s.Voice = strings.TrimSpace(s.Voice)
	if s.Voice == "" {
		s.Voice = Default().Voice
	}
	if s.Speed < MinSpeed || s.Speed > MaxSpeed {
		s.Speed = 1.0
	}
}

// Validate rejects values the downstream services would refuse.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Voice) == "" {
		return errors.New("voice must be set")
	}
	if s.Speed < MinSpeed || s.Speed > MaxSpeed {
		return fmt.Errorf("speed must be between %.2f and %.2f", MinSpeed, MaxSpeed)
	}
	return nil
}

// Store persists settings in a single JSON file on disk. Reads and writes are
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Settings
}

// NewStore creates a JSON-backed settings store, loading existing settings or
// defaults when the file is missing.
func NewStore(path string) (*Store, error) {
	store := &Store{path: path}
	loaded, err := store.load()
	if err != nil {
		return nil, err
	}
	store.current = loaded
	return store, nil
}

func (s *Store) load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	loaded.normalize()
	return loaded, nil
}

// Snapshot returns a copy of the current settings. Stage handlers call this at
// the start of each invocation so a stage sees one consistent view.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates, applies, and persists new settings.
func (s *Store) Update(next Settings) error {
	next.normalize()
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

func (s *Store) save(value Settings) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
