package synthesis_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
	"revoice/internal/services/speech"
	"revoice/internal/synthesis"
	"revoice/internal/testsupport"
)

type stubClient struct {
	format    string
	err       error
	healthErr error
	gotReq    speech.Request
	gotDest   string
}

func (s *stubClient) Synthesize(ctx context.Context, req speech.Request, destPath string) (speech.Result, error) {
	s.gotReq = req
	s.gotDest = destPath
	if s.err != nil {
		return speech.Result{}, s.err
	}
	return speech.Result{Path: destPath, Format: s.Format(), Bytes: 2048}, nil
}

func (s *stubClient) Format() string {
	if s.format == "" {
		return "mp3"
	}
	return s.format
}

func (s *stubClient) HealthCheck(ctx context.Context) error {
	return s.healthErr
}

func TestExecuteSynthesizesRewriteText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	client := &stubClient{}
	handler := synthesis.NewWithClient(store, settingsStore, client, cfg.Paths.AudioDir, logging.NewNop())

	record := &media.FileRecord{
		ID:                7,
		SourcePath:        "/media/morning_notes.mp3",
		TranscriptionText: "raw words",
		RewriteText:       "polished narrative",
		Status:            media.StatusSynthesizing,
	}
	if err := handler.Prepare(context.Background(), record); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if client.gotReq.Text != "polished narrative" {
		t.Fatalf("expected processed text synthesized, got %q", client.gotReq.Text)
	}
	if client.gotReq.Voice != settingsStore.Snapshot().Voice {
		t.Fatalf("unexpected voice %q", client.gotReq.Voice)
	}
	wantDest := filepath.Join(cfg.Paths.AudioDir, "7_morning_notes.mp3")
	if client.gotDest != wantDest {
		t.Fatalf("unexpected destination %q", client.gotDest)
	}
	if record.AudioPath != wantDest || record.AudioFormat != "mp3" {
		t.Fatalf("unexpected audio metadata %q %q", record.AudioPath, record.AudioFormat)
	}
	if record.ProgressPercent != media.ProgressCompleted {
		t.Fatalf("unexpected progress %.1f", record.ProgressPercent)
	}
}

func TestExecuteFallsBackToTranscriptionText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	client := &stubClient{format: "wav"}
	handler := synthesis.NewWithClient(store, settingsStore, client, cfg.Paths.AudioDir, logging.NewNop())

	record := &media.FileRecord{
		ID:                8,
		SourcePath:        "/media/interview.mkv",
		TranscriptionText: "only the transcript",
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if client.gotReq.Text != "only the transcript" {
		t.Fatalf("expected transcription fallback, got %q", client.gotReq.Text)
	}
	if !strings.HasSuffix(record.AudioPath, "8_interview.wav") {
		t.Fatalf("unexpected audio path %q", record.AudioPath)
	}
}

func TestPrepareRequiresText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)
	handler := synthesis.NewWithClient(store, settingsStore, &stubClient{}, cfg.Paths.AudioDir, logging.NewNop())

	record := &media.FileRecord{ID: 9, SourcePath: "/media/empty.mp3"}
	err := handler.Prepare(context.Background(), record)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecutePropagatesClientError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	wrapped := services.Wrap(services.ErrTransient, "speech_generation", "synthesize", "service down", nil)
	handler := synthesis.NewWithClient(store, settingsStore, &stubClient{err: wrapped}, cfg.Paths.AudioDir, logging.NewNop())

	record := &media.FileRecord{ID: 10, SourcePath: "/media/clip.mp3", RewriteText: "text"}
	err := handler.Execute(context.Background(), record)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestHealthCheckReportsClientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	handler := synthesis.NewWithClient(store, settingsStore, &stubClient{healthErr: errors.New("unreachable")}, cfg.Paths.AudioDir, logging.NewNop())
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage")
	}
	if health.Name != "synthesis" {
		t.Fatalf("unexpected stage name %q", health.Name)
	}
}
