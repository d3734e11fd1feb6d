package transcription_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
	"revoice/internal/services/transcriber"
	"revoice/internal/testsupport"
	"revoice/internal/transcription"
)

type stubClient struct {
	result    transcriber.Result
	err       error
	healthErr error
	calls     int
}

func (s *stubClient) Transcribe(ctx context.Context, sourcePath string) (transcriber.Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubClient) HealthCheck(ctx context.Context) error {
	return s.healthErr
}

func TestExecuteStoresTranscription(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	client := &stubClient{result: transcriber.Result{Text: "recognized words", Duration: 9.5}}
	handler := transcription.NewWithClient(store, settingsStore, client, logging.NewNop())

	record := &media.FileRecord{
		ID:         1,
		SourcePath: testsupport.WriteSourceFile(t, t.TempDir(), "clip.mp3"),
		Status:     media.StatusTranscribing,
	}
	if err := handler.Prepare(context.Background(), record); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if record.TranscriptionText != "recognized words" {
		t.Fatalf("unexpected transcription %q", record.TranscriptionText)
	}
	if record.TranscriptionDuration != 9.5 {
		t.Fatalf("unexpected duration %.1f", record.TranscriptionDuration)
	}
	if record.ProgressPercent != media.ProgressTranscribed {
		t.Fatalf("unexpected progress %.1f", record.ProgressPercent)
	}
	if _, ok := record.Timestamps()[media.StageTranscription]; !ok {
		t.Fatal("expected transcription stage timestamp")
	}
}

func TestExecuteKeepsOperatorEditWhenPreserveEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	next := settingsStore.Snapshot()
	next.PreserveEdits = true
	if err := settingsStore.Update(next); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	client := &stubClient{result: transcriber.Result{Text: "machine output"}}
	handler := transcription.NewWithClient(store, settingsStore, client, logging.NewNop())

	record := &media.FileRecord{
		ID:                  2,
		SourcePath:          testsupport.WriteSourceFile(t, t.TempDir(), "clip.mp3"),
		TranscriptionText:   "operator corrected text",
		TranscriptionEdited: true,
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.TranscriptionText != "operator corrected text" {
		t.Fatalf("expected edit preserved, got %q", record.TranscriptionText)
	}
	if !record.TranscriptionEdited {
		t.Fatal("expected edited flag to survive")
	}
}

func TestPrepareRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)
	handler := transcription.NewWithClient(store, settingsStore, &stubClient{}, logging.NewNop())

	record := &media.FileRecord{
		ID:         3,
		SourcePath: filepath.Join(t.TempDir(), "gone.mp3"),
	}
	err := handler.Prepare(context.Background(), record)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecutePropagatesClientError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	wrapped := services.Wrap(services.ErrTransient, "transcription", "transcribe", "service down", nil)
	handler := transcription.NewWithClient(store, settingsStore, &stubClient{err: wrapped}, logging.NewNop())

	record := &media.FileRecord{
		ID:         4,
		SourcePath: testsupport.WriteSourceFile(t, t.TempDir(), "clip.mp3"),
	}
	err := handler.Execute(context.Background(), record)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestHealthCheckReportsClientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	healthy := transcription.NewWithClient(store, settingsStore, &stubClient{}, logging.NewNop())
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy stage, got %q", health.Detail)
	}

	failing := transcription.NewWithClient(store, settingsStore, &stubClient{healthErr: errors.New("unreachable")}, logging.NewNop())
	health := failing.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage")
	}
	if health.Detail != "unreachable" {
		t.Fatalf("unexpected detail %q", health.Detail)
	}
}
