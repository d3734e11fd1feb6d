package rewrite_test

import (
	"context"
	"errors"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/rewrite"
	"revoice/internal/services"
	"revoice/internal/services/rewriter"
	"revoice/internal/settings"
	"revoice/internal/testsupport"
)

type stubClient struct {
	result    rewriter.Result
	err       error
	healthErr error
	gotPrompt string
	calls     int
}

func (s *stubClient) Rewrite(ctx context.Context, prompt, text string) (rewriter.Result, error) {
	s.calls++
	s.gotPrompt = prompt
	return s.result, s.err
}

func (s *stubClient) HealthCheck(ctx context.Context) error {
	return s.healthErr
}

func newHandler(t *testing.T, client *stubClient) (*rewrite.Rewriter, *settings.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)
	return rewrite.NewWithClient(store, settingsStore, client, logging.NewNop()), settingsStore
}

func TestExecuteStoresRewriteResult(t *testing.T) {
	client := &stubClient{result: rewriter.Result{
		Text:        "polished narrative",
		Model:       "provider/model",
		TotalTokens: 321,
	}}
	handler, settingsStore := newHandler(t, client)

	record := &media.FileRecord{
		ID:                1,
		TranscriptionText: "raw words",
		Status:            media.StatusRewriting,
	}
	if err := handler.Prepare(context.Background(), record); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if record.RewriteText != "polished narrative" {
		t.Fatalf("unexpected rewrite text %q", record.RewriteText)
	}
	if record.RewriteModel != "provider/model" || record.RewriteTokens != 321 {
		t.Fatalf("unexpected model metadata %q %d", record.RewriteModel, record.RewriteTokens)
	}
	if record.RewritePrompt != settingsStore.Snapshot().RewritePrompt {
		t.Fatalf("expected active prompt recorded, got %q", record.RewritePrompt)
	}
	if record.ProgressPercent != media.ProgressRewritten {
		t.Fatalf("unexpected progress %.1f", record.ProgressPercent)
	}
	if client.gotPrompt != settingsStore.Snapshot().RewritePrompt {
		t.Fatalf("unexpected prompt sent to client %q", client.gotPrompt)
	}
}

func TestExecuteKeepsOperatorEditWhenPreserveEnabled(t *testing.T) {
	client := &stubClient{result: rewriter.Result{Text: "machine output"}}
	handler, settingsStore := newHandler(t, client)

	next := settingsStore.Snapshot()
	next.PreserveEdits = true
	if err := settingsStore.Update(next); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	record := &media.FileRecord{
		ID:                2,
		TranscriptionText: "raw words",
		RewriteText:       "operator approved script",
		RewriteEdited:     true,
	}
	if err := handler.Execute(context.Background(), record); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if record.RewriteText != "operator approved script" {
		t.Fatalf("expected edit preserved, got %q", record.RewriteText)
	}
	if client.calls != 0 {
		t.Fatalf("expected no LLM call, got %d", client.calls)
	}
	if record.ProgressPercent != media.ProgressRewritten {
		t.Fatalf("unexpected progress %.1f", record.ProgressPercent)
	}
}

func TestPrepareRequiresTranscription(t *testing.T) {
	handler, _ := newHandler(t, &stubClient{})

	record := &media.FileRecord{ID: 3, TranscriptionText: "   "}
	err := handler.Prepare(context.Background(), record)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecutePropagatesClientError(t *testing.T) {
	wrapped := services.Wrap(services.ErrConfiguration, "ai_processing", "rewrite", "no api key", nil)
	handler, _ := newHandler(t, &stubClient{err: wrapped})

	record := &media.FileRecord{ID: 4, TranscriptionText: "raw words"}
	err := handler.Execute(context.Background(), record)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHealthCheckReportsClientFailure(t *testing.T) {
	handler, _ := newHandler(t, &stubClient{healthErr: errors.New("api key required")})
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage")
	}
	if health.Name != "rewrite" {
		t.Fatalf("unexpected stage name %q", health.Name)
	}
}
