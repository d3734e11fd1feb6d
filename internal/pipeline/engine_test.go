package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/pipeline"
	"revoice/internal/review"
	"revoice/internal/services"
	"revoice/internal/settings"
	"revoice/internal/stage"
	"revoice/internal/testsupport"
)

type stubHandler struct {
	name    string
	execute func(ctx context.Context, record *media.FileRecord) error
}

func (s *stubHandler) Prepare(ctx context.Context, record *media.FileRecord) error {
	record.ErrorMessage = ""
	return nil
}

func (s *stubHandler) Execute(ctx context.Context, record *media.FileRecord) error {
	if s.execute != nil {
		return s.execute(ctx, record)
	}
	return nil
}

func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func passthroughStages() pipeline.StageSet {
	return pipeline.StageSet{
		Transcriber: &stubHandler{name: "transcription", execute: func(ctx context.Context, record *media.FileRecord) error {
			record.TranscriptionText = "transcript"
			record.SetProgress(media.ProgressTranscribed, "Transcription complete")
			return nil
		}},
		Rewriter: &stubHandler{name: "rewrite", execute: func(ctx context.Context, record *media.FileRecord) error {
			record.RewriteText = "rewritten"
			record.SetProgress(media.ProgressRewritten, "Text processing complete")
			return nil
		}},
		Synthesizer: &stubHandler{name: "synthesis", execute: func(ctx context.Context, record *media.FileRecord) error {
			record.AudioPath = "/tmp/out.mp3"
			record.SetProgress(media.ProgressCompleted, "Speech generation complete")
			return nil
		}},
	}
}

func newEngine(t *testing.T, set pipeline.StageSet) (*pipeline.Engine, *media.Store, *settings.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)
	engine := pipeline.New(cfg, store, settingsStore, logging.NewNop())
	engine.ConfigureStages(set)
	return engine, store, settingsStore, cfg
}

func addRecord(t *testing.T, store *media.Store, name string) *media.FileRecord {
	t.Helper()
	source := testsupport.WriteSourceFile(t, t.TempDir(), name)
	records, err := store.AddFiles(context.Background(), []string{source})
	if err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}
	return records[0]
}

func waitForStatus(t *testing.T, store *media.Store, id int64, want media.Status) *media.FileRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		record, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if record != nil && record.Status == want {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	record, _ := store.GetByID(context.Background(), id)
	t.Fatalf("record %d never reached %s (last seen %#v)", id, want, record)
	return nil
}

func TestStartBatchRunsFileToCompletion(t *testing.T) {
	engine, store, _, _ := newEngine(t, passthroughStages())
	record := addRecord(t, store, "clip.mp3")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	queued, err := engine.StartBatch(context.Background())
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected 1 queued record, got %d", queued)
	}

	done := waitForStatus(t, store, record.ID, media.StatusCompleted)
	if done.TranscriptionText != "transcript" || done.RewriteText != "rewritten" {
		t.Fatalf("stage output missing: %#v", done)
	}
	if done.ProgressPercent != media.ProgressCompleted {
		t.Fatalf("unexpected progress %.1f", done.ProgressPercent)
	}
	if done.AudioPath == "" {
		t.Fatal("expected audio path recorded")
	}
}

func TestReviewModeDefersRewrittenRecords(t *testing.T) {
	engine, store, settingsStore, _ := newEngine(t, passthroughStages())

	next := settingsStore.Snapshot()
	next.BatchReviewMode = true
	if err := settingsStore.Update(next); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	gate := review.New(store, engine, logging.NewNop())
	engine.SetReviewGate(gate)

	record := addRecord(t, store, "clip.mp3")
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	if _, err := engine.StartBatch(context.Background()); err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}

	waiting := waitForStatus(t, store, record.ID, media.StatusReviewPending)
	if waiting.RewriteText != "rewritten" {
		t.Fatalf("expected rewrite to finish before review, got %#v", waiting)
	}
	if gate.PendingCount() != 1 {
		t.Fatalf("expected 1 pending review, got %d", gate.PendingCount())
	}

	if err := gate.Approve(context.Background(), record.ID, review.Edits{}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	waitForStatus(t, store, record.ID, media.StatusCompleted)
	if gate.PendingCount() != 0 {
		t.Fatalf("expected empty review queue, got %d", gate.PendingCount())
	}
}

func TestStageFailureMarksRecordFailed(t *testing.T) {
	set := passthroughStages()
	set.Rewriter = &stubHandler{name: "rewrite", execute: func(ctx context.Context, record *media.FileRecord) error {
		return services.Wrap(services.ErrTransient, media.StageAIProcessing, "rewrite", "service down", nil)
	}}
	engine, store, _, _ := newEngine(t, set)
	record := addRecord(t, store, "clip.mp3")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	if _, err := engine.StartBatch(context.Background()); err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}

	failed := waitForStatus(t, store, record.ID, media.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("expected error message on failed record")
	}
	if failed.TranscriptionText != "transcript" {
		t.Fatal("expected transcription stage output to survive failure")
	}

	// Stop first so the retried record stays queued instead of failing again.
	engine.Stop()
	retried, err := engine.RetryFailedFiles(context.Background())
	if err != nil {
		t.Fatalf("RetryFailedFiles failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried record, got %d", retried)
	}
	reset, err := store.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reset.Status != media.StatusPending {
		t.Fatalf("expected pending after retry, got %s", reset.Status)
	}
	if engine.QueueDepth() != 1 {
		t.Fatalf("expected retried record queued, got depth %d", engine.QueueDepth())
	}
}

func TestBatchProcessesFilesInOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	recordCall := func(stageName string, id int64) {
		mu.Lock()
		calls = append(calls, fmt.Sprintf("%s:%d", stageName, id))
		mu.Unlock()
	}
	set := pipeline.StageSet{
		Transcriber: &stubHandler{name: "transcription", execute: func(ctx context.Context, record *media.FileRecord) error {
			recordCall("transcription", record.ID)
			record.TranscriptionText = "transcript"
			record.SetProgress(media.ProgressTranscribed, "Transcription complete")
			return nil
		}},
		Rewriter: &stubHandler{name: "rewrite", execute: func(ctx context.Context, record *media.FileRecord) error {
			recordCall("rewrite", record.ID)
			record.RewriteText = "rewritten"
			record.SetProgress(media.ProgressRewritten, "Text processing complete")
			return nil
		}},
		Synthesizer: &stubHandler{name: "synthesis", execute: func(ctx context.Context, record *media.FileRecord) error {
			recordCall("synthesis", record.ID)
			record.AudioPath = "/tmp/out.mp3"
			record.SetProgress(media.ProgressCompleted, "Speech generation complete")
			return nil
		}},
	}
	engine, store, _, _ := newEngine(t, set)
	first := addRecord(t, store, "first.mp3")
	second := addRecord(t, store, "second.mp3")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	queued, err := engine.StartBatch(context.Background())
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if queued != 2 {
		t.Fatalf("expected 2 queued records, got %d", queued)
	}

	waitForStatus(t, store, first.ID, media.StatusCompleted)
	waitForStatus(t, store, second.ID, media.StatusCompleted)

	want := []string{
		fmt.Sprintf("transcription:%d", first.ID),
		fmt.Sprintf("rewrite:%d", first.ID),
		fmt.Sprintf("synthesis:%d", first.ID),
		fmt.Sprintf("transcription:%d", second.ID),
		fmt.Sprintf("rewrite:%d", second.ID),
		fmt.Sprintf("synthesis:%d", second.ID),
	}
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != len(want) {
		t.Fatalf("unexpected stage calls %v", calls)
	}
	for i, call := range want {
		if calls[i] != call {
			t.Fatalf("call %d = %s, want %s (all: %v)", i, calls[i], call, calls)
		}
	}
}

func TestRemoveFileWhileProcessing(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	set := passthroughStages()
	set.Transcriber = &stubHandler{name: "transcription", execute: func(ctx context.Context, record *media.FileRecord) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		record.TranscriptionText = "transcript"
		record.SetProgress(media.ProgressTranscribed, "Transcription complete")
		return nil
	}}
	engine, store, _, _ := newEngine(t, set)
	record := addRecord(t, store, "clip.mp3")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()
	if _, err := engine.StartBatch(context.Background()); err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}

	<-started
	removed, err := engine.RemoveFile(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if !removed {
		t.Fatal("expected in-flight record removed")
	}
	close(release)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if engine.ActiveID() == 0 && engine.QueueDepth() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	gone, err := store.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected removal to stick after the stage finished, got %#v", gone)
	}
}

func TestRetryFailedFilesReenqueues(t *testing.T) {
	var attempts atomic.Int32
	set := passthroughStages()
	set.Rewriter = &stubHandler{name: "rewrite", execute: func(ctx context.Context, record *media.FileRecord) error {
		if attempts.Add(1) == 1 {
			return services.Wrap(services.ErrTransient, media.StageAIProcessing, "rewrite", "service down", nil)
		}
		record.RewriteText = "rewritten"
		record.SetProgress(media.ProgressRewritten, "Text processing complete")
		return nil
	}}
	engine, store, _, _ := newEngine(t, set)
	record := addRecord(t, store, "clip.mp3")

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()
	if _, err := engine.StartBatch(context.Background()); err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	waitForStatus(t, store, record.ID, media.StatusFailed)

	retried, err := engine.RetryFailedFiles(context.Background())
	if err != nil {
		t.Fatalf("RetryFailedFiles failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried record, got %d", retried)
	}

	// No second StartBatch: the retry alone puts the record back in the queue.
	done := waitForStatus(t, store, record.ID, media.StatusCompleted)
	if done.RewriteText != "rewritten" {
		t.Fatalf("unexpected rewrite text %q", done.RewriteText)
	}
}

func TestStartBatchScopedToIDs(t *testing.T) {
	engine, store, _, _ := newEngine(t, passthroughStages())
	finished := addRecord(t, store, "finished.mp3")
	wanted := addRecord(t, store, "wanted.mp3")
	bystander := addRecord(t, store, "bystander.mp3")

	finished.Status = media.StatusCompleted
	if err := store.Update(context.Background(), finished); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := engine.StartBatch(context.Background(), finished.ID); err == nil || !errors.Is(err, pipeline.ErrNothingEligible) {
		t.Fatalf("expected ErrNothingEligible for completed id, got %v", err)
	}

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Stop()

	queued, err := engine.StartBatch(context.Background(), wanted.ID, wanted.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected duplicate id queued once, got %d", queued)
	}

	waitForStatus(t, store, wanted.ID, media.StatusCompleted)
	untouched, err := store.GetByID(context.Background(), bystander.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != media.StatusPending {
		t.Fatalf("expected bystander left pending, got %s", untouched.Status)
	}
}

func TestStartBatchWithEmptyQueue(t *testing.T) {
	engine, _, _, _ := newEngine(t, passthroughStages())
	_, err := engine.StartBatch(context.Background())
	if !errors.Is(err, pipeline.ErrNothingEligible) {
		t.Fatalf("expected ErrNothingEligible, got %v", err)
	}
}

func TestRemoveFileDeletesQueuedRecord(t *testing.T) {
	engine, store, _, _ := newEngine(t, passthroughStages())
	record := addRecord(t, store, "clip.mp3")

	engine.Enqueue(record.ID)
	if engine.QueueDepth() != 1 {
		t.Fatalf("expected queue depth 1, got %d", engine.QueueDepth())
	}

	removed, err := engine.RemoveFile(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if !removed {
		t.Fatal("expected record removed")
	}
	if engine.QueueDepth() != 0 {
		t.Fatalf("expected empty queue, got depth %d", engine.QueueDepth())
	}
	gone, err := store.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone != nil {
		t.Fatal("expected record deleted from store")
	}
}

func TestReprocessRequiresTranscription(t *testing.T) {
	engine, store, _, _ := newEngine(t, passthroughStages())
	record := addRecord(t, store, "clip.mp3")

	err := engine.Reprocess(context.Background(), record.ID)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	err = engine.Reprocess(context.Background(), 9999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestReprocessKeepsStatusAndProgress(t *testing.T) {
	engine, store, _, _ := newEngine(t, passthroughStages())
	record := addRecord(t, store, "clip.mp3")

	record.Status = media.StatusCompleted
	record.TranscriptionText = "transcript"
	record.RewriteText = "old rewrite"
	record.SetProgress(media.ProgressCompleted, "Speech generation complete")
	if err := store.Update(context.Background(), record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := engine.Reprocess(context.Background(), record.ID); err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}

	after, err := store.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.RewriteText != "rewritten" {
		t.Fatalf("expected fresh rewrite text, got %q", after.RewriteText)
	}
	if after.Status != media.StatusCompleted {
		t.Fatalf("expected status preserved, got %s", after.Status)
	}
	if after.ProgressPercent != media.ProgressCompleted {
		t.Fatalf("expected progress preserved, got %.1f", after.ProgressPercent)
	}
}
