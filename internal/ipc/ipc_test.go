package ipc_test

import (
	"context"
	"strings"
	"testing"

	"revoice/internal/daemon"
	"revoice/internal/ipc"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/pipeline"
	"revoice/internal/review"
	"revoice/internal/stage"
	"revoice/internal/testsupport"
)

type stubHandler struct{ name string }

func (s *stubHandler) Prepare(ctx context.Context, record *media.FileRecord) error { return nil }
func (s *stubHandler) Execute(ctx context.Context, record *media.FileRecord) error { return nil }
func (s *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func startTestServer(t *testing.T) (*ipc.Client, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	settingsStore := testsupport.NewSettings(t, cfg)

	engine := pipeline.New(cfg, store, settingsStore, logging.NewNop())
	engine.ConfigureStages(pipeline.StageSet{
		Transcriber: &stubHandler{name: "transcription"},
		Rewriter:    &stubHandler{name: "rewrite"},
		Synthesizer: &stubHandler{name: "synthesis"},
	})
	gate := review.New(store, engine, logging.NewNop())
	engine.SetReviewGate(gate)

	d, err := daemon.New(cfg, store, settingsStore, engine, gate, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logging.NewNop(), cancel)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.Serve()
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	client, err := ipc.Dial(cfg.Paths.SocketPath)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, cfg.Paths.SocketPath
}

func TestQueueAddAndListRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	source := testsupport.WriteSourceFile(t, t.TempDir(), "roundtrip_take.mp3")
	added, err := client.QueueAdd([]string{source})
	if err != nil {
		t.Fatalf("QueueAdd failed: %v", err)
	}
	if len(added.Files) != 1 {
		t.Fatalf("expected 1 added file, got %d", len(added.Files))
	}
	file := added.Files[0]
	if file.Status != string(media.StatusPending) {
		t.Fatalf("unexpected status %q", file.Status)
	}
	if file.DisplayName != "Roundtrip Take" {
		t.Fatalf("unexpected display name %q", file.DisplayName)
	}

	listed, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listed.Files) != 1 || listed.Files[0].ID != file.ID {
		t.Fatalf("unexpected listing %#v", listed.Files)
	}

	filtered, err := client.QueueList([]string{string(media.StatusCompleted)})
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(filtered.Files) != 0 {
		t.Fatalf("expected empty filtered listing, got %d", len(filtered.Files))
	}

	described, err := client.QueueDescribe(file.ID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if described.File.SourcePath != source {
		t.Fatalf("unexpected source path %q", described.File.SourcePath)
	}
}

func TestQueueDescribeUnknownID(t *testing.T) {
	client, _ := startTestServer(t)

	_, err := client.QueueDescribe(424242)
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	current, err := client.SettingsGet()
	if err != nil {
		t.Fatalf("SettingsGet failed: %v", err)
	}
	if current.Settings.BatchReviewMode {
		t.Fatal("expected review mode off by default")
	}

	next := current.Settings
	next.BatchReviewMode = true
	next.Voice = "am_adam"
	updated, err := client.SettingsSet(ipc.SettingsSetRequest{Settings: next})
	if err != nil {
		t.Fatalf("SettingsSet failed: %v", err)
	}
	if !updated.Settings.BatchReviewMode || updated.Settings.Voice != "am_adam" {
		t.Fatalf("unexpected updated settings %#v", updated.Settings)
	}

	reread, err := client.SettingsGet()
	if err != nil {
		t.Fatalf("SettingsGet failed: %v", err)
	}
	if !reread.Settings.BatchReviewMode {
		t.Fatal("expected persisted review mode")
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	client, _ := startTestServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was not started; expected running=false")
	}
	if len(status.StageHealth) != 3 {
		t.Fatalf("expected 3 stage health entries, got %d", len(status.StageHealth))
	}
	for _, health := range status.StageHealth {
		if !health.Ready {
			t.Fatalf("expected ready stage, got %#v", health)
		}
	}
}

func TestQueueRemoveAndClear(t *testing.T) {
	client, _ := startTestServer(t)

	dir := t.TempDir()
	first := testsupport.WriteSourceFile(t, dir, "first.mp3")
	second := testsupport.WriteSourceFile(t, dir, "second.mp3")
	added, err := client.QueueAdd([]string{first, second})
	if err != nil {
		t.Fatalf("QueueAdd failed: %v", err)
	}

	removed, err := client.QueueRemove(added.Files[0].ID)
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if !removed.Removed {
		t.Fatal("expected record removed")
	}

	cleared, err := client.QueueClear("all")
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 cleared record, got %d", cleared.Removed)
	}

	listed, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listed.Files) != 0 {
		t.Fatalf("expected empty queue, got %d", len(listed.Files))
	}
}

func TestStartScopedToIDs(t *testing.T) {
	client, _ := startTestServer(t)

	dir := t.TempDir()
	first := testsupport.WriteSourceFile(t, dir, "first.mp3")
	second := testsupport.WriteSourceFile(t, dir, "second.mp3")
	added, err := client.QueueAdd([]string{first, second})
	if err != nil {
		t.Fatalf("QueueAdd failed: %v", err)
	}

	_, err = client.Start([]int64{added.Files[1].ID + 100})
	if err == nil || !strings.Contains(err.Error(), "eligible") {
		t.Fatalf("expected eligibility error for unknown id, got %v", err)
	}

	resp, err := client.Start([]int64{added.Files[0].ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if resp.Queued != 1 {
		t.Fatalf("expected 1 queued record, got %d", resp.Queued)
	}
}

func TestVoicesReturnsCatalog(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Voices()
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(resp.Voices) == 0 {
		t.Fatal("expected a non-empty voice catalog")
	}
	found := false
	for _, voice := range resp.Voices {
		if voice == "af_heart" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback catalog to include af_heart, got %v", resp.Voices)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected notification skipped without configured topic")
	}
	if resp.Message == "" {
		t.Fatal("expected explanatory message")
	}
}
