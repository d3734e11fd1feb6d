package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/export"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/testsupport"
)

func addCompletedRecord(t *testing.T, store *media.Store, cfgAudioDir, name string) *media.FileRecord {
	t.Helper()
	ctx := context.Background()
	source := testsupport.WriteSourceFile(t, t.TempDir(), name)
	records, err := store.AddFiles(ctx, []string{source})
	if err != nil {
		t.Fatalf("AddFiles failed: %v", err)
	}
	record := records[0]

	audioPath := filepath.Join(cfgAudioDir, strings.TrimSuffix(name, filepath.Ext(name))+".mp3")
	if err := os.WriteFile(audioPath, []byte("fake-audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	record.Status = media.StatusCompleted
	record.TranscriptionText = "transcript for " + name
	record.RewriteText = "rewrite for " + name
	record.AudioPath = audioPath
	record.AudioFormat = "mp3"
	record.AudioVoice = "af_heart"
	if err := store.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return record
}

func TestExportAllProducesZipBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := export.New(cfg, store, logging.NewNop())

	record := addCompletedRecord(t, store, cfg.Paths.AudioDir, "morning_notes.mp3")

	path, count, err := service.Export(context.Background(), export.KindAll)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record exported, got %d", count)
	}
	if !strings.HasPrefix(filepath.Base(path), "revoice-export-") || !strings.HasSuffix(path, ".zip") {
		t.Fatalf("unexpected export path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}

	names := make(map[string]bool)
	for _, entry := range zr.File {
		names[entry.Name] = true
	}
	dir := "001-morning_notes"
	for _, want := range []string{
		dir + "/transcript.txt",
		dir + "/rewrite.txt",
		dir + "/morning_notes.mp3",
		dir + "/metadata.json",
	} {
		if !names[want] {
			t.Fatalf("zip missing entry %s (have %v)", want, names)
		}
	}

	entry, err := zr.Open(dir + "/metadata.json")
	if err != nil {
		t.Fatalf("open metadata: %v", err)
	}
	defer entry.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(entry); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if !strings.Contains(buf.String(), record.DisplayName) {
		t.Fatalf("metadata missing display name: %s", buf.String())
	}
}

func TestExportTranscriptsWritesTextBundle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := export.New(cfg, store, logging.NewNop())

	addCompletedRecord(t, store, cfg.Paths.AudioDir, "first.mp3")
	addCompletedRecord(t, store, cfg.Paths.AudioDir, "second.mp3")

	path, count, err := service.Export(context.Background(), export.KindTranscripts)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "=== 001 First ===") {
		t.Fatalf("missing first header in %q", body)
	}
	if !strings.Contains(body, "transcript for second.mp3") {
		t.Fatalf("missing second transcript in %q", body)
	}
	if strings.Contains(body, "rewrite for") {
		t.Fatal("transcript bundle should not contain rewrites")
	}
}

func TestExportAudioBundlesFlatZip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := export.New(cfg, store, logging.NewNop())

	addCompletedRecord(t, store, cfg.Paths.AudioDir, "clip.mp3")

	path, _, err := service.Export(context.Background(), export.KindAudio)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "clip.mp3" {
		t.Fatalf("unexpected zip contents %v", zr.File)
	}
}

func TestExportWithNoCompletedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := export.New(cfg, store, logging.NewNop())

	_, _, err := service.Export(context.Background(), export.KindAll)
	if !errors.Is(err, export.ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
}

func TestExportRemovesFileWhenNothingWritten(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := export.New(cfg, store, logging.NewNop())

	// A completed record without a transcript yields an empty transcript bundle.
	record := addCompletedRecord(t, store, cfg.Paths.AudioDir, "clip.mp3")
	record.TranscriptionText = ""
	if err := store.Update(context.Background(), record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, _, err := service.Export(context.Background(), export.KindTranscripts)
	if !errors.Is(err, export.ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.ExportDir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty export dir, found %v", entries)
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		input string
		want  export.Kind
		ok    bool
	}{
		{"", export.KindAll, true},
		{"ALL", export.KindAll, true},
		{"transcripts", export.KindTranscripts, true},
		{" rewrites ", export.KindRewrites, true},
		{"audio", export.KindAudio, true},
		{"video", "", false},
	}
	for _, tc := range cases {
		got, ok := export.ParseKind(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseKind(%q) = %q %v, want %q %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}
