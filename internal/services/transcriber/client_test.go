package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/services"
)

func writeMediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return path
}

func TestTranscribeUploadsMultipartForm(t *testing.T) {
	var gotModel, gotLanguage, gotTemperature, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotTemperature = r.FormValue("temperature")
		if file, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
			file.Close()
		} else {
			t.Errorf("form file: %v", err)
		}
		json.NewEncoder(w).Encode(Result{Text: "hello world", Duration: 4.2})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "whisper-1", Language: "en"})
	result, err := client.Transcribe(context.Background(), writeMediaFile(t, "clip.mp3"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Duration != 4.2 {
		t.Fatalf("unexpected duration %.1f", result.Duration)
	}
	if gotModel != "whisper-1" || gotLanguage != "en" {
		t.Fatalf("unexpected form fields model=%q language=%q", gotModel, gotLanguage)
	}
	if gotTemperature != "0" {
		t.Fatalf("unexpected temperature field %q", gotTemperature)
	}
	if gotFilename != "clip.mp3" {
		t.Fatalf("unexpected upload filename %q", gotFilename)
	}
}

func TestTranscribeRejectsEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Text: "   "})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Transcribe(context.Background(), writeMediaFile(t, "silent.mp3"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeWrapsServerErrorsAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Transcribe(context.Background(), writeMediaFile(t, "clip.mp3"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestTranscribeMissingSourceFile(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing file, got %v", err)
	}
}

func TestTranscribeRequiresBaseURL(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Transcribe(context.Background(), writeMediaFile(t, "clip.mp3"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHealthCheckToleratesClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected 404 tolerated, got %v", err)
	}
}

func TestHealthCheckFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error for http 500")
	}
}

func TestSummarizeBodyTruncatesAndCollapses(t *testing.T) {
	long := make([]byte, 0, 600)
	for i := 0; i < 100; i++ {
		long = append(long, []byte("word  ")...)
	}
	summary := summarizeBody(long)
	if len([]rune(summary)) > 170 {
		t.Fatalf("summary too long: %d runes", len([]rune(summary)))
	}
	if summarizeBody(nil) != "<empty>" {
		t.Fatal("expected <empty> placeholder for empty body")
	}
}
