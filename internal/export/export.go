// Package export bundles the artifacts of completed records into files under
// the configured export directory.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
)

// ErrNothingToExport is returned when no completed record exists.
var ErrNothingToExport = errors.New("no completed files to export")

// Kind selects which artifact an export covers.
type Kind string

const (
	KindAll         Kind = "all"
	KindTranscripts Kind = "transcripts"
	KindRewrites    Kind = "rewrites"
	KindAudio       Kind = "audio"
)

// ParseKind normalizes an operator-supplied kind string.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case "", KindAll:
		return KindAll, true
	case KindTranscripts:
		return KindTranscripts, true
	case KindRewrites:
		return KindRewrites, true
	case KindAudio:
		return KindAudio, true
	default:
		return "", false
	}
}

// Service writes export bundles for completed records.
type Service struct {
	store     *media.Store
	exportDir string
	logger    *slog.Logger
}

// New constructs an export service rooted at the configured export directory.
func New(cfg *config.Config, store *media.Store, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		exportDir: cfg.Paths.ExportDir,
		logger:    logging.NewComponentLogger(logger, "export"),
	}
}

type recordMetadata struct {
	ID                    int64     `json:"id"`
	SourcePath            string    `json:"source_path"`
	DisplayName           string    `json:"display_name"`
	TranscriptionDuration float64   `json:"transcription_duration_seconds,omitempty"`
	TranscriptionEdited   bool      `json:"transcription_edited,omitempty"`
	RewriteModel          string    `json:"rewrite_model,omitempty"`
	RewritePrompt         string    `json:"rewrite_prompt,omitempty"`
	RewriteTokens         int64     `json:"rewrite_tokens,omitempty"`
	RewriteEdited         bool      `json:"rewrite_edited,omitempty"`
	AudioFormat           string    `json:"audio_format,omitempty"`
	AudioVoice            string    `json:"audio_voice,omitempty"`
	AudioSpeed            float64   `json:"audio_speed,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	StageTimestamps map[string]time.Time `json:"stage_timestamps,omitempty"`
}

// Export bundles completed records of the requested kind and returns the path
// of the written file together with the number of records covered.
func (s *Service) Export(ctx context.Context, kind Kind) (string, int, error) {
	records, err := s.store.RecordsByStatus(ctx, media.StatusCompleted)
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, ErrNothingToExport
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create export directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	var path string
	switch kind {
	case KindTranscripts:
		path = filepath.Join(s.exportDir, fmt.Sprintf("revoice-transcripts-%s.txt", stamp))
		err = writeToFile(path, func(out io.Writer) error {
			return writeTextBundle(records, out, func(r *media.FileRecord) string { return r.TranscriptionText })
		})
	case KindRewrites:
		path = filepath.Join(s.exportDir, fmt.Sprintf("revoice-rewrites-%s.txt", stamp))
		err = writeToFile(path, func(out io.Writer) error {
			return writeTextBundle(records, out, func(r *media.FileRecord) string { return r.RewriteText })
		})
	case KindAudio:
		path = filepath.Join(s.exportDir, fmt.Sprintf("revoice-audio-%s.zip", stamp))
		err = writeToFile(path, func(out io.Writer) error {
			return writeAudioBundle(records, out)
		})
	default:
		path = filepath.Join(s.exportDir, fmt.Sprintf("revoice-export-%s.zip", stamp))
		err = writeToFile(path, func(out io.Writer) error {
			return WriteAll(records, out)
		})
	}
	if err != nil {
		return "", 0, err
	}

	s.logger.Info("export written",
		logging.String("path", path),
		logging.String("kind", string(kind)),
		logging.Int("records", len(records)),
	)
	return path, len(records), nil
}

func writeToFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("finish export file: %w", err)
	}
	return nil
}

// WriteAll writes a zip with one directory per record containing the
// transcript, the rewritten text, the generated audio, and metadata.
func WriteAll(records []*media.FileRecord, out io.Writer) error {
	zw := zip.NewWriter(out)
	for _, record := range records {
		dir := recordDirName(record)

		if record.TranscriptionText != "" {
			if err := writeZipText(zw, dir+"/transcript.txt", record.TranscriptionText); err != nil {
				return err
			}
		}
		if record.RewriteText != "" {
			if err := writeZipText(zw, dir+"/rewrite.txt", record.RewriteText); err != nil {
				return err
			}
		}
		if record.AudioPath != "" {
			if err := copyAudioIntoZip(zw, dir, record); err != nil {
				return err
			}
		}

		meta := recordMetadata{
			ID:                    record.ID,
			SourcePath:            record.SourcePath,
			DisplayName:           record.DisplayName,
			TranscriptionDuration: record.TranscriptionDuration,
			TranscriptionEdited:   record.TranscriptionEdited,
			RewriteModel:          record.RewriteModel,
			RewritePrompt:         record.RewritePrompt,
			RewriteTokens:         record.RewriteTokens,
			RewriteEdited:         record.RewriteEdited,
			AudioFormat:           record.AudioFormat,
			AudioVoice:            record.AudioVoice,
			AudioSpeed:            record.AudioSpeed,
			CreatedAt:             record.CreatedAt,
			UpdatedAt:             record.UpdatedAt,
			StageTimestamps:       record.Timestamps(),
		}
		encoded, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metadata for record %d: %w", record.ID, err)
		}
		if err := writeZipText(zw, dir+"/metadata.json", string(encoded)+"\n"); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeTextBundle(records []*media.FileRecord, out io.Writer, text func(*media.FileRecord) string) error {
	wrote := false
	for _, record := range records {
		body := text(record)
		if body == "" {
			continue
		}
		header := fmt.Sprintf("=== %03d %s ===\n\n", record.ID, record.DisplayName)
		if _, err := io.WriteString(out, header); err != nil {
			return err
		}
		if _, err := io.WriteString(out, body); err != nil {
			return err
		}
		if _, err := io.WriteString(out, "\n\n"); err != nil {
			return err
		}
		wrote = true
	}
	if !wrote {
		return ErrNothingToExport
	}
	return nil
}

func writeAudioBundle(records []*media.FileRecord, out io.Writer) error {
	zw := zip.NewWriter(out)
	wrote := false
	for _, record := range records {
		if record.AudioPath == "" {
			continue
		}
		if err := copyAudioIntoZip(zw, "", record); err != nil {
			return err
		}
		wrote = true
	}
	if !wrote {
		zw.Close()
		return ErrNothingToExport
	}
	return zw.Close()
}

func copyAudioIntoZip(zw *zip.Writer, dir string, record *media.FileRecord) error {
	src, err := os.Open(record.AudioPath)
	if err != nil {
		return fmt.Errorf("open audio for record %d: %w", record.ID, err)
	}
	defer src.Close()

	name := filepath.Base(record.AudioPath)
	if dir != "" {
		name = dir + "/" + name
	}
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add audio entry for record %d: %w", record.ID, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("copy audio for record %d: %w", record.ID, err)
	}
	return nil
}

func writeZipText(zw *zip.Writer, name, body string) error {
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add entry %s: %w", name, err)
	}
	if _, err := io.WriteString(entry, body); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

func recordDirName(record *media.FileRecord) string {
	base := strings.TrimSuffix(filepath.Base(record.SourcePath), filepath.Ext(record.SourcePath))
	base = sanitizeName(base)
	if base == "" {
		base = "record"
	}
	return fmt.Sprintf("%03d-%s", record.ID, base)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimSpace(b.String())
}
