// Package synthesis generates speech audio from processed text.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
	"revoice/internal/services/speech"
	"revoice/internal/settings"
	"revoice/internal/stage"
)

// Client is the speech service surface used by the handler.
type Client interface {
	Synthesize(ctx context.Context, req speech.Request, destPath string) (speech.Result, error)
	Format() string
	HealthCheck(ctx context.Context) error
}

// Synthesizer runs the text-to-speech stage for a file record.
type Synthesizer struct {
	store    *media.Store
	settings *settings.Store
	client   Client
	audioDir string
	logger   *slog.Logger
}

// New constructs the synthesis stage handler using default dependencies.
func New(cfg *config.Config, store *media.Store, settingsStore *settings.Store, logger *slog.Logger) *Synthesizer {
	client := speech.NewClient(speech.Config{
		BaseURL:        cfg.Speech.BaseURL,
		APIKey:         cfg.Speech.APIKey,
		Model:          cfg.Speech.Model,
		Format:         cfg.Speech.Format,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	})
	return NewWithClient(store, settingsStore, client, cfg.Paths.AudioDir, logger)
}

// NewWithClient allows injecting the service client (used in tests).
func NewWithClient(store *media.Store, settingsStore *settings.Store, client Client, audioDir string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		store:    store,
		settings: settingsStore,
		client:   client,
		audioDir: audioDir,
		logger:   logging.NewComponentLogger(logger, "synthesis"),
	}
}

func (s *Synthesizer) Prepare(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, s.logger)
	record.ProgressMessage = "Preparing speech generation"
	record.ErrorMessage = ""
	if strings.TrimSpace(s.speechText(record)) == "" {
		return services.Wrap(
			services.ErrValidation,
			media.StageSpeechGeneration,
			"validate inputs",
			"No processed text present; run text processing first",
			nil,
		)
	}
	logger.Info("starting synthesis preparation", logging.Int64(logging.FieldFileID, record.ID))
	return nil
}

func (s *Synthesizer) Execute(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, s.logger)
	snapshot := s.settings.Snapshot()

	text := s.speechText(record)
	destPath := s.outputPath(record)

	logger.Info(
		"starting synthesis",
		logging.String("voice", snapshot.Voice),
		logging.Float64("speed", snapshot.Speed),
		logging.Int("text_length", len(text)),
	)
	result, err := s.client.Synthesize(ctx, speech.Request{
		Text:  text,
		Voice: snapshot.Voice,
		Speed: snapshot.Speed,
	}, destPath)
	if err != nil {
		return err
	}

	record.AudioPath = result.Path
	record.AudioFormat = result.Format
	record.AudioVoice = snapshot.Voice
	record.AudioSpeed = snapshot.Speed
	record.MarkStageDone(media.StageSpeechGeneration)
	record.SetProgress(media.ProgressCompleted, "Speech generation complete")

	logger.Info(
		"synthesis complete",
		logging.String("audio_path", result.Path),
		logging.Int64("audio_bytes", result.Bytes),
	)
	return nil
}

// speechText prefers the processed text and falls back to the raw
// transcription when text processing was skipped.
func (s *Synthesizer) speechText(record *media.FileRecord) string {
	if strings.TrimSpace(record.RewriteText) != "" {
		return record.RewriteText
	}
	return record.TranscriptionText
}

func (s *Synthesizer) outputPath(record *media.FileRecord) string {
	base := strings.TrimSuffix(filepath.Base(record.SourcePath), filepath.Ext(record.SourcePath))
	if base == "" {
		base = "output"
	}
	format := "mp3"
	if s.client != nil && s.client.Format() != "" {
		format = s.client.Format()
	}
	return filepath.Join(s.audioDir, fmt.Sprintf("%d_%s.%s", record.ID, base, format))
}

func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "synthesis"
	if s.client == nil {
		return stage.Unhealthy(name, "speech client unavailable")
	}
	if err := s.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
