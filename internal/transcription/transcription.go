// Package transcription converts source media files into text.
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
	"revoice/internal/services/transcriber"
	"revoice/internal/settings"
	"revoice/internal/stage"
)

// Client is the transcription service surface used by the handler.
type Client interface {
	Transcribe(ctx context.Context, sourcePath string) (transcriber.Result, error)
	HealthCheck(ctx context.Context) error
}

// Transcriber runs the speech-to-text stage for a file record.
type Transcriber struct {
	store    *media.Store
	settings *settings.Store
	client   Client
	logger   *slog.Logger
}

// New constructs the transcription stage handler using default dependencies.
func New(cfg *config.Config, store *media.Store, settingsStore *settings.Store, logger *slog.Logger) *Transcriber {
	client := transcriber.NewClient(transcriber.Config{
		BaseURL:        cfg.Transcriber.BaseURL,
		APIKey:         cfg.Transcriber.APIKey,
		Model:          cfg.Transcriber.Model,
		Language:       cfg.Transcriber.Language,
		TimeoutSeconds: cfg.Transcriber.TimeoutSeconds,
	})
	return NewWithClient(store, settingsStore, client, logger)
}

// NewWithClient allows injecting the service client (used in tests).
func NewWithClient(store *media.Store, settingsStore *settings.Store, client Client, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		store:    store,
		settings: settingsStore,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "transcription"),
	}
}

func (t *Transcriber) Prepare(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, t.logger)
	record.ProgressMessage = "Preparing transcription"
	record.ErrorMessage = ""
	if _, err := os.Stat(record.SourcePath); err != nil {
		return services.Wrap(
			services.ErrValidation,
			media.StageTranscription,
			"validate inputs",
			fmt.Sprintf("Source file missing or unreadable: %s", record.SourcePath),
			err,
		)
	}
	logger.Info("starting transcription preparation", logging.String("source", record.SourcePath))
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, t.logger)
	snapshot := t.settings.Snapshot()

	logger.Info("starting transcription", logging.String("source", record.SourcePath))
	result, err := t.client.Transcribe(ctx, record.SourcePath)
	if err != nil {
		return err
	}

	if snapshot.PreserveEdits && record.TranscriptionEdited && strings.TrimSpace(record.TranscriptionText) != "" {
		logger.Info("keeping operator-edited transcription", logging.Int64(logging.FieldFileID, record.ID))
	} else {
		record.TranscriptionText = result.Text
		record.TranscriptionEdited = false
	}
	record.TranscriptionDuration = result.Duration
	record.MarkStageDone(media.StageTranscription)
	record.SetProgress(media.ProgressTranscribed, "Transcription complete")

	logger.Info(
		"transcription complete",
		logging.Float64("duration_seconds", result.Duration),
		logging.Float64("processing_seconds", result.ProcessingTime),
		logging.Int("text_length", len(record.TranscriptionText)),
	)
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcription"
	if t.client == nil {
		return stage.Unhealthy(name, "transcription client unavailable")
	}
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
