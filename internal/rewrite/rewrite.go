// Package rewrite runs LLM text processing over transcriptions.
package rewrite

import (
	"context"
	"log/slog"
	"strings"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
	"revoice/internal/services/rewriter"
	"revoice/internal/settings"
	"revoice/internal/stage"
)

// Client is the LLM service surface used by the handler.
type Client interface {
	Rewrite(ctx context.Context, prompt, text string) (rewriter.Result, error)
	HealthCheck(ctx context.Context) error
}

// Rewriter runs the AI text processing stage for a file record.
type Rewriter struct {
	store    *media.Store
	settings *settings.Store
	client   Client
	logger   *slog.Logger
}

// New constructs the rewrite stage handler using default dependencies.
func New(cfg *config.Config, store *media.Store, settingsStore *settings.Store, logger *slog.Logger) *Rewriter {
	client := rewriter.NewClient(rewriter.Config{
		APIKey:         cfg.Rewriter.APIKey,
		BaseURL:        cfg.Rewriter.BaseURL,
		Model:          cfg.Rewriter.Model,
		MaxTokens:      cfg.Rewriter.MaxTokens,
		TimeoutSeconds: cfg.Rewriter.TimeoutSeconds,
	})
	return NewWithClient(store, settingsStore, client, logger)
}

// NewWithClient allows injecting the service client (used in tests).
func NewWithClient(store *media.Store, settingsStore *settings.Store, client Client, logger *slog.Logger) *Rewriter {
	return &Rewriter{
		store:    store,
		settings: settingsStore,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "rewrite"),
	}
}

func (r *Rewriter) Prepare(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, r.logger)
	record.ProgressMessage = "Preparing text processing"
	record.ErrorMessage = ""
	if strings.TrimSpace(record.TranscriptionText) == "" {
		return services.Wrap(
			services.ErrValidation,
			media.StageAIProcessing,
			"validate inputs",
			"No transcription text present; run transcription first",
			nil,
		)
	}
	logger.Info("starting rewrite preparation", logging.Int("text_length", len(record.TranscriptionText)))
	return nil
}

func (r *Rewriter) Execute(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, r.logger)
	snapshot := r.settings.Snapshot()

	if snapshot.PreserveEdits && record.RewriteEdited && strings.TrimSpace(record.RewriteText) != "" {
		logger.Info("keeping operator-edited rewrite", logging.Int64(logging.FieldFileID, record.ID))
		record.MarkStageDone(media.StageAIProcessing)
		record.SetProgress(media.ProgressRewritten, "Text processing complete (edited text kept)")
		return nil
	}

	logger.Info("starting rewrite", logging.String("prompt", snapshot.RewritePrompt))
	result, err := r.client.Rewrite(ctx, snapshot.RewritePrompt, record.TranscriptionText)
	if err != nil {
		return err
	}

	record.RewriteText = result.Text
	record.RewritePrompt = snapshot.RewritePrompt
	record.RewriteModel = result.Model
	record.RewriteTokens = result.TotalTokens
	record.RewriteEdited = false
	record.MarkStageDone(media.StageAIProcessing)
	record.SetProgress(media.ProgressRewritten, "Text processing complete")

	logger.Info(
		"rewrite complete",
		logging.String("model", result.Model),
		logging.Int64("total_tokens", result.TotalTokens),
		logging.Int("text_length", len(result.Text)),
	)
	return nil
}

func (r *Rewriter) HealthCheck(ctx context.Context) stage.Health {
	const name = "rewrite"
	if r.client == nil {
		return stage.Unhealthy(name, "rewrite client unavailable")
	}
	if err := r.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
