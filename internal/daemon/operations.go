package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"revoice/internal/export"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/review"
	"revoice/internal/settings"
)

// AddFiles validates and enqueues source files. Paths with unsupported
// extensions are skipped; only valid files produce records.
func (d *Daemon) AddFiles(ctx context.Context, paths []string) ([]*media.FileRecord, error) {
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		absPath, err := filepath.Abs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("resolve source path %q: %w", trimmed, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat source file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("source path %q is a directory", absPath)
		}
		resolved = append(resolved, absPath)
	}
	if len(resolved) == 0 {
		return nil, errors.New("at least one source path is required")
	}

	records, err := d.store.AddFiles(ctx, resolved)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		d.logger.Info("file queued",
			logging.Int64(logging.FieldFileID, record.ID),
			logging.String("source", record.SourcePath),
		)
	}
	return records, nil
}

// ListFiles returns records filtered by optional statuses.
func (d *Daemon) ListFiles(ctx context.Context, statuses []media.Status) ([]*media.FileRecord, error) {
	return d.store.List(ctx, statuses...)
}

// GetFile returns a single record by id, or nil when absent.
func (d *Daemon) GetFile(ctx context.Context, id int64) (*media.FileRecord, error) {
	return d.store.GetByID(ctx, id)
}

// RemoveFile deletes a record. An in-flight record is removed too; the late
// results of its running stage are discarded.
func (d *Daemon) RemoveFile(ctx context.Context, id int64) (bool, error) {
	return d.engine.RemoveFile(ctx, id)
}

// ClearCompleted removes completed records.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed records.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// Clear removes every record that is not currently processing.
func (d *Daemon) Clear(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// StartBatch enqueues eligible records for processing, optionally limited to
// the given ids.
func (d *Daemon) StartBatch(ctx context.Context, ids ...int64) (int, error) {
	return d.engine.StartBatch(ctx, ids...)
}

// RetryFailed resets failed records (optionally a subset) back to pending and
// queues them for processing.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.engine.RetryFailedFiles(ctx, ids...)
}

// Reprocess re-runs text processing for one record with the current prompt.
func (d *Daemon) Reprocess(ctx context.Context, id int64) error {
	return d.engine.Reprocess(ctx, id)
}

// ReviewPending returns the records waiting for operator review.
func (d *Daemon) ReviewPending(ctx context.Context) ([]*media.FileRecord, error) {
	return d.gate.Pending(ctx)
}

// ApproveReview releases a record into speech generation.
func (d *Daemon) ApproveReview(ctx context.Context, id int64, edits review.Edits) error {
	return d.gate.Approve(ctx, id, edits)
}

// ApproveAllReviews approves every waiting record without edits.
func (d *Daemon) ApproveAllReviews(ctx context.Context) (int, error) {
	return d.gate.ApproveAll(ctx)
}

// RejectReview removes a record from the review queue.
func (d *Daemon) RejectReview(ctx context.Context, id int64, reason string) error {
	return d.gate.Reject(ctx, id, reason)
}

// Settings returns the current runtime settings.
func (d *Daemon) Settings() settings.Settings {
	return d.settings.Snapshot()
}

// UpdateSettings validates and persists new runtime settings.
func (d *Daemon) UpdateSettings(next settings.Settings) (settings.Settings, error) {
	if err := d.settings.Update(next); err != nil {
		return settings.Settings{}, err
	}
	return d.settings.Snapshot(), nil
}

// Voices returns the catalog of voices the synthesis service accepts.
func (d *Daemon) Voices(ctx context.Context) ([]string, error) {
	return d.voices.Voices(ctx)
}

// Export bundles completed records of the requested kind.
func (d *Daemon) Export(ctx context.Context, kind export.Kind) (string, int, error) {
	return d.exporter.Export(ctx, kind)
}

// RecordHealth returns aggregate record diagnostics.
func (d *Daemon) RecordHealth(ctx context.Context) (media.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (media.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test push notification.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
