package media

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing resets records left in processing states back to the
// start of their current stage, typically after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE file_records
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_message = 'Reset from stuck processing', last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusTranscribing, StatusPending,
		StatusRewriting, StatusTranscribed,
		StatusSynthesizing, StatusApproved,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusTranscribing,
		StatusRewriting,
		StatusSynthesizing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck records: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight record.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE file_records SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns records stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE file_records
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            progress_message = 'Reclaimed from stale processing', last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusTranscribing, StatusPending,
		StatusRewriting, StatusTranscribed,
		StatusSynthesizing, StatusApproved,
		now,
		StatusTranscribing,
		StatusRewriting,
		StatusSynthesizing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale records: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed records back to pending for reprocessing. Stage
// results and the error history survive the retry; only the live error message
// and progress are reset.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE file_records
            SET status = ?, progress_percent = 0, progress_message = 'Retry requested',
                error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed records: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, now)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE file_records
        SET status = ?, progress_percent = 0, progress_message = 'Retry requested',
            error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected records: %w", err)
	}
	return res.RowsAffected()
}

// FailInFlight marks all in-flight records as failed with the given message.
// Used when the daemon stops while work is still running.
func (s *Store) FailInFlight(ctx context.Context, message string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE file_records
        SET status = ?, error_message = ?, progress_message = ?, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?)`,
		StatusFailed,
		message,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusTranscribing,
		StatusRewriting,
		StatusSynthesizing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight records: %w", err)
	}
	return res.RowsAffected()
}
