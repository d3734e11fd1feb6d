package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// supportedExtensions lists the audio and video containers accepted for ingest.
var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
}

// IsSupportedPath reports whether the file extension is accepted for ingest.
func IsSupportedPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := supportedExtensions[ext]
	return ok
}

// SupportedExtensions returns the accepted file extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

func inferDisplayName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = strings.NewReplacer("_", " ", ".", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return base
	}
	return cases.Title(language.Und).String(name)
}

// AddFiles inserts pending records for each supported path. Paths with an
// unsupported extension are skipped rather than rejected so a mixed folder
// selection still enqueues its valid members.
func (s *Store) AddFiles(ctx context.Context, paths []string) ([]*FileRecord, error) {
	var records []*FileRecord
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" || !IsSupportedPath(trimmed) {
			continue
		}
		record, err := s.newRecord(ctx, trimmed)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) newRecord(ctx context.Context, sourcePath string) (*FileRecord, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO file_records (
            source_path, display_name, status, created_at, updated_at,
            progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sourcePath,
		inferDisplayName(sourcePath),
		StatusPending,
		timestamp,
		timestamp,
		ProgressNone,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a file record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM file_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// Update persists changes to an existing file record.
func (s *Store) Update(ctx context.Context, record *FileRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE file_records
         SET source_path = ?, display_name = ?, status = ?,
             progress_percent = ?, progress_message = ?,
             transcription_text = ?, transcription_duration = ?, transcription_edited = ?,
             rewrite_text = ?, rewrite_prompt = ?, rewrite_model = ?, rewrite_tokens = ?, rewrite_edited = ?,
             audio_path = ?, audio_format = ?, audio_voice = ?, audio_speed = ?,
             error_message = ?, errors_json = ?, timestamps_json = ?,
             updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		record.SourcePath,
		nullableString(record.DisplayName),
		record.Status,
		record.ProgressPercent,
		nullableString(record.ProgressMessage),
		nullableString(record.TranscriptionText),
		record.TranscriptionDuration,
		boolToInt(record.TranscriptionEdited),
		nullableString(record.RewriteText),
		nullableString(record.RewritePrompt),
		nullableString(record.RewriteModel),
		record.RewriteTokens,
		boolToInt(record.RewriteEdited),
		nullableString(record.AudioPath),
		nullableString(record.AudioFormat),
		nullableString(record.AudioVoice),
		record.AudioSpeed,
		nullableString(record.ErrorMessage),
		nullableString(record.ErrorsJSON),
		nullableString(record.TimestampsJSON),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(record.LastHeartbeat),
		record.ID,
	); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// RecordsByStatus returns records matching a status ordered by creation time.
func (s *Store) RecordsByStatus(ctx context.Context, status Status) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM file_records WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// List returns file records filtered by status set (or all records when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*FileRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM file_records`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// NextForStatuses returns the oldest record matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*FileRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + recordColumns + ` FROM file_records WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Remove deletes a record by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed records.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_records WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed records.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_records WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all records except those currently processing.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM file_records WHERE status NOT IN (?, ?, ?)`,
		StatusTranscribing,
		StatusRewriting,
		StatusSynthesizing,
	)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	return res.RowsAffected()
}
