package media

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "id, source_path, display_name, status, progress_percent, progress_message, transcription_text, transcription_duration, transcription_edited, rewrite_text, rewrite_prompt, rewrite_model, rewrite_tokens, rewrite_edited, audio_path, audio_format, audio_voice, audio_speed, error_message, errors_json, timestamps_json, created_at, updated_at, last_heartbeat"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id                    int64
		sourcePath            string
		displayName           sql.NullString
		statusStr             string
		progressPercent       sql.NullFloat64
		progressMessage       sql.NullString
		transcriptionText     sql.NullString
		transcriptionDuration sql.NullFloat64
		transcriptionEdited   sql.NullInt64
		rewriteText           sql.NullString
		rewritePrompt         sql.NullString
		rewriteModel          sql.NullString
		rewriteTokens         sql.NullInt64
		rewriteEdited         sql.NullInt64
		audioPath             sql.NullString
		audioFormat           sql.NullString
		audioVoice            sql.NullString
		audioSpeed            sql.NullFloat64
		errorMessage          sql.NullString
		errorsJSON            sql.NullString
		timestampsJSON        sql.NullString
		createdRaw            sql.NullString
		updatedRaw            sql.NullString
		lastHeartbeatRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&displayName,
		&statusStr,
		&progressPercent,
		&progressMessage,
		&transcriptionText,
		&transcriptionDuration,
		&transcriptionEdited,
		&rewriteText,
		&rewritePrompt,
		&rewriteModel,
		&rewriteTokens,
		&rewriteEdited,
		&audioPath,
		&audioFormat,
		&audioVoice,
		&audioSpeed,
		&errorMessage,
		&errorsJSON,
		&timestampsJSON,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	record := &FileRecord{
		ID:                    id,
		SourcePath:            sourcePath,
		DisplayName:           displayName.String,
		Status:                Status(statusStr),
		ProgressPercent:       progressPercent.Float64,
		ProgressMessage:       progressMessage.String,
		TranscriptionText:     transcriptionText.String,
		TranscriptionDuration: transcriptionDuration.Float64,
		RewriteText:           rewriteText.String,
		RewritePrompt:         rewritePrompt.String,
		RewriteModel:          rewriteModel.String,
		RewriteTokens:         rewriteTokens.Int64,
		AudioPath:             audioPath.String,
		AudioFormat:           audioFormat.String,
		AudioVoice:            audioVoice.String,
		AudioSpeed:            audioSpeed.Float64,
		ErrorMessage:          errorMessage.String,
		ErrorsJSON:            errorsJSON.String,
		TimestampsJSON:        timestampsJSON.String,
	}
	if transcriptionEdited.Valid {
		record.TranscriptionEdited = transcriptionEdited.Int64 != 0
	}
	if rewriteEdited.Valid {
		record.RewriteEdited = rewriteEdited.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			record.LastHeartbeat = &heartbeat
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
