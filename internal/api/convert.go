package api

import (
	"slices"
	"time"

	"revoice/internal/media"
	"revoice/internal/stage"
)

// FromRecord converts a stored file record into its wire representation.
func FromRecord(record *media.FileRecord) FileView {
	if record == nil {
		return FileView{}
	}

	view := FileView{
		ID:          record.ID,
		SourcePath:  record.SourcePath,
		DisplayName: record.DisplayName,
		Status:      string(record.Status),
		Stage:       media.StageForStatus(record.Status),
		Progress: FileProgress{
			Percent: record.ProgressPercent,
			Message: record.ProgressMessage,
		},
		TranscriptionText:     record.TranscriptionText,
		TranscriptionDuration: record.TranscriptionDuration,
		TranscriptionEdited:   record.TranscriptionEdited,
		RewriteText:           record.RewriteText,
		RewritePrompt:         record.RewritePrompt,
		RewriteModel:          record.RewriteModel,
		RewriteTokens:         record.RewriteTokens,
		RewriteEdited:         record.RewriteEdited,
		AudioPath:             record.AudioPath,
		AudioFormat:           record.AudioFormat,
		AudioVoice:            record.AudioVoice,
		AudioSpeed:            record.AudioSpeed,
		ErrorMessage:          record.ErrorMessage,
		CreatedAt:             FormatTime(record.CreatedAt),
		UpdatedAt:             FormatTime(record.UpdatedAt),
	}

	for _, stageErr := range record.Errors() {
		view.Errors = append(view.Errors, StageError{
			Stage:      stageErr.Stage,
			Message:    stageErr.Message,
			OccurredAt: FormatTime(stageErr.OccurredAt),
		})
	}
	return view
}

// FromRecords converts a slice of records into wire DTOs.
func FromRecords(records []*media.FileRecord) []FileView {
	if len(records) == 0 {
		return nil
	}
	out := make([]FileView, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}

// StageHealthSlice converts stage health values into a deterministic slice.
func StageHealthSlice(health []stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortFunc(out, func(a, b StageHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

// MergeStats produces a string-keyed representation of record stats.
func MergeStats(stats map[media.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
