// Package api defines the DTOs shared by the IPC server and the CLI.
package api

const dateTimeFormat = "2006-01-02T15:04:05Z"

// FileView is the wire representation of a file record.
type FileView struct {
	ID          int64  `json:"id"`
	SourcePath  string `json:"source_path"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`

	Progress FileProgress `json:"progress"`

	TranscriptionText     string  `json:"transcription_text,omitempty"`
	TranscriptionDuration float64 `json:"transcription_duration,omitempty"`
	TranscriptionEdited   bool    `json:"transcription_edited,omitempty"`

	RewriteText   string `json:"rewrite_text,omitempty"`
	RewritePrompt string `json:"rewrite_prompt,omitempty"`
	RewriteModel  string `json:"rewrite_model,omitempty"`
	RewriteTokens int64  `json:"rewrite_tokens,omitempty"`
	RewriteEdited bool   `json:"rewrite_edited,omitempty"`

	AudioPath   string  `json:"audio_path,omitempty"`
	AudioFormat string  `json:"audio_format,omitempty"`
	AudioVoice  string  `json:"audio_voice,omitempty"`
	AudioSpeed  float64 `json:"audio_speed,omitempty"`

	ErrorMessage string       `json:"error_message,omitempty"`
	Errors       []StageError `json:"errors,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FileProgress reports how far a record has moved through the pipeline.
type FileProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// StageError is one entry of a record's failure history.
type StageError struct {
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	OccurredAt string `json:"occurred_at"`
}

// StageHealth describes readiness of a pipeline stage backend.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}
