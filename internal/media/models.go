package media

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a file record.
type Status string

const (
	StatusPending       Status = "pending"
	StatusTranscribing  Status = "transcribing"
	StatusTranscribed   Status = "transcribed"
	StatusRewriting     Status = "rewriting"
	StatusRewritten     Status = "rewritten"
	StatusReviewPending Status = "review_pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusSynthesizing  Status = "synthesizing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// Stage labels recorded against errors and surfaced to operators.
const (
	StageTranscription    = "transcription"
	StageAIProcessing     = "ai_processing"
	StageSpeechGeneration = "speech_generation"
)

// DaemonStopReason is the error message set when records are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusTranscribed,
	StatusRewriting,
	StatusRewritten,
	StatusReviewPending,
	StatusApproved,
	StatusRejected,
	StatusSynthesizing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusRewriting:    {},
	StatusSynthesizing: {},
}

// startableStatuses are the statuses eligible to enter the processing queue.
var startableStatuses = map[Status]struct{}{
	StatusPending:     {},
	StatusTranscribed: {},
	StatusRewritten:   {},
	StatusApproved:    {},
}

var legalTransitions = map[Status][]Status{
	StatusPending:       {StatusTranscribing},
	StatusTranscribing:  {StatusTranscribed, StatusFailed},
	StatusTranscribed:   {StatusRewriting},
	StatusRewriting:     {StatusRewritten, StatusFailed},
	StatusRewritten:     {StatusReviewPending, StatusSynthesizing, StatusRewriting},
	StatusReviewPending: {StatusApproved, StatusRejected},
	StatusApproved:      {StatusSynthesizing},
	StatusRejected:      {StatusReviewPending, StatusRewriting},
	StatusSynthesizing:  {StatusCompleted, StatusFailed},
	StatusFailed:        {StatusPending},
	StatusCompleted:     {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusTranscribing, to: StatusPending},
	{from: StatusRewriting, to: StatusTranscribed},
	{from: StatusSynthesizing, to: StatusApproved},
}

// Progress milestones reached after each completed stage.
const (
	ProgressNone        = 0.0
	ProgressTranscribed = 33.0
	ProgressRewritten   = 66.0
	ProgressCompleted   = 100.0
)

// StageError records a single failure observed while processing a record.
type StageError struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DatabaseHealth captures diagnostic information about the record database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	Error            string
}

// HealthSummary describes aggregated record counts per key lifecycle states.
type HealthSummary struct {
	Total         int
	Pending       int
	Processing    int
	ReviewPending int
	Failed        int
	Completed     int
}

// FileRecord represents a media file persisted in SQLite together with the
// artifacts produced by each pipeline stage.
type FileRecord struct {
	ID          int64
	SourcePath  string
	DisplayName string
	Status      Status

	ProgressPercent float64
	ProgressMessage string

	TranscriptionText     string
	TranscriptionDuration float64
	TranscriptionEdited   bool

	RewriteText   string
	RewritePrompt string
	RewriteModel  string
	RewriteTokens int64
	RewriteEdited bool

	AudioPath   string
	AudioFormat string
	AudioVoice  string
	AudioSpeed  float64

	ErrorMessage   string
	ErrorsJSON     string
	TimestampsJSON string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	// Any in-flight status may fail.
	if to == StatusFailed {
		_, processing := processingStatuses[from]
		return processing
	}
	return false
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsStartable reports whether a record in this status can be enqueued for processing.
func IsStartable(status Status) bool {
	_, ok := startableStatuses[status]
	return ok
}

// StartableStatuses returns the statuses eligible to enter the processing queue.
func StartableStatuses() []Status {
	out := make([]Status, 0, len(startableStatuses))
	for _, status := range allStatuses {
		if _, ok := startableStatuses[status]; ok {
			out = append(out, status)
		}
	}
	return out
}

// StageForStatus maps an in-flight status to its operator-facing stage label.
func StageForStatus(status Status) string {
	switch status {
	case StatusTranscribing:
		return StageTranscription
	case StatusRewriting:
		return StageAIProcessing
	case StatusSynthesizing:
		return StageSpeechGeneration
	default:
		return ""
	}
}

// IsProcessing returns true when the record reflects an in-flight operation.
func (r FileRecord) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// SetProgress updates the progress fields together.
func (r *FileRecord) SetProgress(percent float64, message string) {
	if percent > r.ProgressPercent {
		r.ProgressPercent = percent
	}
	r.ProgressMessage = message
}

// SetFailed marks the record as failed with the given stage and error message.
// Clears heartbeat; progress is left where the record last stood.
func (r *FileRecord) SetFailed(stage, message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressMessage = message
	r.LastHeartbeat = nil
	r.AppendError(stage, message)
}

// Errors decodes the accumulated stage errors. A corrupt payload yields nil.
func (r *FileRecord) Errors() []StageError {
	if strings.TrimSpace(r.ErrorsJSON) == "" {
		return nil
	}
	var out []StageError
	if err := json.Unmarshal([]byte(r.ErrorsJSON), &out); err != nil {
		return nil
	}
	return out
}

// AppendError adds a stage error to the record's history.
func (r *FileRecord) AppendError(stage, message string) {
	entries := append(r.Errors(), StageError{
		Stage:      stage,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	})
	if encoded, err := json.Marshal(entries); err == nil {
		r.ErrorsJSON = string(encoded)
	}
}

// Timestamps decodes the per-stage completion timestamps.
func (r *FileRecord) Timestamps() map[string]time.Time {
	if strings.TrimSpace(r.TimestampsJSON) == "" {
		return map[string]time.Time{}
	}
	out := map[string]time.Time{}
	if err := json.Unmarshal([]byte(r.TimestampsJSON), &out); err != nil {
		return map[string]time.Time{}
	}
	return out
}

// MarkStageDone records the completion time for a stage.
func (r *FileRecord) MarkStageDone(stage string) {
	stamps := r.Timestamps()
	stamps[stage] = time.Now().UTC()
	if encoded, err := json.Marshal(stamps); err == nil {
		r.TimestampsJSON = string(encoded)
	}
}
