package ipc

import (
	"revoice/internal/api"
	"revoice/internal/settings"
)

// FileView mirrors the API DTO for IPC callers.
type FileView = api.FileView

// StageHealth describes readiness of a pipeline stage backend.
type StageHealth = api.StageHealth

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	QueueDepth    int            `json:"queue_depth"`
	ActiveID      int64          `json:"active_id"`
	Stats         map[string]int `json:"stats"`
	ReviewPending int            `json:"review_pending"`
	LastError     string         `json:"last_error"`
	StageHealth   []StageHealth  `json:"stage_health"`
	DBPath        string         `json:"db_path"`
	LockPath      string         `json:"lock_path"`
	PID           int            `json:"pid"`
}

// StartRequest begins batch processing. With IDs the batch is limited to
// those records; an empty list queues every eligible record.
type StartRequest struct {
	IDs []int64 `json:"ids,omitempty"`
}

// StartResponse reports how many records entered the queue.
type StartResponse struct {
	Queued  int    `json:"queued"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// QueueAddRequest enqueues source files.
type QueueAddRequest struct {
	Paths []string `json:"paths"`
}

// QueueAddResponse contains the created records.
type QueueAddResponse struct {
	Files []FileView `json:"files"`
}

// QueueListRequest filters record listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains record entries.
type QueueListResponse struct {
	Files []FileView `json:"files"`
}

// QueueDescribeRequest fetches a single record by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single record.
type QueueDescribeResponse struct {
	File FileView `json:"file"`
}

// QueueRemoveRequest removes a single record.
type QueueRemoveRequest struct {
	ID int64 `json:"id"`
}

// QueueRemoveResponse reports whether the record was removed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest removes records. Scope is one of "all", "completed",
// or "failed".
type QueueClearRequest struct {
	Scope string `json:"scope"`
}

// QueueClearResponse reports the number of removed records.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest retries failed records. An empty list retries all.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports the number of retried records.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// ReprocessRequest re-runs text processing for one record.
type ReprocessRequest struct {
	ID int64 `json:"id"`
}

// ReprocessResponse acknowledges a reprocess request.
type ReprocessResponse struct {
	Message string `json:"message"`
}

// ReviewListRequest fetches records waiting for review.
type ReviewListRequest struct{}

// ReviewListResponse contains the records waiting for review.
type ReviewListResponse struct {
	Files []FileView `json:"files"`
}

// ReviewApproveRequest approves one record, optionally with edited text.
// Nil text fields leave the stored text untouched.
type ReviewApproveRequest struct {
	ID                int64   `json:"id"`
	TranscriptionText *string `json:"transcription_text,omitempty"`
	RewriteText       *string `json:"rewrite_text,omitempty"`
}

// ReviewApproveResponse acknowledges an approval.
type ReviewApproveResponse struct {
	Approved bool `json:"approved"`
}

// ReviewApproveAllRequest approves every waiting record without edits.
type ReviewApproveAllRequest struct{}

// ReviewApproveAllResponse reports the number of approved records.
type ReviewApproveAllResponse struct {
	Approved int `json:"approved"`
}

// ReviewRejectRequest rejects one record.
type ReviewRejectRequest struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// ReviewRejectResponse acknowledges a rejection.
type ReviewRejectResponse struct {
	Rejected bool `json:"rejected"`
}

// VoicesRequest fetches the speech voice catalog.
type VoicesRequest struct{}

// VoicesResponse lists the voices the synthesis service accepts.
type VoicesResponse struct {
	Voices []string `json:"voices"`
}

// SettingsGetRequest fetches current runtime settings.
type SettingsGetRequest struct{}

// SettingsSetRequest replaces runtime settings.
type SettingsSetRequest struct {
	Settings settings.Settings `json:"settings"`
}

// SettingsResponse contains the effective runtime settings.
type SettingsResponse struct {
	Settings settings.Settings `json:"settings"`
}

// ExportRequest bundles completed records. Kind is one of "all",
// "transcripts", "rewrites", or "audio".
type ExportRequest struct {
	Kind string `json:"kind"`
}

// ExportResponse reports the written bundle.
type ExportResponse struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

// RecordHealthRequest fetches aggregate diagnostics.
type RecordHealthRequest struct{}

// RecordHealthResponse reports aggregate record counts.
type RecordHealthResponse struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Processing    int `json:"processing"`
	ReviewPending int `json:"review_pending"`
	Failed        int `json:"failed"`
	Completed     int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalRecords     int    `json:"total_records"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
