// Package pipeline runs file records through transcription, text processing,
// and speech generation one at a time in enqueue order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/notifications"
	"revoice/internal/settings"
	"revoice/internal/stage"
)

// ErrNothingEligible is returned by StartBatch when no record can enter the
// processing queue.
var ErrNothingEligible = errors.New("no files eligible for processing")

// ErrRecordBusy is returned when an operation targets the record currently
// being processed.
var ErrRecordBusy = errors.New("file is currently processing")

// StageSet bundles the concrete stage handlers the engine orchestrates.
type StageSet struct {
	Transcriber stage.Handler
	Rewriter    stage.Handler
	Synthesizer stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	processingStatus media.Status
	doneStatus       media.Status
}

// ReviewGate receives records that need operator approval before synthesis.
type ReviewGate interface {
	Add(ctx context.Context, id int64) error
	PendingCount() int
}

// Engine processes queued records sequentially using registered stage handlers.
type Engine struct {
	cfg      *config.Config
	store    *media.Store
	settings *settings.Store
	logger   *slog.Logger
	notifier notifications.Service

	heartbeat    *heartbeatMonitor
	pollInterval time.Duration
	settleDelay  time.Duration

	stageByStart map[media.Status]pipelineStage

	mu       sync.Mutex
	queue    []int64
	queued   map[int64]struct{}
	activeID int64
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	gate     ReviewGate

	batchActive    bool
	batchStart     time.Time
	batchProcessed int
	batchFailed    int

	wake chan struct{}
}

// New constructs a pipeline engine.
func New(cfg *config.Config, store *media.Store, settingsStore *settings.Store, logger *slog.Logger) *Engine {
	return NewWithNotifier(cfg, store, settingsStore, logger, notifications.NewService(cfg))
}

// NewWithNotifier constructs a pipeline engine with a custom notifier (used in tests).
func NewWithNotifier(cfg *config.Config, store *media.Store, settingsStore *settings.Store, logger *slog.Logger, notifier notifications.Service) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		settings: settingsStore,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		notifier: notifier,
		heartbeat: newHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		settleDelay:  time.Duration(cfg.Workflow.SettleDelayMillis) * time.Millisecond,
		stageByStart: make(map[media.Status]pipelineStage),
		queued:       make(map[int64]struct{}),
		wake:         make(chan struct{}, 1),
	}
}

// ConfigureStages registers the stage handlers.
func (e *Engine) ConfigureStages(set StageSet) {
	e.stageByStart = map[media.Status]pipelineStage{
		media.StatusPending: {
			name:             media.StageTranscription,
			handler:          set.Transcriber,
			processingStatus: media.StatusTranscribing,
			doneStatus:       media.StatusTranscribed,
		},
		media.StatusTranscribed: {
			name:             media.StageAIProcessing,
			handler:          set.Rewriter,
			processingStatus: media.StatusRewriting,
			doneStatus:       media.StatusRewritten,
		},
		// Rewritten records either defer to review or continue straight into
		// synthesis depending on the batch review mode at dispatch time.
		media.StatusRewritten: {
			name:             media.StageSpeechGeneration,
			handler:          set.Synthesizer,
			processingStatus: media.StatusSynthesizing,
			doneStatus:       media.StatusCompleted,
		},
		media.StatusApproved: {
			name:             media.StageSpeechGeneration,
			handler:          set.Synthesizer,
			processingStatus: media.StatusSynthesizing,
			doneStatus:       media.StatusCompleted,
		},
	}
}

// SetReviewGate wires the review gate that receives rewritten records when
// batch review mode is enabled.
func (e *Engine) SetReviewGate(gate ReviewGate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = gate
}

// Running reports whether the engine loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastError returns the most recent stage or queue error.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

// QueueDepth returns the number of records waiting in the processing queue.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// ActiveID returns the identifier of the record currently being processed, or
// zero when the engine is idle.
func (e *Engine) ActiveID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// Health reports readiness of every configured stage.
func (e *Engine) Health(ctx context.Context) []stage.Health {
	seen := make(map[string]struct{})
	var out []stage.Health
	for _, status := range []media.Status{media.StatusPending, media.StatusTranscribed, media.StatusApproved} {
		stg, ok := e.stageByStart[status]
		if !ok || stg.handler == nil {
			continue
		}
		if _, dup := seen[stg.name]; dup {
			continue
		}
		seen[stg.name] = struct{}{}
		out = append(out, stg.handler.HealthCheck(ctx))
	}
	return out
}
