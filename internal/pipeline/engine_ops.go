package pipeline

import (
	"context"
	"time"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
)

// StartBatch enqueues eligible records for processing and begins batch
// accounting. With ids the batch is limited to those records; without, every
// eligible record is queued. Returns the number of records added to the queue.
func (e *Engine) StartBatch(ctx context.Context, ids ...int64) (int, error) {
	records, err := e.store.List(ctx, media.StartableStatuses()...)
	if err != nil {
		return 0, err
	}

	eligible := make([]int64, 0, len(records))
	if len(ids) == 0 {
		for _, record := range records {
			eligible = append(eligible, record.ID)
		}
	} else {
		startable := make(map[int64]struct{}, len(records))
		for _, record := range records {
			startable[record.ID] = struct{}{}
		}
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := startable[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return 0, ErrNothingEligible
	}

	e.mu.Lock()
	added := e.enqueueLocked(false, eligible...)
	if added == 0 {
		e.mu.Unlock()
		return 0, ErrNothingEligible
	}
	if !e.batchActive {
		e.batchActive = true
		e.batchStart = time.Now()
		e.batchProcessed = 0
		e.batchFailed = 0
	}
	e.mu.Unlock()
	e.signalWake()

	e.logger.Info("batch started",
		logging.Int("queued", added),
		logging.String(logging.FieldEventType, "batch_start"),
	)
	if e.notifier != nil {
		if err := e.notifier.NotifyBatchStarted(ctx, added); err != nil {
			e.logger.Warn("batch start notification failed", logging.Error(err))
		}
	}
	return added, nil
}

// RetryFailedFiles moves failed records back to pending and re-enqueues them
// so the running loop picks them up without a new batch. With no ids every
// failed record is retried.
func (e *Engine) RetryFailedFiles(ctx context.Context, ids ...int64) (int64, error) {
	failed, err := e.store.List(ctx, media.StatusFailed)
	if err != nil {
		return 0, err
	}

	eligible := make([]int64, 0, len(failed))
	if len(ids) == 0 {
		for _, record := range failed {
			eligible = append(eligible, record.ID)
		}
	} else {
		failedSet := make(map[int64]struct{}, len(failed))
		for _, record := range failed {
			failedSet[record.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := failedSet[id]; ok {
				eligible = append(eligible, id)
			}
		}
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	retried, err := e.store.RetryFailed(ctx, eligible...)
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		e.Enqueue(eligible...)
		e.logger.Info("failed records reset to pending", logging.Int64("count", retried))
	}
	return retried, nil
}

// Reprocess re-runs the text processing stage for a single record using the
// current prompt. The record keeps its status and position; only the rewrite
// fields change.
func (e *Engine) Reprocess(ctx context.Context, id int64) error {
	e.mu.Lock()
	busy := e.activeID == id
	e.mu.Unlock()
	if busy {
		return ErrRecordBusy
	}

	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, "", "reprocess", "file not found", nil)
	}
	if record.IsProcessing() {
		return ErrRecordBusy
	}
	if record.TranscriptionText == "" {
		return services.Wrap(services.ErrPrecondition, media.StageAIProcessing, "reprocess", "file has no transcription yet", nil)
	}

	stg, ok := e.stageByStart[media.StatusTranscribed]
	if !ok || stg.handler == nil {
		return services.Wrap(services.ErrConfiguration, media.StageAIProcessing, "reprocess", "text processing stage not configured", nil)
	}

	stageCtx := services.WithStage(services.WithFileID(ctx, record.ID), stg.name)
	logger := logging.WithContext(stageCtx, e.logger)

	prevStatus := record.Status
	prevPercent := record.ProgressPercent
	prevMessage := record.ProgressMessage

	if err := stg.handler.Prepare(stageCtx, record); err != nil {
		return err
	}
	if err := stg.handler.Execute(stageCtx, record); err != nil {
		logger.Error("reprocess failed", logging.Error(err))
		return err
	}

	record.Status = prevStatus
	record.ProgressPercent = prevPercent
	record.ProgressMessage = prevMessage
	if err := e.store.Update(ctx, record); err != nil {
		return err
	}

	logger.Info("record reprocessed", logging.Int64(logging.FieldFileID, record.ID))
	return nil
}

// RemoveFile removes a record from the queue and the database. Removing the
// record currently being processed is allowed; store writes no-op once the
// row is gone, so the in-flight stage's late results are discarded.
func (e *Engine) RemoveFile(ctx context.Context, id int64) (bool, error) {
	e.mu.Lock()
	if _, ok := e.queued[id]; ok {
		delete(e.queued, id)
		for i, queued := range e.queue {
			if queued == id {
				e.queue = append(e.queue[:i], e.queue[i+1:]...)
				break
			}
		}
	}
	e.mu.Unlock()

	return e.store.Remove(ctx, id)
}
