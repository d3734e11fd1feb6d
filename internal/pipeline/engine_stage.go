package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/services"
)

func (e *Engine) processRecord(ctx context.Context, id int64) error {
	defer e.clearActive()

	if e.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.settleDelay):
		}
	}

	// Re-read after every suspension point so operator edits made while the
	// record sat in the queue are honored.
	record, err := e.store.GetByID(ctx, id)
	if err != nil {
		e.setLastError(err)
		e.logger.Error("failed to fetch queued record",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check record database access"),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(e.cfg.Workflow.ErrorRetryInterval) * time.Second):
		}
		return err
	}
	if record == nil {
		return nil
	}

	snapshot := e.settings.Snapshot()
	if record.Status == media.StatusRewritten && snapshot.BatchReviewMode {
		return e.deferToReview(ctx, record)
	}

	stg, ok := e.stageByStart[record.Status]
	if !ok || stg.handler == nil {
		e.logger.Warn("no stage configured for status", logging.String("status", string(record.Status)))
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithFileID(ctx, record.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, e.logger)

	if err := e.transitionToProcessing(stageCtx, stg, record); err != nil {
		stageLogger.Error("failed to transition record to processing", logging.Error(err))
		e.setLastError(err)
		return err
	}

	return e.executeStage(stageCtx, stageLogger, stg, record)
}

func (e *Engine) deferToReview(ctx context.Context, record *media.FileRecord) error {
	logger := logging.WithContext(ctx, e.logger)

	record.Status = media.StatusReviewPending
	record.ProgressMessage = "Waiting for review"
	if err := e.store.Update(ctx, record); err != nil {
		e.setLastError(err)
		logger.Error("failed to park record for review", logging.Error(err))
		return err
	}

	e.mu.Lock()
	gate := e.gate
	e.mu.Unlock()
	if gate != nil {
		if err := gate.Add(ctx, record.ID); err != nil {
			logger.Warn("review gate rejected record", logging.Error(err))
		}
		if e.notifier != nil {
			if err := e.notifier.NotifyReviewWaiting(ctx, gate.PendingCount()); err != nil {
				logger.Warn("review notification failed", logging.Error(err))
			}
		}
	}

	logger.Info("record waiting for review",
		logging.Int64(logging.FieldFileID, record.ID),
		logging.String(logging.FieldEventType, "review_waiting"),
	)
	return nil
}

func (e *Engine) transitionToProcessing(ctx context.Context, stg pipelineStage, record *media.FileRecord) error {
	if !media.CanTransition(record.Status, stg.processingStatus) {
		return fmt.Errorf("illegal transition %s -> %s", record.Status, stg.processingStatus)
	}
	now := time.Now().UTC()
	record.Status = stg.processingStatus
	record.ErrorMessage = ""
	record.LastHeartbeat = &now
	if strings.TrimSpace(record.ProgressMessage) == "" {
		record.ProgressMessage = fmt.Sprintf("%s started", stg.name)
	}
	if err := e.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	return nil
}

func (e *Engine) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, record *media.FileRecord) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("source_file", strings.TrimSpace(record.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, record); err != nil {
		e.handleStageFailure(ctx, stg.name, record, err)
		e.setLastError(err)
		return err
	}
	if err := e.store.Update(ctx, record); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		e.setLastError(wrapped)
		return wrapped
	}

	execErr := e.executeWithHeartbeat(ctx, stg, record)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		e.handleStageFailure(ctx, stg.name, record, execErr)
		e.setLastError(execErr)
		return execErr
	}

	if record.Status == stg.processingStatus || record.Status == "" {
		record.Status = stg.doneStatus
	}
	record.LastHeartbeat = nil
	if err := e.store.Update(ctx, record); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		e.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(record.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	switch {
	case record.Status == media.StatusCompleted:
		e.mu.Lock()
		if e.batchActive {
			e.batchProcessed++
		}
		e.mu.Unlock()
		if e.notifier != nil {
			if err := e.notifier.NotifyFileCompleted(ctx, record.DisplayName); err != nil {
				stageLogger.Warn("file completion notification failed", logging.Error(err))
			}
		}
	case media.IsStartable(record.Status) || record.Status == media.StatusRewritten:
		// Continue this record through its remaining stages before the next
		// file leaves the queue.
		e.requeueFront(record.ID)
	}
	return nil
}

func (e *Engine) executeWithHeartbeat(ctx context.Context, stg pipelineStage, record *media.FileRecord) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go e.heartbeat.startLoop(hbCtx, &hbWG, record.ID)

	execErr := stg.handler.Execute(ctx, record)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (e *Engine) handleStageFailure(ctx context.Context, stageName string, record *media.FileRecord, stageErr error) {
	logger := logging.WithContext(ctx, e.logger)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed without error detail", stageName)
	}
	record.SetFailed(stageName, message)

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldStage, stageName),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := e.store.Update(ctx, record); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	e.mu.Lock()
	if e.batchActive {
		e.batchFailed++
	}
	e.mu.Unlock()

	if e.notifier != nil {
		if err := e.notifier.NotifyFileFailed(ctx, record.DisplayName, stageName, message); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}
