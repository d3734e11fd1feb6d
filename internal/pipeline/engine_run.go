package pipeline

import (
	"context"
	"errors"
	"time"

	"revoice/internal/logging"
)

// Start begins background processing. Records interrupted by a previous
// unclean shutdown are rolled back to the start of their stage first.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("pipeline already running")
	}
	if len(e.stageByStart) == 0 {
		e.mu.Unlock()
		return errors.New("pipeline stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	e.mu.Unlock()

	if reset, err := e.store.ResetStuckProcessing(runCtx); err != nil {
		e.logger.Warn("reset stuck processing failed", logging.Error(err))
	} else if reset > 0 {
		e.logger.Info("reset records stuck in processing", logging.Int64("count", reset))
	}

	go e.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight stage to
// observe cancellation. Interrupted work is rolled back to its stage start so
// a later batch can resume it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	if reset, err := e.store.ResetStuckProcessing(context.Background()); err != nil {
		e.logger.Warn("rollback of interrupted stage failed", logging.Error(err))
	} else if reset > 0 {
		e.logger.Info("rolled back interrupted records", logging.Int64("count", reset))
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, ok := e.popNext()
		if !ok {
			e.maybeNotifyBatchDone(ctx)
			if !e.waitForWork(ctx) {
				return
			}
			continue
		}

		if err := e.processRecord(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (e *Engine) popNext() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return 0, false
	}
	id := e.queue[0]
	e.queue = e.queue[1:]
	delete(e.queued, id)
	e.activeID = id
	return id, true
}

func (e *Engine) clearActive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeID = 0
}

// waitForWork blocks until new work arrives, the poll interval elapses, or the
// engine shuts down. Returns false on shutdown.
func (e *Engine) waitForWork(ctx context.Context) bool {
	e.reclaimStale(ctx)
	select {
	case <-ctx.Done():
		return false
	case <-e.wake:
		return true
	case <-time.After(e.pollInterval):
		return true
	}
}

func (e *Engine) reclaimStale(ctx context.Context) {
	if err := e.heartbeat.reclaim(ctx); err != nil {
		e.logger.Warn("reclaim stale processing failed; stuck records may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check record database access"),
		)
	}
}

// enqueueLocked appends ids not already queued. Caller holds e.mu.
func (e *Engine) enqueueLocked(front bool, ids ...int64) int {
	added := 0
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := e.queued[id]; ok {
			continue
		}
		if e.activeID == id {
			continue
		}
		e.queued[id] = struct{}{}
		if front {
			e.queue = append([]int64{id}, e.queue...)
		} else {
			e.queue = append(e.queue, id)
		}
		added++
	}
	return added
}

func (e *Engine) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds records to the processing queue, skipping duplicates. It is
// also how approved review records re-enter the pipeline.
func (e *Engine) Enqueue(ids ...int64) int {
	e.mu.Lock()
	added := e.enqueueLocked(false, ids...)
	e.mu.Unlock()
	if added > 0 {
		e.signalWake()
	}
	return added
}

// requeueFront puts a record at the head of the queue so it continues through
// its remaining stages before the next file starts. The active slot is
// released first; enqueueLocked skips the in-flight id.
func (e *Engine) requeueFront(id int64) {
	e.mu.Lock()
	if e.activeID == id {
		e.activeID = 0
	}
	e.enqueueLocked(true, id)
	e.mu.Unlock()
	e.signalWake()
}

func (e *Engine) maybeNotifyBatchDone(ctx context.Context) {
	e.mu.Lock()
	if !e.batchActive || len(e.queue) > 0 || e.activeID != 0 {
		e.mu.Unlock()
		return
	}
	processed := e.batchProcessed
	failed := e.batchFailed
	started := e.batchStart
	e.batchActive = false
	e.mu.Unlock()

	e.logger.Info("batch complete",
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("batch_duration", time.Since(started)),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	if e.notifier != nil {
		if err := e.notifier.NotifyBatchCompleted(ctx, processed, failed, time.Since(started)); err != nil {
			e.logger.Warn("batch completion notification failed", logging.Error(err))
		}
	}
}
