package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"revoice/internal/logging"
	"revoice/internal/media"
)

// heartbeatMonitor keeps last_heartbeat fresh for the in-flight record and
// reclaims records whose heartbeat expired, e.g. after a crashed run.
type heartbeatMonitor struct {
	store    *media.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeatMonitor(store *media.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= interval {
		timeout = interval * 4
	}
	return &heartbeatMonitor{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// startLoop periodically refreshes the heartbeat for a record until the
// context is cancelled. Runs in its own goroutine per in-flight record.
func (m *heartbeatMonitor) startLoop(ctx context.Context, wg *sync.WaitGroup, id int64) {
	defer wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, id); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.Int64(logging.FieldFileID, id),
				)
			}
		}
	}
}

// reclaim rolls back records whose heartbeat expired to the start of their
// current stage so they become eligible for processing again.
func (m *heartbeatMonitor) reclaim(ctx context.Context) error {
	cutoff := time.Now().Add(-m.timeout)
	reclaimed, err := m.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed stale processing records", logging.Int64("count", reclaimed))
	}
	return nil
}
