// Package daemon coordinates the pipeline engine, review gate, and stores,
// and enforces single-instance execution via a lock file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"revoice/internal/config"
	"revoice/internal/export"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/notifications"
	"revoice/internal/pipeline"
	"revoice/internal/review"
	"revoice/internal/services/speech"
	"revoice/internal/settings"
	"revoice/internal/stage"
)

// Daemon owns the long-lived services behind the IPC surface.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *media.Store
	settings *settings.Store
	engine   *pipeline.Engine
	gate     *review.Gate
	exporter *export.Service
	notifier notifications.Service
	voices   *speech.Client
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	QueueDepth    int
	ActiveID      int64
	Stats         map[media.Status]int
	ReviewPending int
	LastError     string
	StageHealth   []stage.Health
	DBPath        string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	store *media.Store,
	settingsStore *settings.Store,
	engine *pipeline.Engine,
	gate *review.Gate,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || store == nil || settingsStore == nil || engine == nil || gate == nil {
		return nil, errors.New("daemon requires config, stores, engine, and review gate")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "revoiced.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		settings: settingsStore,
		engine:   engine,
		gate:     gate,
		exporter: export.New(cfg, store, logger),
		notifier: notifications.NewService(cfg),
		voices: speech.NewClient(speech.Config{
			BaseURL:        cfg.Speech.BaseURL,
			APIKey:         cfg.Speech.APIKey,
			Model:          cfg.Speech.Model,
			Format:         cfg.Speech.Format,
			TimeoutSeconds: cfg.Speech.TimeoutSeconds,
		}),
		logPath:  filepath.Join(cfg.Paths.LogDir, "revoice.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, restores parked review records, and starts
// the pipeline engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another revoice daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.gate.Rehydrate(runCtx); err != nil {
		d.logger.Warn("failed to restore review queue", logging.Error(err))
	}
	if err := d.engine.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start pipeline: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("revoice daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.engine.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("revoice daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read record stats", logging.Error(err))
	}

	status := Status{
		Running:       d.running.Load(),
		QueueDepth:    d.engine.QueueDepth(),
		ActiveID:      d.engine.ActiveID(),
		Stats:         stats,
		ReviewPending: d.gate.PendingCount(),
		StageHealth:   d.engine.Health(ctx),
		DBPath:        d.store.Path(),
		LockFilePath:  d.lockPath,
	}
	if lastErr := d.engine.LastError(); lastErr != nil {
		status.LastError = lastErr.Error()
	}
	return status
}
