package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"revoice/internal/config"
	"revoice/internal/daemon"
	"revoice/internal/ipc"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/pipeline"
	"revoice/internal/review"
	"revoice/internal/rewrite"
	"revoice/internal/settings"
	"revoice/internal/synthesis"
	"revoice/internal/transcription"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "revoiced.pid")
	if err := writePIDFile(pidPath); err != nil {
		logger.Error("write pid file", logging.Error(err))
		os.Exit(1)
	}
	defer os.Remove(pidPath)

	store, err := media.Open(cfg)
	if err != nil {
		logger.Error("open record store", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	settingsStore, err := settings.NewStore(cfg.SettingsPath())
	if err != nil {
		logger.Error("open settings store", logging.Error(err))
		os.Exit(1)
	}

	engine := pipeline.New(cfg, store, settingsStore, logger)
	engine.ConfigureStages(pipeline.StageSet{
		Transcriber: transcription.New(cfg, store, settingsStore, logger),
		Rewriter:    rewrite.New(cfg, store, settingsStore, logger),
		Synthesizer: synthesis.New(cfg, store, settingsStore, logger),
	})

	gate := review.New(store, engine, logger)
	engine.SetReviewGate(gate)

	d, err := daemon.New(cfg, store, settingsStore, engine, gate, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger, cancel)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
		)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("revoice daemon shutting down")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
