package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"revoice/internal/api"
	"revoice/internal/daemon"
	"revoice/internal/export"
	"revoice/internal/logging"
	"revoice/internal/media"
	"revoice/internal/review"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. The shutdown
// callback is invoked when a client requests daemon shutdown.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName("Revoice", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before restarting"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.QueueDepth = status.QueueDepth
	resp.ActiveID = status.ActiveID
	resp.Stats = api.MergeStats(status.Stats)
	resp.ReviewPending = status.ReviewPending
	resp.LastError = status.LastError
	resp.StageHealth = api.StageHealthSlice(status.StageHealth)
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	s.log().Debug("batch start requested")
	queued, err := s.daemon.StartBatch(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Queued = queued
	resp.Message = fmt.Sprintf("queued %d files", queued)
	s.log().Info("batch started via IPC",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("queued", queued))
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("daemon shutdown requested",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	resp.Stopping = true
	if s.shutdown != nil {
		go s.shutdown()
	}
	return nil
}

func (s *service) QueueAdd(req QueueAddRequest, resp *QueueAddResponse) error {
	records, err := s.daemon.AddFiles(s.ctx, req.Paths)
	if err != nil {
		return err
	}
	resp.Files = api.FromRecords(records)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]media.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := media.ParseStatus(raw)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	records, err := s.daemon.ListFiles(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Files = api.FromRecords(records)
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid file id %d", req.ID)
	}
	record, err := s.daemon.GetFile(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("file %d not found", req.ID)
	}
	resp.File = api.FromRecord(record)
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid file id %d", req.ID)
	}
	removed, err := s.daemon.RemoveFile(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	var removed int64
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Scope)) {
	case "", "all":
		removed, err = s.daemon.Clear(s.ctx)
	case "completed":
		removed, err = s.daemon.ClearCompleted(s.ctx)
	case "failed":
		removed, err = s.daemon.ClearFailed(s.ctx)
	default:
		return fmt.Errorf("unknown clear scope %q", req.Scope)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.String("scope", req.Scope),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("failed files retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) Reprocess(req ReprocessRequest, resp *ReprocessResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid file id %d", req.ID)
	}
	if err := s.daemon.Reprocess(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Message = fmt.Sprintf("file %d reprocessed", req.ID)
	return nil
}

func (s *service) ReviewList(_ ReviewListRequest, resp *ReviewListResponse) error {
	records, err := s.daemon.ReviewPending(s.ctx)
	if err != nil {
		return err
	}
	resp.Files = api.FromRecords(records)
	return nil
}

func (s *service) ReviewApprove(req ReviewApproveRequest, resp *ReviewApproveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid file id %d", req.ID)
	}
	edits := review.Edits{
		TranscriptionText: req.TranscriptionText,
		RewriteText:       req.RewriteText,
	}
	if err := s.daemon.ApproveReview(s.ctx, req.ID, edits); err != nil {
		return err
	}
	resp.Approved = true
	return nil
}

func (s *service) ReviewApproveAll(_ ReviewApproveAllRequest, resp *ReviewApproveAllResponse) error {
	approved, err := s.daemon.ApproveAllReviews(s.ctx)
	if err != nil {
		return err
	}
	resp.Approved = approved
	return nil
}

func (s *service) ReviewReject(req ReviewRejectRequest, resp *ReviewRejectResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid file id %d", req.ID)
	}
	if err := s.daemon.RejectReview(s.ctx, req.ID, req.Reason); err != nil {
		return err
	}
	resp.Rejected = true
	return nil
}

func (s *service) Voices(_ VoicesRequest, resp *VoicesResponse) error {
	voices, err := s.daemon.Voices(s.ctx)
	if err != nil {
		return err
	}
	resp.Voices = voices
	return nil
}

func (s *service) SettingsGet(_ SettingsGetRequest, resp *SettingsResponse) error {
	resp.Settings = s.daemon.Settings()
	return nil
}

func (s *service) SettingsSet(req SettingsSetRequest, resp *SettingsResponse) error {
	updated, err := s.daemon.UpdateSettings(req.Settings)
	if err != nil {
		return err
	}
	resp.Settings = updated
	s.log().Info("settings updated",
		logging.String(logging.FieldEventType, "settings_update"))
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	kind, ok := export.ParseKind(req.Kind)
	if !ok {
		return fmt.Errorf("unknown export kind %q", req.Kind)
	}
	path, records, err := s.daemon.Export(s.ctx, kind)
	if err != nil {
		return err
	}
	resp.Path = path
	resp.Records = records
	return nil
}

func (s *service) RecordHealth(_ RecordHealthRequest, resp *RecordHealthResponse) error {
	health, err := s.daemon.RecordHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Pending = health.Pending
	resp.Processing = health.Processing
	resp.ReviewPending = health.ReviewPending
	resp.Failed = health.Failed
	resp.Completed = health.Completed
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalRecords = health.TotalRecords
	resp.Error = health.Error
	return err
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
