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
	"time"

	"log/slog"

	"visionrecall/internal/daemon"
	"visionrecall/internal/logging"
	"visionrecall/internal/logs"
	"visionrecall/internal/queue"
)

// ServiceName prefixes every RPC method.
const ServiceName = "VisionRecall"

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

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
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
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
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
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "ipc")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	snap := status.Workflow.Status

	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = formatTime(status.StartedAt)
	resp.LoopRunning = status.Workflow.Running
	resp.IsProcessing = snap.IsProcessing
	resp.IsPaused = snap.IsPaused
	resp.IsStopped = snap.IsStopped
	resp.CurrentItem = snap.CurrentItem
	resp.Progress = snap.Progress
	resp.Message = snap.Message
	resp.Total = snap.Total
	resp.Queue = make([]QueueItem, 0, len(snap.Queue))
	for i := range snap.Queue {
		resp.Queue = append(resp.Queue, FromQueueItem(&snap.Queue[i]))
	}
	resp.QueueStats = make(map[string]int, len(status.Workflow.QueueStats))
	for k, v := range status.Workflow.QueueStats {
		resp.QueueStats[string(k)] = v
	}
	resp.LastError = status.Workflow.LastError
	if resp.LastError == "" {
		resp.LastError = snap.LastError
	}
	if status.Workflow.LastItem != nil {
		item := FromQueueItem(status.Workflow.LastItem)
		resp.LastItem = &item
	}
	resp.IntakeEnabled = status.IntakeEnabled
	resp.IntakeDir = status.IntakeDir
	if status.IntakeInterval > 0 {
		resp.IntakeInterval = status.IntakeInterval.String()
	}
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	if len(req.Paths) == 0 {
		return errors.New("enqueue requires at least one path")
	}
	items, err := s.daemon.Enqueue(s.ctx, req.Paths)
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		resp.Items = append(resp.Items, FromQueueItem(item))
	}
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				resp.Errors = append(resp.Errors, line)
			}
		}
	}
	s.log().Debug("enqueue via IPC",
		logging.Int("requested", len(req.Paths)),
		logging.Int("queued", len(resp.Items)),
	)
	return nil
}

func (s *service) control(action string, resp *ControlResponse) {
	snap := s.daemon.Status(s.ctx).Workflow.Status
	resp.Action = action
	resp.IsProcessing = snap.IsProcessing
	resp.IsPaused = snap.IsPaused
	resp.IsStopped = snap.IsStopped
	s.log().Info("queue control via IPC",
		logging.String(logging.FieldEventType, "queue_control"),
		logging.String("action", action),
	)
}

func (s *service) Pause(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Pause()
	s.control("paused", resp)
	return nil
}

func (s *service) Resume(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.Resume()
	s.control("resumed", resp)
	return nil
}

func (s *service) Stop(_ ControlRequest, resp *ControlResponse) error {
	s.daemon.StopQueue()
	s.control("stopped", resp)
	return nil
}

func (s *service) Toggle(_ ControlRequest, resp *ControlResponse) error {
	action := s.daemon.Toggle()
	s.control(action, resp)
	return nil
}

func (s *service) Clear(req ClearRequest, resp *ClearResponse) error {
	var (
		removed int64
		err     error
	)
	if req.TerminalOnly {
		removed, err = s.daemon.ClearTerminal(s.ctx)
	} else {
		removed, err = s.daemon.ClearQueue(s.ctx)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Bool("terminal_only", req.TerminalOnly),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if len(req.Refs) == 0 {
		return errors.New("remove requires at least one id or path")
	}
	for _, ref := range req.Refs {
		removed, err := s.daemon.RemoveItem(s.ctx, ref)
		if err != nil {
			return fmt.Errorf("remove %s: %w", ref, err)
		}
		if removed {
			resp.Removed++
		} else {
			resp.NotFound = append(resp.NotFound, ref)
		}
	}
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q", status)
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Items = append(resp.Items, FromQueueItem(item))
	}
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Pending = health.Pending
	resp.Processing = health.Processing
	resp.Completed = health.Completed
	resp.Failed = health.Failed
	resp.Skipped = health.Skipped
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
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalItems = health.TotalItems
	resp.Error = health.Error
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Filter: logs.All(logs.MinLevel(req.Level), logs.ForItem(req.ItemID), logs.ForComponent(req.Component)),
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, s.daemon.LogPath(), options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
