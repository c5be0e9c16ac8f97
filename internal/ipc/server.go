package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"curator/internal/api"
	"curator/internal/daemon"
	"curator/internal/logging"
	"curator/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. A stale
// socket left by a crashed daemon is removed before listening.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Curator", &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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
					logging.String(logging.FieldErrorHint, "check socket permissions; restart the daemon if needed"))
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
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.daemon.ListQueue(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	var (
		removed int64
		err     error
	)
	switch req.Scope {
	case "", "all":
		removed, err = s.daemon.ClearQueue(s.ctx)
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
	s.logger.Info("queue cleared via ipc",
		logging.String("scope", req.Scope),
		logging.Int64("removed", removed))
	return nil
}

func (s *service) QueueReset(_ QueueResetRequest, resp *QueueResetResponse) error {
	reset, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Reset = reset
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	retried, err := s.daemon.RetryFailed(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Retried = retried
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	removed, err := s.daemon.RemoveJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	resp.Deferred = !removed
	return nil
}

func (s *service) Reclassify(req ReclassifyRequest, resp *ReclassifyResponse) error {
	job, err := s.daemon.Reclassify(s.ctx, req.ID, req.Instructions)
	if err != nil {
		return err
	}
	resp.Job = job
	s.logger.Info("re-classification requested via ipc",
		logging.String(logging.FieldJobID, req.ID))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	transitions, err := s.daemon.RecentTransitions(s.ctx, limit)
	if err != nil {
		return err
	}
	movements, err := s.daemon.RecentMovements(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Transitions = transitions
	resp.Movements = movements
	return nil
}

func (s *service) Health(_ HealthRequest, resp *HealthResponse) error {
	summary, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	db, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Queue = api.FromHealth(summary)
	resp.Database = api.FromDatabaseHealth(db)
	return nil
}

func (s *service) ConfigReload(_ ConfigReloadRequest, resp *ConfigReloadResponse) error {
	if err := s.daemon.ReloadConfig(); err != nil {
		resp.Reloaded = false
		resp.Message = err.Error()
		return nil
	}
	resp.Reloaded = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	return nil
}
