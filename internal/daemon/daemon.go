package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/api"
	"curator/internal/classifier"
	"curator/internal/config"
	"curator/internal/journal"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/organizer"
	"curator/internal/queue"
	"curator/internal/watchfs"
	"curator/internal/workflow"
)

const (
	sweepInterval  = 2 * time.Second
	pruneInterval  = time.Minute
	notifyDeadline = 10 * time.Second
)

// Daemon owns the long-running pieces of the pipeline and their lifecycle.
type Daemon struct {
	configs *config.Manager
	store   *queue.Store
	journal *journal.Journal
	logger  *slog.Logger

	workflow *workflow.Manager
	mover    *organizer.Mover
	resolver *organizer.Resolver

	lock *flock.Flock

	notifyMu sync.Mutex
	notifier notifications.Service

	observeOnce sync.Once

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	watchers []*watchfs.Watcher
	wg       sync.WaitGroup
}

// New assembles a daemon from its collaborators. The journal may be nil, in
// which case transitions are not persisted and history queries return empty.
func New(configs *config.Manager, store *queue.Store, jrnl *journal.Journal, logger *slog.Logger) *Daemon {
	cfg := configs.Current()
	d := &Daemon{
		configs:  configs,
		store:    store,
		journal:  jrnl,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		notifier: notifications.NewService(cfg),
		lock:     flock.New(cfg.LockPath()),
	}
	mover := organizer.NewMover(store, jrnl, logger)
	d.mover = mover
	d.resolver = organizer.NewResolver(configs, store, mover, logger)
	d.workflow = workflow.NewManager(configs, store, buildGateway(cfg), logger)
	configs.Subscribe(d.applyReload)
	return d
}

func buildGateway(cfg *config.Config) classifier.Gateway {
	if cfg.Classifier.DryRun {
		return classifier.DryRun{UnsortedDir: cfg.Library.UnsortedDir}
	}
	return classifier.New(cfg.Classifier)
}

// applyReload swaps the pieces that depend on config snapshots. Units already
// in flight finish against the gateway they started with.
func (d *Daemon) applyReload(_, current *config.Config) {
	d.workflow.SetGateway(buildGateway(current))
	d.notifyMu.Lock()
	d.notifier = notifications.NewService(current)
	d.notifyMu.Unlock()
	d.logger.Info("configuration applied",
		logging.String(logging.FieldEventType, "config_applied"))
}

func (d *Daemon) currentNotifier() notifications.Service {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	return d.notifier
}

// Start acquires the instance lock and launches the watchers, the debounce
// pipelines, the queue worker, and the periodic sweeps.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	cfg := d.configs.Current()

	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another curator daemon instance is already running")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	for _, dir := range []string{cfg.Paths.DownloadingDir, cfg.Paths.CompletedDir, cfg.Paths.LibraryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("create watch root: %w", err)
		}
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	} else if reset > 0 {
		d.logger.Info("requeued interrupted jobs", logging.Int64("count", reset))
	}

	// Observers survive Stop so a restart must not register them twice.
	d.observeOnce.Do(func() {
		if d.journal != nil {
			d.store.AddObserver(d.journal.Observer())
		}
		d.store.AddObserver(d.notifyTransition)
	})

	downloadWatcher, err := watchfs.NewWatcher([]string{cfg.Paths.DownloadingDir}, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("watch downloading dir: %w", err)
	}
	completedWatcher, err := watchfs.NewWatcher([]string{cfg.Paths.CompletedDir}, d.logger)
	if err != nil {
		_ = downloadWatcher.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("watch completed dir: %w", err)
	}

	quiet := func() time.Duration { return d.configs.Current().QuietWindow() }
	downloadDebounce := watchfs.NewDebouncer(watchfs.DebouncerOptions{QuietWindow: quiet})
	completedDebounce := watchfs.NewDebouncer(watchfs.DebouncerOptions{QuietWindow: quiet})

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.watchers = []*watchfs.Watcher{downloadWatcher, completedWatcher}

	d.spawn(func() { downloadWatcher.Run(runCtx) })
	d.spawn(func() { completedWatcher.Run(runCtx) })
	d.spawn(func() { downloadDebounce.Run(runCtx) })
	d.spawn(func() { completedDebounce.Run(runCtx) })
	d.spawn(func() { d.pumpDownloading(runCtx, downloadWatcher, downloadDebounce) })
	d.spawn(func() { d.pumpCompleted(runCtx, completedWatcher, completedDebounce) })
	d.spawn(func() { d.consumeDownloading(runCtx, downloadDebounce) })
	d.spawn(func() { d.consumeCompleted(runCtx, completedDebounce) })
	d.spawn(func() { d.sweepLoop(runCtx) })
	d.spawn(func() { d.pruneLoop(runCtx) })
	d.spawn(func() {
		downloadWatcher.ScanExisting(runCtx)
		completedWatcher.ScanExisting(runCtx)
	})

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		for _, w := range d.watchers {
			_ = w.Close()
		}
		d.watchers = nil
		d.cancel = nil
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.running = true
	d.logger.Info("daemon started",
		logging.String("downloading_dir", cfg.Paths.DownloadingDir),
		logging.String("completed_dir", cfg.Paths.CompletedDir),
		logging.String("library_dir", cfg.Paths.LibraryDir))
	return nil
}

func (d *Daemon) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Stop shuts down the worker and background loops and releases the lock.
// Safe to call more than once.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.cancel = nil
	watchers := d.watchers
	d.watchers = nil
	d.mu.Unlock()

	d.workflow.Stop()
	if cancel != nil {
		cancel()
	}
	for _, w := range watchers {
		_ = w.Close()
	}
	d.wg.Wait()
	_ = d.lock.Unlock()
	d.logger.Info("daemon stopped")
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Status assembles the daemon snapshot served over IPC.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	cfg := d.configs.Current()
	summary := d.workflow.Status(ctx)

	worker := api.WorkerStatus{
		Running:    summary.Running,
		State:      string(summary.State),
		QueueStats: make(map[string]int, len(summary.QueueStats)),
		LastError:  summary.LastError,
	}
	for status, count := range summary.QueueStats {
		worker.QueueStats[string(status)] = count
	}
	if summary.LastJob != nil {
		job := api.FromJob(summary.LastJob)
		worker.LastJob = &job
	}

	return api.DaemonStatus{
		Running:      d.Running(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: cfg.LockPath(),
		SocketPath:   cfg.Paths.SocketPath,
		ConfigPath:   d.configs.Path(),
		Worker:       worker,
	}
}

// notifyTransition fans queue transitions out to ntfy. Sends happen off the
// observer goroutine because observers must not block the store.
func (d *Daemon) notifyTransition(rec queue.TransitionRecord) {
	switch rec.To {
	case queue.StatusPendingCompletion, queue.StatusCompleted, queue.StatusFailed:
	default:
		return
	}
	go func() {
		ctx, cancelFn := context.WithTimeout(context.Background(), notifyDeadline)
		defer cancelFn()

		job, err := d.store.GetByID(ctx, rec.JobID)
		if err != nil {
			return
		}
		notifier := d.currentNotifier()
		switch rec.To {
		case queue.StatusPendingCompletion:
			err = notifier.NotifyClassified(ctx, job.OriginalFilename, job.SuggestedPath, job.Confidence)
		case queue.StatusCompleted:
			err = notifier.NotifyOrganized(ctx, job.OriginalFilename, job.SuggestedPath)
		case queue.StatusFailed:
			err = notifier.NotifyJobFailed(ctx, job.OriginalFilename, job.ErrorMessage)
		}
		if err != nil {
			d.logger.Warn("notification send failed",
				logging.String(logging.FieldJobID, rec.JobID),
				logging.Error(err))
		}
	}()
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.resolver.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("sweep failed", logging.Error(err))
			}
		}
	}
}

func (d *Daemon) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-d.configs.Current().CompletedGrace())
			pruned, err := d.store.PruneCompleted(ctx, cutoff)
			if err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("completed prune failed", logging.Error(err))
				continue
			}
			if pruned > 0 {
				d.logger.Info("pruned completed jobs", logging.Int64("count", pruned))
			}
		}
	}
}
