package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadingDir = filepath.Join(root, "downloading")
	cfg.Paths.CompletedDir = filepath.Join(root, "completed")
	cfg.Paths.LibraryDir = filepath.Join(root, "library")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.SocketPath = filepath.Join(root, "curator.sock")
	cfg.Watch.QuietWindowSeconds = 1
	cfg.Worker.PollIntervalSeconds = 1
	cfg.Classifier.DryRun = true
	return &cfg
}

func newTestDaemon(t *testing.T) (*Daemon, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := queue.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	configs := config.NewManager("", cfg, logging.NewNop())
	d := New(configs, store, nil, logging.NewNop())
	return d, store, cfg
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	testsupport.SeedMediaFile(t, path, 64)
}

func waitFor(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIngestBatchGroupsRelatedFiles(t *testing.T) {
	d, store, cfg := newTestDaemon(t)
	ctx := context.Background()

	video := filepath.Join(cfg.Paths.DownloadingDir, "Show.S01E01.mkv")
	subtitle := filepath.Join(cfg.Paths.DownloadingDir, "Show.S01E01.srt")
	if err := d.ingestBatch(ctx, []string{subtitle, video}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	videoJob, err := store.FindBySourcePath(ctx, video)
	if err != nil || videoJob == nil {
		t.Fatalf("video job missing: %v", err)
	}
	subtitleJob, err := store.FindBySourcePath(ctx, subtitle)
	if err != nil || subtitleJob == nil {
		t.Fatalf("subtitle job missing: %v", err)
	}
	if videoJob.GroupID == "" || videoJob.GroupID != subtitleJob.GroupID {
		t.Fatalf("expected shared group, got %q and %q", videoJob.GroupID, subtitleJob.GroupID)
	}
	if !videoJob.GroupPrimary {
		t.Fatal("video should be group primary")
	}
	if subtitleJob.GroupPrimary {
		t.Fatal("subtitle should not be group primary")
	}
}

func TestIngestBatchLateSiblingJoinsExistingJob(t *testing.T) {
	d, store, cfg := newTestDaemon(t)
	ctx := context.Background()

	video := filepath.Join(cfg.Paths.DownloadingDir, "Movie (2021).mkv")
	if err := d.ingestBatch(ctx, []string{video}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	videoJob, err := store.FindBySourcePath(ctx, video)
	if err != nil || videoJob == nil {
		t.Fatalf("video job missing: %v", err)
	}
	if videoJob.Grouped() {
		t.Fatal("lone video should be ungrouped")
	}

	subtitle := filepath.Join(cfg.Paths.DownloadingDir, "Movie (2021).srt")
	if err := d.ingestBatch(ctx, []string{subtitle}); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	videoJob, err = store.GetByID(ctx, videoJob.ID)
	if err != nil {
		t.Fatalf("reload video job: %v", err)
	}
	subtitleJob, err := store.FindBySourcePath(ctx, subtitle)
	if err != nil || subtitleJob == nil {
		t.Fatalf("subtitle job missing: %v", err)
	}
	if videoJob.GroupID == "" || videoJob.GroupID != subtitleJob.GroupID {
		t.Fatal("late subtitle should join the video's group")
	}
	if !videoJob.GroupPrimary || subtitleJob.GroupPrimary {
		t.Fatal("video should stay primary after widening")
	}
}

func TestIngestBatchIsIdempotent(t *testing.T) {
	d, store, cfg := newTestDaemon(t)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.DownloadingDir, "Film.mkv")
	for range 3 {
		if err := d.ingestBatch(ctx, []string{path}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
}

func TestDropVanishedJobOnlyPurgesQueued(t *testing.T) {
	d, store, cfg := newTestDaemon(t)
	ctx := context.Background()

	queuedPath := filepath.Join(cfg.Paths.DownloadingDir, "Gone.mkv")
	queuedJob, err := store.Create(ctx, queue.NewJob{SourcePath: queuedPath})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	d.dropVanishedJob(ctx, queuedPath)
	if _, err := store.GetByID(ctx, queuedJob.ID); err == nil {
		t.Fatal("queued job should be purged when its source vanishes")
	}

	activePath := filepath.Join(cfg.Paths.DownloadingDir, "Active.mkv")
	activeJob, err := store.Create(ctx, queue.NewJob{SourcePath: activePath})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, activeJob.ID, func(j *queue.Job) error {
		j.Status = queue.StatusProcessing
		return nil
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	d.dropVanishedJob(ctx, activePath)
	if _, err := store.GetByID(ctx, activeJob.ID); err != nil {
		t.Fatal("processing job must not be purged by a remove event")
	}
}

func TestDaemonEndToEndDryRun(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end test uses real timers")
	}
	d, store, cfg := newTestDaemon(t)
	ctx := context.Background()

	source := filepath.Join(cfg.Paths.DownloadingDir, "Show.S01E01.mkv")
	writeFile(t, source)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	var job *queue.Job
	waitFor(t, "classification suggestion", func() bool {
		found, err := store.FindBySourcePath(ctx, source)
		if err != nil || found == nil {
			return false
		}
		job = found
		return found.Status == queue.StatusPendingCompletion
	})
	if job.SuggestedPath == "" {
		t.Fatal("dry-run gateway should record a suggestion")
	}

	completed := filepath.Join(cfg.Paths.CompletedDir, "Show.S01E01.mkv")
	writeFile(t, completed)

	waitFor(t, "library move", func() bool {
		found, err := store.GetByID(ctx, job.ID)
		return err == nil && found.Status == queue.StatusCompleted
	})

	dest := filepath.Join(cfg.Paths.LibraryDir, job.SuggestedPath)
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("moved file missing at %s: %v", dest, err)
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(ctx); err == nil {
		t.Fatal("second start should fail while running")
	}
}
