package organizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/organizer"
	"curator/internal/queue"
	"curator/internal/services"
)

type fixture struct {
	cfg     *config.Config
	configs *config.Manager
	store   *queue.Store
	mover   *organizer.Mover
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadingDir = filepath.Join(root, "downloading")
	cfg.Paths.CompletedDir = filepath.Join(root, "completed")
	cfg.Paths.LibraryDir = filepath.Join(root, "library")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	for _, dir := range []string{cfg.Paths.DownloadingDir, cfg.Paths.CompletedDir, cfg.Paths.LibraryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	store, err := queue.OpenPath(filepath.Join(root, "curator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &fixture{
		cfg:     &cfg,
		configs: config.NewManager("", &cfg, logging.NewNop()),
		store:   store,
		mover:   organizer.NewMover(store, nil, logging.NewNop()),
	}
}

// pendingJob creates a job already classified and waiting for its download to
// finish.
func (f *fixture) pendingJob(t *testing.T, filename, suggested, groupID string, primary bool) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.store.Create(ctx, queue.NewJob{
		SourcePath:   filepath.Join(f.cfg.Paths.DownloadingDir, filename),
		GroupID:      groupID,
		GroupPrimary: primary,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	for _, status := range []queue.Status{queue.StatusProcessing, queue.StatusPendingCompletion} {
		status := status
		if _, err := f.store.Update(ctx, job.ID, func(j *queue.Job) error {
			j.Status = status
			j.SuggestedPath = suggested
			return nil
		}); err != nil {
			t.Fatalf("advance job to %s: %v", status, err)
		}
	}
	updated, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	return updated
}

func (f *fixture) completedFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.CompletedDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("media payload"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestMoveIntoLibrary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "A.2020.mkv", "Movies/A (2020)/A (2020).mkv", "", false)
	source := f.completedFile(t, "A.2020.mkv")

	if err := f.mover.Move(ctx, f.cfg, job, source); err != nil {
		t.Fatalf("move: %v", err)
	}

	dest := filepath.Join(f.cfg.Paths.LibraryDir, "Movies", "A (2020)", "A (2020).mkv")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source should be gone, stat err=%v", err)
	}

	final, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
}

func TestMoveConflictLeavesJobPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "A.2020.mkv", "Movies/A (2020)/A (2020).mkv", "", false)
	source := f.completedFile(t, "A.2020.mkv")

	dest := filepath.Join(f.cfg.Paths.LibraryDir, "Movies", "A (2020)", "A (2020).mkv")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, []byte("already here"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}

	err := f.mover.Move(ctx, f.cfg, job, source)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if _, statErr := os.Stat(source); statErr != nil {
		t.Fatalf("source must remain on conflict: %v", statErr)
	}
	content, _ := os.ReadFile(dest)
	if string(content) != "already here" {
		t.Fatal("existing destination must not be replaced")
	}

	final, reloadErr := f.store.GetByID(ctx, job.ID)
	if reloadErr != nil {
		t.Fatalf("reload: %v", reloadErr)
	}
	if final.Status != queue.StatusPendingCompletion {
		t.Fatalf("status = %s, want pending_completion", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("conflict should surface on the job")
	}
}

func TestMoveOverwritesInsideUnsorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	suggested := filepath.Join(f.cfg.Library.UnsortedDir, "A.2020.mkv")
	job := f.pendingJob(t, "A.2020.mkv", suggested, "", false)
	source := f.completedFile(t, "A.2020.mkv")

	dest := filepath.Join(f.cfg.Paths.LibraryDir, suggested)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, []byte("stale copy"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}

	if err := f.mover.Move(ctx, f.cfg, job, source); err != nil {
		t.Fatalf("move: %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(content) != "media payload" {
		t.Fatal("catch-all collision should be last-write-wins")
	}
}

func TestMovePrunesEmptyAncestors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "A.2020.mkv", "Movies/A (2020)/A (2020).mkv", "", false)
	source := f.completedFile(t, filepath.Join("Some.Release", "Extras", "A.2020.mkv"))

	if err := f.mover.Move(ctx, f.cfg, job, source); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.CompletedDir, "Some.Release")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty release directory should be pruned, stat err=%v", err)
	}
	if _, err := os.Stat(f.cfg.Paths.CompletedDir); err != nil {
		t.Fatalf("completed root must survive pruning: %v", err)
	}
}

func TestMoveRejectsEscapingSuggestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "A.2020.mkv", "../outside/A.mkv", "", false)
	source := f.completedFile(t, "A.2020.mkv")

	err := f.mover.Move(ctx, f.cfg, job, source)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	final, reloadErr := f.store.GetByID(ctx, job.ID)
	if reloadErr != nil {
		t.Fatalf("reload: %v", reloadErr)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
}

func TestResolverMovesGroupTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.pendingJob(t, "Show.S01E01.mkv",
		"TV Shows/Show (2020)/Season 01/Show (2020) - S01E01 - Pilot.mkv", "g1", true)
	sub := f.pendingJob(t, "Show.S01E01.srt",
		"TV Shows/Show (2020)/Season 01/Show.S01E01.srt", "g1", false)

	video := f.completedFile(t, "Show.S01E01.mkv")
	f.completedFile(t, "Show.S01E01.srt")

	resolver := organizer.NewResolver(f.configs, f.store, f.mover, logging.NewNop())
	if err := resolver.HandleFile(ctx, video); err != nil {
		t.Fatalf("handle file: %v", err)
	}

	for _, want := range []string{
		filepath.Join("TV Shows", "Show (2020)", "Season 01", "Show (2020) - S01E01 - Pilot.mkv"),
		filepath.Join("TV Shows", "Show (2020)", "Season 01", "Show.S01E01.srt"),
	} {
		if _, err := os.Stat(filepath.Join(f.cfg.Paths.LibraryDir, want)); err != nil {
			t.Fatalf("expected %s in library: %v", want, err)
		}
	}
	final, err := f.store.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("reload subtitle job: %v", err)
	}
	if final.Status != queue.StatusCompleted {
		t.Fatalf("subtitle status = %s, want completed", final.Status)
	}
}

func TestResolverIgnoresUntrackedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := f.completedFile(t, "random.iso")
	resolver := organizer.NewResolver(f.configs, f.store, f.mover, logging.NewNop())
	if err := resolver.HandleFile(ctx, path); err != nil {
		t.Fatalf("handle file: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("untracked file must stay put: %v", err)
	}
}

func TestSweepPurgesVanishedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "gone.mkv", "Movies/Gone (2019)/Gone (2019).mkv", "", false)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resolver := organizer.NewResolver(f.configs, f.store, f.mover, logging.NewNop(),
		organizer.WithNow(func() time.Time { return now }))

	if err := resolver.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	stamped, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stamped.MissingSince == nil {
		t.Fatal("first absent observation should stamp missing_since")
	}

	now = now.Add(f.cfg.MissingFileGrace() + time.Second)
	if err := resolver.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if _, err := f.store.GetByID(ctx, job.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected purge, got err=%v", err)
	}
}

func TestSweepClearsMarkerWhenFileReturns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.pendingJob(t, "back.mkv", "Movies/Back (2021)/Back (2021).mkv", "", false)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resolver := organizer.NewResolver(f.configs, f.store, f.mover, logging.NewNop(),
		organizer.WithNow(func() time.Time { return now }))

	if err := resolver.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	f.completedFile(t, "back.mkv")

	now = now.Add(f.cfg.MissingFileGrace() + time.Second)
	if err := resolver.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	final, err := f.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("job should survive once its file returns: %v", err)
	}
	if final.MissingSince != nil {
		t.Fatal("missing marker should clear when the file reappears")
	}
}
