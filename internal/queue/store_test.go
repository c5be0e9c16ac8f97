package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/queue"
)

func newStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store *queue.Store, spec queue.NewJob) *queue.Job {
	t.Helper()
	job, err := store.Create(context.Background(), spec)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestCreateAndGetByID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/Show.S01E01.mkv"})
	if job.ID == "" {
		t.Fatal("expected generated job id")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.OriginalFilename != "Show.S01E01.mkv" {
		t.Fatalf("original filename = %q", job.OriginalFilename)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if loaded.SourcePath != job.SourcePath {
		t.Fatalf("source path = %q, want %q", loaded.SourcePath, job.SourcePath)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := newStore(t)
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateAppliesMutatorAndNotifiesObservers(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var records []queue.TransitionRecord
	store.AddObserver(func(rec queue.TransitionRecord) {
		records = append(records, rec)
	})

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/movie.mkv"})

	updated, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusProcessing
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != queue.StatusProcessing {
		t.Fatalf("status = %s, want processing", updated.Status)
	}

	if len(records) != 1 {
		t.Fatalf("observer records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.JobID != job.ID || rec.From != queue.StatusQueued || rec.To != queue.StatusProcessing {
		t.Fatalf("unexpected record %+v", rec)
	}

	// Non-status updates do not notify.
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.SuggestedPath = "Shows/movie.mkv"
		return nil
	}); err != nil {
		t.Fatalf("update fields: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("observer records = %d after field update, want 1", len(records))
	}
}

func TestUpdateRejectsInvalidTransition(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/movie.mkv"})

	_, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusCompleted
		j.ErrorMessage = "should not persist"
		return nil
	})
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if loaded.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued after rejected update", loaded.Status)
	}
	if loaded.ErrorMessage != "" {
		t.Fatal("rejected update must not persist field changes")
	}
}

func TestUpdateMutatorErrorPersistsNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/movie.mkv"})

	boom := errors.New("boom")
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.SuggestedPath = "never"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if loaded.SuggestedPath != "" {
		t.Fatal("mutator error must not persist field changes")
	}
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to queue.Status
		want     bool
	}{
		{queue.StatusQueued, queue.StatusProcessing, true},
		{queue.StatusQueued, queue.StatusFailed, true},
		{queue.StatusProcessing, queue.StatusPendingCompletion, true},
		{queue.StatusProcessing, queue.StatusQueued, true},
		{queue.StatusProcessing, queue.StatusFailed, true},
		{queue.StatusPendingCompletion, queue.StatusCompleted, true},
		{queue.StatusPendingCompletion, queue.StatusQueued, true},
		{queue.StatusFailed, queue.StatusQueued, true},
		{queue.StatusQueued, queue.StatusCompleted, false},
		{queue.StatusCompleted, queue.StatusQueued, false},
		{queue.StatusPendingCompletion, queue.StatusProcessing, false},
		{queue.StatusQueued, queue.StatusQueued, true},
	}
	for _, tc := range cases {
		if got := queue.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNextQueuedHonorsBackoff(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	early := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	waiting := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/b.mkv"})

	future := now.Add(time.Hour)
	if _, err := store.Update(ctx, early.ID, func(j *queue.Job) error {
		j.NextAttemptAt = &future
		return nil
	}); err != nil {
		t.Fatalf("set backoff: %v", err)
	}

	next, err := store.NextQueued(ctx, now)
	if err != nil {
		t.Fatalf("next queued: %v", err)
	}
	if next == nil || next.ID != waiting.ID {
		t.Fatalf("next = %+v, want job %s", next, waiting.ID)
	}

	next, err = store.NextQueued(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("next queued after backoff: %v", err)
	}
	if next == nil || next.ID != early.ID {
		t.Fatalf("next = %+v, want older job %s once backoff elapses", next, early.ID)
	}
}

func TestPriorityQueuedSkipsNormalJobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/normal.mkv"})
	urgent := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/urgent.mkv"})

	got, err := store.PriorityQueued(ctx, now)
	if err != nil {
		t.Fatalf("priority queued: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no priority job, got %+v", got)
	}

	if _, err := store.Update(ctx, urgent.ID, func(j *queue.Job) error {
		j.Priority = true
		j.CustomInstructions = "file under Documentaries"
		return nil
	}); err != nil {
		t.Fatalf("mark priority: %v", err)
	}

	got, err = store.PriorityQueued(ctx, now)
	if err != nil {
		t.Fatalf("priority queued: %v", err)
	}
	if got == nil || got.ID != urgent.ID {
		t.Fatalf("priority = %+v, want %s", got, urgent.ID)
	}
}

func TestFindByFilenameFiltersStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/show.mkv"})

	found, err := store.FindByFilename(ctx, "show.mkv", queue.StatusPendingCompletion)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no pending_completion match, got %+v", found)
	}

	advance(t, store, job.ID, queue.StatusProcessing, queue.StatusPendingCompletion)

	found, err = store.FindByFilename(ctx, "show.mkv", queue.StatusPendingCompletion)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("found = %+v, want %s", found, job.ID)
	}
}

func TestGroupMembers(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	groupID := "group-1"
	video := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/ep.mkv", GroupID: groupID, GroupPrimary: true})
	sub := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/ep.srt", GroupID: groupID})
	mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/other.mkv"})

	members, err := store.GroupMembers(ctx, groupID)
	if err != nil {
		t.Fatalf("group members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].ID != video.ID || members[1].ID != sub.ID {
		t.Fatalf("unexpected member order: %s, %s", members[0].OriginalFilename, members[1].OriginalFilename)
	}
	if !members[0].GroupPrimary {
		t.Fatal("expected video to be group primary")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	stuck := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/stuck.mkv"})
	advance(t, store, stuck.ID, queue.StatusProcessing)
	untouched := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/fine.mkv"})

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if count != 1 {
		t.Fatalf("reset count = %d, want 1", count)
	}

	loaded, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if loaded.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want queued", loaded.Status)
	}
	if loaded.NextAttemptAt != nil {
		t.Fatal("reset must clear next_attempt_at")
	}

	other, err := store.GetByID(ctx, untouched.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if other.Status != queue.StatusQueued {
		t.Fatalf("untouched job status = %s", other.Status)
	}
}

func TestClearAndPrune(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	done := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/done.mkv"})
	advance(t, store, done.ID, queue.StatusProcessing, queue.StatusPendingCompletion, queue.StatusCompleted)

	failed := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/bad.mkv"})
	advance(t, store, failed.ID, queue.StatusFailed)

	mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/live.mkv"})

	if count, err := store.ClearFailed(ctx); err != nil || count != 1 {
		t.Fatalf("clear failed = (%d, %v), want (1, nil)", count, err)
	}

	if count, err := store.PruneCompleted(ctx, time.Now().UTC().Add(time.Minute)); err != nil || count != 1 {
		t.Fatalf("prune completed = (%d, %v), want (1, nil)", count, err)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
}

func TestHealthSummaryCounts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	b := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/b.mkv"})
	advance(t, store, b.ID, queue.StatusProcessing)

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Processing != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func advance(t *testing.T, store *queue.Store, id string, statuses ...queue.Status) {
	t.Helper()
	for _, status := range statuses {
		status := status
		if _, err := store.Update(context.Background(), id, func(j *queue.Job) error {
			j.Status = status
			return nil
		}); err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.AttemptCount = 3
		j.SetFailed("gateway timeout")
		return nil
	}); err != nil {
		t.Fatalf("fail job: %v", err)
	}
	survivor := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/b.mkv"})

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}

	retried, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if retried.Status != queue.StatusQueued || retried.AttemptCount != 0 || retried.ErrorMessage != "" {
		t.Fatalf("retried job = %+v", retried)
	}

	untouched, err := store.GetByID(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("reload survivor: %v", err)
	}
	if untouched.Status != queue.StatusQueued {
		t.Fatalf("survivor status = %s", untouched.Status)
	}
}

func TestReclassifyResetsSuggestion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	advance(t, store, job.ID, queue.StatusProcessing, queue.StatusPendingCompletion)
	if _, err := store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.SuggestedPath = "Movies/Wrong (1999)/Wrong (1999).mkv"
		j.Confidence = 80
		return nil
	}); err != nil {
		t.Fatalf("seed suggestion: %v", err)
	}

	updated, err := store.Reclassify(ctx, job.ID, "this is a documentary")
	if err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	if updated.Status != queue.StatusQueued || !updated.Priority {
		t.Fatalf("reclassified job = %+v", updated)
	}
	if updated.SuggestedPath != "" || updated.Confidence != 0 {
		t.Fatal("suggestion fields should reset")
	}
	if updated.CustomInstructions != "this is a documentary" {
		t.Fatalf("instructions = %q", updated.CustomInstructions)
	}
}

func TestReclassifyRejectsProcessing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	advance(t, store, job.ID, queue.StatusProcessing)

	if _, err := store.Reclassify(ctx, job.ID, ""); err == nil {
		t.Fatal("expected error for processing job")
	}
}

func TestRequestRemovalFlagsProcessingJob(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	idle := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/a.mkv"})
	removed, err := store.RequestRemoval(ctx, idle.ID)
	if err != nil {
		t.Fatalf("request removal: %v", err)
	}
	if !removed {
		t.Fatal("queued job should be removed immediately")
	}

	busy := mustCreate(t, store, queue.NewJob{SourcePath: "/downloads/b.mkv"})
	advance(t, store, busy.ID, queue.StatusProcessing)
	removed, err = store.RequestRemoval(ctx, busy.ID)
	if err != nil {
		t.Fatalf("request removal: %v", err)
	}
	if removed {
		t.Fatal("processing job must be flagged, not removed")
	}
	flagged, err := store.GetByID(ctx, busy.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !flagged.MarkedForDeletion {
		t.Fatal("expected marked_for_deletion flag")
	}
}
