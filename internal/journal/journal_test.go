package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/journal"
	"curator/internal/queue"
)

func newJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestObserverRecordsTransitions(t *testing.T) {
	j := newJournal(t)
	observer := j.Observer()

	observer(queue.TransitionRecord{
		JobID:     "job-1",
		From:      queue.StatusQueued,
		To:        queue.StatusProcessing,
		Timestamp: time.Now().UTC(),
	})
	observer(queue.TransitionRecord{
		JobID:     "job-1",
		From:      queue.StatusProcessing,
		To:        queue.StatusFailed,
		Timestamp: time.Now().UTC(),
		Detail:    "classification timed out",
	})

	got, err := j.RecentTransitions(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent transitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("transitions = %d, want 2", len(got))
	}
	// Most recent first.
	if got[0].To != queue.StatusFailed || got[0].Detail != "classification timed out" {
		t.Fatalf("unexpected first transition %+v", got[0])
	}
	if got[1].From != queue.StatusQueued || got[1].To != queue.StatusProcessing {
		t.Fatalf("unexpected second transition %+v", got[1])
	}
}

func TestRecordMovement(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()

	j.RecordMovement(ctx, journal.Movement{
		JobID:       "job-2",
		Source:      "/completed/show.mkv",
		Destination: "/library/Shows/show.mkv",
		Status:      journal.MovementMoved,
	})
	j.RecordMovement(ctx, journal.Movement{
		JobID:       "job-3",
		Source:      "/completed/dup.mkv",
		Destination: "/library/Movies/dup.mkv",
		Status:      journal.MovementFailed,
		Error:       "destination exists",
	})

	got, err := j.RecentMovements(ctx, 10)
	if err != nil {
		t.Fatalf("recent movements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("movements = %d, want 2", len(got))
	}
	if got[0].Status != journal.MovementFailed || got[0].Error != "destination exists" {
		t.Fatalf("unexpected first movement %+v", got[0])
	}
	if got[1].Destination != "/library/Shows/show.mkv" {
		t.Fatalf("unexpected second movement %+v", got[1])
	}
}

func TestRecentLimitsResults(t *testing.T) {
	j := newJournal(t)
	observer := j.Observer()
	for i := 0; i < 5; i++ {
		observer(queue.TransitionRecord{
			JobID: "job-n",
			From:  queue.StatusQueued,
			To:    queue.StatusProcessing,
		})
	}
	got, err := j.RecentTransitions(context.Background(), 3)
	if err != nil {
		t.Fatalf("recent transitions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("transitions = %d, want 3", len(got))
	}
}
