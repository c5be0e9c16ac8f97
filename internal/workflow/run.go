package workflow

import (
	"context"
	"errors"
	"time"

	"curator/internal/logging"
	"curator/internal/queue"
)

// unit is one classification attempt: a lone job, a complete group with the
// primary first, or a solo job that bypasses group batching.
type unit struct {
	jobs []*queue.Job
	solo bool
}

func (u *unit) primary() *queue.Job {
	if u == nil || len(u.jobs) == 0 {
		return nil
	}
	return u.jobs[0]
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg := m.configs.Current()
		now := m.clock.Now()

		next, deferred, err := m.nextUnit(ctx, now)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to select next unit",
				logging.Error(err),
				logging.String(logging.FieldEventType, "unit_select_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.wait(ctx, errorRetryInterval)
			continue
		}

		if next == nil {
			next = m.checkStall(now, cfg.StallTimeout(), deferred)
		}
		if next == nil {
			if len(deferred) == 0 {
				m.setState(StateIdle)
			}
			m.wait(ctx, cfg.PollInterval())
			continue
		}

		if err := m.processUnit(ctx, cfg, next); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// nextUnit returns the next ready unit in FIFO order, with priority jobs
// ahead of everything. Grouped jobs whose siblings are not all queued and
// ready are deferred; those jobs come back in the second return value so the
// stall detector can account for them.
func (m *Manager) nextUnit(ctx context.Context, now time.Time) (*unit, []*queue.Job, error) {
	priority, err := m.store.PriorityQueued(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	if priority != nil {
		return &unit{jobs: []*queue.Job{priority}, solo: true}, nil, nil
	}

	queued, err := m.store.List(ctx, queue.StatusQueued)
	if err != nil {
		return nil, nil, err
	}

	var deferred []*queue.Job
	seenGroups := make(map[string]struct{})
	for _, job := range queued {
		if !job.ReadyAt(now) {
			continue
		}
		if !job.Grouped() {
			return &unit{jobs: []*queue.Job{job}}, deferred, nil
		}
		if _, seen := seenGroups[job.GroupID]; seen {
			continue
		}
		seenGroups[job.GroupID] = struct{}{}

		members, err := m.store.GroupMembers(ctx, job.GroupID)
		if err != nil {
			return nil, nil, err
		}
		if groupReady(members, now) {
			return &unit{jobs: primaryFirst(queuedMembers(members))}, deferred, nil
		}
		deferred = append(deferred, job)
	}
	return nil, deferred, nil
}

// groupReady reports whether every unsettled member is queued with its
// backoff elapsed. Members already classified (pending_completion,
// completed) or terminally failed count as settled: they no longer gate the
// group, so a sibling pulled ahead through the priority lane does not strand
// the rest behind the stall detector.
func groupReady(members []*queue.Job, now time.Time) bool {
	pending := 0
	for _, member := range members {
		switch member.Status {
		case queue.StatusPendingCompletion, queue.StatusCompleted, queue.StatusFailed:
			continue
		case queue.StatusQueued:
			if !member.ReadyAt(now) {
				return false
			}
			pending++
		default:
			return false
		}
	}
	return pending > 0
}

func queuedMembers(members []*queue.Job) []*queue.Job {
	kept := make([]*queue.Job, 0, len(members))
	for _, member := range members {
		if member.Status == queue.StatusQueued {
			kept = append(kept, member)
		}
	}
	return kept
}

func primaryFirst(members []*queue.Job) []*queue.Job {
	ordered := make([]*queue.Job, 0, len(members))
	for _, member := range members {
		if member.GroupPrimary {
			ordered = append(ordered, member)
		}
	}
	for _, member := range members {
		if !member.GroupPrimary {
			ordered = append(ordered, member)
		}
	}
	return ordered
}

// checkStall decides whether deferred ready work has been waiting past the
// stall timeout and, if so, picks a recovery unit. Deferred jobs are grouped
// jobs still waiting for siblings; jobs backing off a failed attempt never
// reach this point. Recovery classifies a single job alone, preferring group
// primaries, so a group blocked by a missed event or a vanished sibling
// still makes progress.
func (m *Manager) checkStall(now time.Time, stallTimeout time.Duration, deferred []*queue.Job) *unit {
	if len(deferred) == 0 {
		return nil
	}
	if now.Sub(m.lastProcessingStart()) <= stallTimeout {
		return nil
	}

	pick := deferred[0]
	for _, job := range deferred {
		if job.GroupPrimary {
			pick = job
			break
		}
	}

	m.setState(StateStalled)
	m.logger.Warn("worker stalled; forcing recovery pass",
		logging.String(logging.FieldEventType, "stall_recovery"),
		logging.String(logging.FieldJobID, pick.ID),
		logging.String(logging.FieldGroupID, pick.GroupID),
		logging.Int("deferred", len(deferred)),
		logging.Duration("since_last_start", now.Sub(m.lastProcessingStart())),
	)
	return &unit{jobs: []*queue.Job{pick}, solo: true}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-m.clock.After(d):
	}
}
