package daemon

import (
	"context"

	"curator/internal/api"
	"curator/internal/queue"
)

// The methods below back the IPC surface. They translate store and journal
// results into api shapes so the socket layer stays a thin codec.

func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]api.Job, error) {
	jobs, err := d.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func (d *Daemon) GetJob(ctx context.Context, id string) (api.Job, error) {
	job, err := d.store.GetByID(ctx, id)
	if err != nil {
		return api.Job{}, err
	}
	return api.FromJob(job), nil
}

func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

func (d *Daemon) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// Reclassify pushes a job back through classification on the priority lane.
func (d *Daemon) Reclassify(ctx context.Context, id, instructions string) (api.Job, error) {
	job, err := d.store.Reclassify(ctx, id, instructions)
	if err != nil {
		return api.Job{}, err
	}
	return api.FromJob(job), nil
}

// RemoveJob removes a job, or flags it for removal when an attempt is in
// flight. The returned flag reports whether the job is already gone.
func (d *Daemon) RemoveJob(ctx context.Context, id string) (bool, error) {
	return d.store.RequestRemoval(ctx, id)
}

func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

func (d *Daemon) RecentTransitions(ctx context.Context, limit int) ([]api.Transition, error) {
	if d.journal == nil {
		return nil, nil
	}
	records, err := d.journal.RecentTransitions(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]api.Transition, 0, len(records))
	for _, rec := range records {
		out = append(out, api.FromTransition(rec))
	}
	return out, nil
}

func (d *Daemon) RecentMovements(ctx context.Context, limit int) ([]api.Movement, error) {
	if d.journal == nil {
		return nil, nil
	}
	records, err := d.journal.RecentMovements(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]api.Movement, 0, len(records))
	for _, rec := range records {
		out = append(out, api.FromMovement(rec))
	}
	return out, nil
}

func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.currentNotifier().TestNotification(ctx)
}

// ReloadConfig re-reads the configuration file and fans the new snapshot out
// to subscribers.
func (d *Daemon) ReloadConfig() error {
	_, err := d.configs.Reload()
	return err
}
