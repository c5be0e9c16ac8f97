package daemon

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"

	"curator/internal/grouping"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/watchfs"
)

func (d *Daemon) pumpDownloading(ctx context.Context, w *watchfs.Watcher, debounce *watchfs.Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if ev.Op == watchfs.OpRemove {
				debounce.Forget(ev.Path)
				d.dropVanishedJob(ctx, ev.Path)
				continue
			}
			debounce.Observe(ev.Path)
		}
	}
}

func (d *Daemon) pumpCompleted(ctx context.Context, w *watchfs.Watcher, debounce *watchfs.Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if ev.Op == watchfs.OpRemove {
				debounce.Forget(ev.Path)
				continue
			}
			debounce.Observe(ev.Path)
		}
	}
}

func (d *Daemon) consumeDownloading(ctx context.Context, debounce *watchfs.Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-debounce.Ready():
			if err := d.ingestBatch(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("batch ingest failed", logging.Error(err))
			}
		}
	}
}

func (d *Daemon) consumeCompleted(ctx context.Context, debounce *watchfs.Debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-debounce.Ready():
			for _, path := range batch {
				if err := d.resolver.HandleFile(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
					d.logger.Warn("completion handling failed",
						logging.String(logging.FieldPath, path),
						logging.Error(err))
				}
			}
		}
	}
}

// dropVanishedJob purges a job whose source file disappeared before
// classification started. Later stages are covered by the resolver sweep.
func (d *Daemon) dropVanishedJob(ctx context.Context, path string) {
	job, err := d.store.FindBySourcePath(ctx, path)
	if err != nil || job == nil {
		return
	}
	if job.Status != queue.StatusQueued {
		return
	}
	if removed, err := d.store.Remove(ctx, job.ID); err == nil && removed {
		d.logger.Info("job purged",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "source_removed"))
	}
}

type groupKey struct {
	dir  string
	stem string
}

// ingestBatch turns a debounced batch into jobs. The batch is widened with
// queued jobs sharing a directory and stem so a subtitle that settles a batch
// later than its video still lands in the same group.
func (d *Daemon) ingestBatch(ctx context.Context, batch []string) error {
	if len(batch) == 0 {
		return nil
	}

	queued, err := d.store.List(ctx, queue.StatusQueued)
	if err != nil {
		return err
	}
	queuedByPath := make(map[string]*queue.Job, len(queued))
	queuedByKey := make(map[groupKey][]*queue.Job)
	for _, job := range queued {
		key := groupKey{dir: filepath.Dir(job.SourcePath), stem: grouping.Stem(job.SourcePath)}
		queuedByPath[job.SourcePath] = job
		queuedByKey[key] = append(queuedByKey[key], job)
	}

	seen := make(map[string]bool)
	candidates := make([]string, 0, len(batch))
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			candidates = append(candidates, path)
		}
	}
	for _, path := range batch {
		add(path)
		key := groupKey{dir: filepath.Dir(path), stem: grouping.Stem(path)}
		for _, sibling := range queuedByKey[key] {
			add(sibling.SourcePath)
		}
	}

	for _, group := range grouping.Resolve(candidates) {
		if err := d.ingestGroup(ctx, group, queuedByPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) ingestGroup(ctx context.Context, group grouping.Group, queuedByPath map[string]*queue.Job) error {
	if !group.Grouped() {
		return d.createIfAbsent(ctx, group.Primary, queue.NewJob{SourcePath: group.Primary}, queuedByPath)
	}

	groupID := ""
	for _, member := range group.Members {
		if job := queuedByPath[member]; job != nil && job.GroupID != "" {
			groupID = job.GroupID
			break
		}
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}

	for _, member := range group.Members {
		primary := member == group.Primary
		if job := queuedByPath[member]; job != nil {
			if job.GroupID == groupID && job.GroupPrimary == primary {
				continue
			}
			if _, err := d.store.Update(ctx, job.ID, func(j *queue.Job) error {
				j.GroupID = groupID
				j.GroupPrimary = primary
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		spec := queue.NewJob{SourcePath: member, GroupID: groupID, GroupPrimary: primary}
		if err := d.createIfAbsent(ctx, member, spec, queuedByPath); err != nil {
			return err
		}
	}
	return nil
}

// createIfAbsent creates a job unless one already tracks the path in any
// status, which keeps rescans and duplicate events idempotent.
func (d *Daemon) createIfAbsent(ctx context.Context, path string, spec queue.NewJob, queuedByPath map[string]*queue.Job) error {
	if queuedByPath[path] != nil {
		return nil
	}
	existing, err := d.store.FindBySourcePath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	job, err := d.store.Create(ctx, spec)
	if err != nil {
		return err
	}
	d.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldGroupID, job.GroupID))
	return nil
}
