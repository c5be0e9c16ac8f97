package organizer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/queue"
)

// Resolver matches files observed in the completed root against
// pending_completion jobs and hands matches to the mover. It also sweeps out
// jobs whose source file vanished from both roots past the missing-file
// grace period.
type Resolver struct {
	store   *queue.Store
	mover   *Mover
	configs *config.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// ResolverOption configures optional Resolver behavior.
type ResolverOption func(*Resolver)

// WithNow overrides the wall clock (used in tests).
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a completion resolver.
func NewResolver(configs *config.Manager, store *queue.Store, mover *Mover, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		store:   store,
		mover:   mover,
		configs: configs,
		logger:  logging.NewComponentLogger(logger, "resolver"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleFile resolves one file observed in the completed root. Untracked
// files are ignored. A matched job moves, and so do any group siblings that
// are also pending with their files alongside it.
func (r *Resolver) HandleFile(ctx context.Context, path string) error {
	job, err := r.store.FindByFilename(ctx, filepath.Base(path), queue.StatusPendingCompletion)
	if err != nil {
		return err
	}
	if job == nil {
		r.logger.Debug("ignoring untracked file",
			logging.String(logging.FieldPath, path))
		return nil
	}

	cfg := r.configs.Current()
	if err := r.mover.Move(ctx, cfg, job, path); err != nil {
		return err
	}

	if !job.Grouped() {
		return nil
	}
	members, err := r.store.GroupMembers(ctx, job.GroupID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member.ID == job.ID || member.Status != queue.StatusPendingCompletion {
			continue
		}
		candidate := filepath.Join(filepath.Dir(path), member.OriginalFilename)
		if _, statErr := os.Stat(candidate); statErr != nil {
			continue
		}
		if err := r.mover.Move(ctx, cfg, member, candidate); err != nil {
			r.logger.Warn("group sibling move failed",
				logging.Error(err),
				logging.String(logging.FieldJobID, member.ID),
				logging.String(logging.FieldGroupID, member.GroupID),
			)
		}
	}
	return nil
}

// Sweep purges pending jobs whose file is absent from both the downloading
// and completed roots for longer than the grace period. The first absent
// observation stamps missing_since; a reappearing file clears it.
func (r *Resolver) Sweep(ctx context.Context) error {
	cfg := r.configs.Current()
	now := r.now()

	pending, err := r.store.List(ctx, queue.StatusPendingCompletion)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if r.sourcePresent(cfg, job) {
			if job.MissingSince == nil {
				continue
			}
			if _, err := r.store.Update(ctx, job.ID, func(j *queue.Job) error {
				j.MissingSince = nil
				return nil
			}); err != nil {
				r.logger.Warn("failed to clear missing marker", logging.Error(err),
					logging.String(logging.FieldJobID, job.ID))
			}
			continue
		}

		if job.MissingSince == nil {
			if _, err := r.store.Update(ctx, job.ID, func(j *queue.Job) error {
				j.MissingSince = &now
				return nil
			}); err != nil {
				r.logger.Warn("failed to stamp missing marker", logging.Error(err),
					logging.String(logging.FieldJobID, job.ID))
			}
			continue
		}

		if now.Sub(*job.MissingSince) <= cfg.MissingFileGrace() {
			continue
		}
		if _, err := r.store.Remove(ctx, job.ID); err != nil {
			r.logger.Warn("failed to purge vanished job", logging.Error(err),
				logging.String(logging.FieldJobID, job.ID))
			continue
		}
		r.logger.Info("purged job with vanished source",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldPath, job.SourcePath),
			logging.String(logging.FieldEventType, "job_purged"),
		)
	}
	return nil
}

func (r *Resolver) sourcePresent(cfg *config.Config, job *queue.Job) bool {
	if _, err := os.Stat(job.SourcePath); err == nil {
		return true
	}
	completed := filepath.Join(cfg.Paths.CompletedDir, job.OriginalFilename)
	_, err := os.Stat(completed)
	return err == nil
}
