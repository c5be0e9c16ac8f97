package organizer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/config"
	"curator/internal/journal"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/services"
)

// Mover executes library placements for jobs handed over by the resolver.
type Mover struct {
	store   *queue.Store
	journal *journal.Journal
	logger  *slog.Logger
}

// NewMover constructs a mover. The journal may be nil; movement records are
// advisory.
func NewMover(store *queue.Store, jrnl *journal.Journal, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Mover{
		store:   store,
		journal: jrnl,
		logger:  logging.NewComponentLogger(logger, "mover"),
	}
}

// Move places source into the library at the job's suggested path and marks
// the job completed. A destination conflict outside the catch-all folder
// returns an error wrapping services.ErrConflict and leaves the job
// pending_completion.
func (m *Mover) Move(ctx context.Context, cfg *config.Config, job *queue.Job, source string) error {
	logger := m.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, source),
	)

	dest, err := m.resolveDestination(cfg, job)
	if err != nil {
		m.recordMovement(ctx, job.ID, source, "", journal.MovementFailed, err)
		m.failJob(ctx, logger, job.ID, err)
		return err
	}

	if _, statErr := os.Stat(dest); statErr == nil {
		if !m.overwriteAllowed(cfg, dest) {
			conflict := services.Wrap(services.ErrConflict, "mover", "move",
				fmt.Sprintf("destination already exists: %s", dest), nil)
			m.recordMovement(ctx, job.ID, source, dest, journal.MovementFailed, conflict)
			m.noteConflict(ctx, logger, job.ID, conflict)
			return conflict
		}
		if err := os.Remove(dest); err != nil {
			wrapped := services.Wrap(services.ErrTransient, "mover", "overwrite",
				"failed to remove existing destination", err)
			m.recordMovement(ctx, job.ID, source, dest, journal.MovementFailed, wrapped)
			return wrapped
		}
		logger.Info("overwrote existing destination",
			logging.String("destination", dest),
			logging.String(logging.FieldEventType, "move_overwrite"),
		)
	}

	if err := moveFile(source, dest); err != nil {
		wrapped := services.Wrap(services.ErrTransient, "mover", "move",
			fmt.Sprintf("move into library failed for %s", job.OriginalFilename), err)
		m.recordMovement(ctx, job.ID, source, dest, journal.MovementFailed, wrapped)
		return wrapped
	}

	pruneEmptyDirs(filepath.Dir(source), cfg.Paths.CompletedDir)
	m.recordMovement(ctx, job.ID, source, dest, journal.MovementMoved, nil)

	if _, err := m.store.Update(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusCompleted
		j.ErrorMessage = ""
		j.MissingSince = nil
		return nil
	}); err != nil {
		return fmt.Errorf("mark completed %s: %w", job.OriginalFilename, err)
	}

	logger.Info("moved into library",
		logging.String("destination", dest),
		logging.String(logging.FieldEventType, "move_complete"),
	)
	return nil
}

// resolveDestination joins the suggested path onto the library root and
// rejects suggestions that escape it.
func (m *Mover) resolveDestination(cfg *config.Config, job *queue.Job) (string, error) {
	suggested := strings.Trim(filepath.ToSlash(job.SuggestedPath), "/")
	if suggested == "" {
		return "", services.Wrap(services.ErrValidation, "mover", "resolve destination",
			fmt.Sprintf("job %s has no suggested path", job.ID), nil)
	}
	dest := filepath.Join(cfg.Paths.LibraryDir, filepath.FromSlash(suggested))
	rel, err := filepath.Rel(cfg.Paths.LibraryDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrValidation, "mover", "resolve destination",
			fmt.Sprintf("suggested path escapes the library root: %s", job.SuggestedPath), nil)
	}
	return dest, nil
}

// overwriteAllowed reports whether an existing destination may be replaced.
// Collisions inside the catch-all folder are last-write-wins; elsewhere only
// the explicit overwrite_existing setting permits replacement.
func (m *Mover) overwriteAllowed(cfg *config.Config, dest string) bool {
	if cfg.Library.OverwriteExisting {
		return true
	}
	unsorted := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.UnsortedDir)
	rel, err := filepath.Rel(unsorted, dest)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (m *Mover) recordMovement(ctx context.Context, jobID, source, dest, status string, moveErr error) {
	if m.journal == nil {
		return
	}
	movement := journal.Movement{JobID: jobID, Source: source, Destination: dest, Status: status}
	if moveErr != nil {
		movement.Error = moveErr.Error()
	}
	m.journal.RecordMovement(ctx, movement)
}

func (m *Mover) failJob(ctx context.Context, logger *slog.Logger, id string, cause error) {
	if _, err := m.store.Update(ctx, id, func(j *queue.Job) error {
		j.SetFailed(cause.Error())
		return nil
	}); err != nil {
		logger.Error("failed to persist move failure", logging.Error(err))
	}
}

// noteConflict surfaces the conflict on the job without changing its status.
func (m *Mover) noteConflict(ctx context.Context, logger *slog.Logger, id string, conflict error) {
	if _, err := m.store.Update(ctx, id, func(j *queue.Job) error {
		j.ErrorMessage = conflict.Error()
		return nil
	}); err != nil {
		logger.Error("failed to record conflict", logging.Error(err))
	}
	logger.Warn("destination conflict, waiting for operator",
		logging.Error(conflict),
		logging.String(logging.FieldEventType, "move_conflict"),
		logging.String(logging.FieldErrorHint, "remove the existing file or re-classify the job"),
	)
}

// moveFile renames source to dest, falling back to a verified copy plus
// remove when the rename fails (cross-device moves).
func moveFile(source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	if err := os.Rename(source, dest); err == nil {
		return nil
	} else if errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := copyFile(source, dest); err != nil {
		return err
	}
	return os.Remove(source)
}

// copyFile copies source to dest, verifying size and content hash.
func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// pruneEmptyDirs removes empty directories from dir up to, but excluding,
// root. Stops at the first non-empty directory.
func pruneEmptyDirs(dir, root string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			return
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
