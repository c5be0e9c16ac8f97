package queue

import (
	"context"
	"errors"
	"fmt"
)

// RetryFailed moves failed jobs back to queued with a fresh attempt budget.
// With no ids, every failed job is retried. Unknown ids and jobs that are not
// failed are skipped.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	var targets []*Job
	if len(ids) == 0 {
		failed, err := s.List(ctx, StatusFailed)
		if err != nil {
			return 0, err
		}
		targets = failed
	} else {
		for _, id := range ids {
			job, err := s.GetByID(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, err
			}
			targets = append(targets, job)
		}
	}

	var updated int64
	for _, job := range targets {
		if job.Status != StatusFailed {
			continue
		}
		if _, err := s.Update(ctx, job.ID, func(j *Job) error {
			j.Status = StatusQueued
			j.ErrorMessage = ""
			j.AttemptCount = 0
			j.NextAttemptAt = nil
			return nil
		}); err != nil {
			return updated, fmt.Errorf("retry %s: %w", job.OriginalFilename, err)
		}
		updated++
	}
	return updated, nil
}

// Reclassify flags a job for priority re-classification, resetting its
// suggested fields and attempt budget. Pending and failed jobs re-enter the
// queue; a processing job cannot be re-classified until its in-flight attempt
// resolves.
func (s *Store) Reclassify(ctx context.Context, id, instructions string) (*Job, error) {
	return s.Update(ctx, id, func(j *Job) error {
		switch j.Status {
		case StatusProcessing:
			return errors.New("job is processing; re-classify once the attempt resolves")
		case StatusCompleted:
			return errors.New("job already completed")
		}
		j.Status = StatusQueued
		j.Priority = true
		j.CustomInstructions = instructions
		j.SuggestedPath = ""
		j.Confidence = 0
		j.ErrorMessage = ""
		j.AttemptCount = 0
		j.NextAttemptAt = nil
		return nil
	})
}

// RequestRemoval deletes a job immediately, or flags a processing job so the
// worker purges it after the in-flight classification returns. The removed
// result reports whether the job is already gone.
func (s *Store) RequestRemoval(ctx context.Context, id string) (removed bool, err error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status == StatusProcessing {
		if _, err := s.Update(ctx, id, func(j *Job) error {
			j.MarkedForDeletion = true
			return nil
		}); err != nil {
			return false, err
		}
		return false, nil
	}
	return s.Remove(ctx, id)
}
