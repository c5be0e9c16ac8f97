package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"curator/internal/classifier"
	"curator/internal/config"
	"curator/internal/grouping"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/services"
)

func (m *Manager) processUnit(ctx context.Context, cfg *config.Config, u *unit) error {
	start := m.clock.Now()
	m.markStarted(start)

	primary := u.primary()
	logger := m.logger.With(
		logging.String(logging.FieldJobID, primary.ID),
		logging.String(logging.FieldGroupID, primary.GroupID),
	)
	logger.Info("unit started",
		logging.String(logging.FieldEventType, "unit_start"),
		logging.Int("members", len(u.jobs)),
		logging.Bool("solo", u.solo),
		logging.Int(logging.FieldAttempt, primary.AttemptCount+1),
	)

	jobs, err := m.transitionToProcessing(ctx, u.jobs)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to transition unit to processing", logging.Error(err))
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	resp, classifyErr := m.currentGateway().Classify(ctx, classifyRequest(jobs))

	jobs, err = m.settleDeletions(ctx, jobs)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to settle deletion flags", logging.Error(err))
		return err
	}
	if len(jobs) == 0 {
		logger.Info("unit discarded, all members deleted",
			logging.String(logging.FieldEventType, "unit_discarded"))
		return nil
	}

	if classifyErr != nil {
		if errors.Is(classifyErr, context.Canceled) {
			logger.Debug("unit interrupted by shutdown")
			return classifyErr
		}
		m.handleUnitFailure(ctx, cfg, logger, jobs, classifyErr)
		return classifyErr
	}

	if err := m.applyResults(ctx, logger, jobs, resp); err != nil {
		m.handleUnitFailure(ctx, cfg, logger, jobs, err)
		return err
	}

	logger.Info("unit classified",
		logging.String(logging.FieldEventType, "unit_complete"),
		logging.Int("members", len(jobs)),
		logging.Int64(logging.FieldDurationMS, m.clock.Now().Sub(start).Milliseconds()),
	)
	return nil
}

// transitionToProcessing marks every member processing. Members that vanished
// or were deleted underneath us are dropped from the unit instead of failing
// the whole attempt.
func (m *Manager) transitionToProcessing(ctx context.Context, jobs []*queue.Job) ([]*queue.Job, error) {
	kept := make([]*queue.Job, 0, len(jobs))
	for _, job := range jobs {
		updated, err := m.store.Update(ctx, job.ID, func(j *queue.Job) error {
			j.Status = queue.StatusProcessing
			j.ErrorMessage = ""
			return nil
		})
		if errors.Is(err, queue.ErrNotFound) {
			continue
		}
		if err != nil {
			return kept, fmt.Errorf("mark processing %s: %w", job.OriginalFilename, err)
		}
		kept = append(kept, updated)
		m.setLastJob(updated)
	}
	return kept, nil
}

func classifyRequest(jobs []*queue.Job) classifier.Request {
	entries := make([]classifier.Entry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, classifier.Entry{
			Path:               job.SourcePath,
			CustomInstructions: job.CustomInstructions,
			Capabilities:       capabilityFlags(job.SourcePath),
		})
	}
	return classifier.Request{Entries: entries}
}

func capabilityFlags(path string) []string {
	switch {
	case grouping.IsVideo(path):
		return []string{"video"}
	case grouping.IsSubtitle(path):
		return []string{"subtitle"}
	default:
		return nil
	}
}

// settleDeletions reloads each member after the gateway call and purges the
// ones flagged for deletion while the call was in flight. Their results are
// discarded.
func (m *Manager) settleDeletions(ctx context.Context, jobs []*queue.Job) ([]*queue.Job, error) {
	kept := make([]*queue.Job, 0, len(jobs))
	for _, job := range jobs {
		fresh, err := m.store.GetByID(ctx, job.ID)
		if errors.Is(err, queue.ErrNotFound) {
			continue
		}
		if err != nil {
			return kept, fmt.Errorf("reload %s: %w", job.OriginalFilename, err)
		}
		if fresh.MarkedForDeletion {
			if _, err := m.store.Remove(ctx, fresh.ID); err != nil {
				return kept, fmt.Errorf("purge %s: %w", fresh.OriginalFilename, err)
			}
			m.logger.Info("purged job flagged during processing",
				logging.String(logging.FieldJobID, fresh.ID),
				logging.String(logging.FieldPath, fresh.SourcePath),
				logging.String(logging.FieldEventType, "job_purged"),
			)
			continue
		}
		kept = append(kept, fresh)
	}
	return kept, nil
}

// applyResults writes suggestions back and moves members to
// pending_completion. For a group the primary's suggested directory is
// authoritative: sibling paths are rewritten to that directory with their own
// filename. When the two sides of a group classify separately (a sibling
// pulled ahead through the priority lane), the primary's directory still
// wins: a settled primary anchors the unit's destinations, and a primary
// classifying after a settled sibling drags that sibling's suggestion along.
func (m *Manager) applyResults(ctx context.Context, logger *slog.Logger, jobs []*queue.Job, resp classifier.Response) error {
	lead := jobs[0]
	leadResult, ok := resp.ResultFor(lead.SourcePath)
	if !ok {
		return services.Wrap(services.ErrPermanent, "workflow", "classify",
			fmt.Sprintf("no result for %s", lead.OriginalFilename), nil)
	}
	primaryDir := filepath.Dir(leadResult.SuggestedPath)

	anchored := false
	if lead.Grouped() && !lead.GroupPrimary {
		if dir, ok, err := m.settledPrimaryDir(ctx, lead.GroupID); err != nil {
			return err
		} else if ok {
			primaryDir = dir
			anchored = true
		}
	}

	for _, job := range jobs {
		suggested := leadResult.SuggestedPath
		confidence := leadResult.Confidence
		if job.ID != lead.ID || anchored {
			suggested = filepath.Join(primaryDir, job.OriginalFilename)
			if own, ok := resp.ResultFor(job.SourcePath); ok {
				confidence = own.Confidence
			}
		}

		updated, err := m.store.Update(ctx, job.ID, func(j *queue.Job) error {
			j.Status = queue.StatusPendingCompletion
			j.SuggestedPath = suggested
			j.Confidence = confidence
			j.Priority = false
			j.ErrorMessage = ""
			j.NextAttemptAt = nil
			return nil
		})
		if errors.Is(err, queue.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("apply result %s: %w", job.OriginalFilename, err)
		}
		m.setLastJob(updated)
		logger.Info("suggestion recorded",
			logging.String(logging.FieldJobID, updated.ID),
			logging.String(logging.FieldPath, updated.SuggestedPath),
			logging.Int("confidence", updated.Confidence),
		)
	}

	if lead.GroupPrimary {
		return m.realignSettledSiblings(ctx, logger, lead.GroupID, jobs, primaryDir)
	}
	return nil
}

// settledPrimaryDir returns the suggested directory of the group's primary
// when the primary has already been classified but not yet organized.
func (m *Manager) settledPrimaryDir(ctx context.Context, groupID string) (string, bool, error) {
	members, err := m.store.GroupMembers(ctx, groupID)
	if err != nil {
		return "", false, fmt.Errorf("load group %s: %w", groupID, err)
	}
	for _, member := range members {
		if member.GroupPrimary && member.Status == queue.StatusPendingCompletion && member.SuggestedPath != "" {
			return filepath.Dir(member.SuggestedPath), true, nil
		}
	}
	return "", false, nil
}

// realignSettledSiblings rewrites group members that classified ahead of the
// primary so their suggestions land in the primary's directory.
func (m *Manager) realignSettledSiblings(ctx context.Context, logger *slog.Logger, groupID string, unit []*queue.Job, primaryDir string) error {
	members, err := m.store.GroupMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("load group %s: %w", groupID, err)
	}
	inUnit := make(map[string]bool, len(unit))
	for _, job := range unit {
		inUnit[job.ID] = true
	}
	for _, member := range members {
		if inUnit[member.ID] || member.Status != queue.StatusPendingCompletion {
			continue
		}
		suggested := filepath.Join(primaryDir, member.OriginalFilename)
		if member.SuggestedPath == suggested {
			continue
		}
		updated, err := m.store.Update(ctx, member.ID, func(j *queue.Job) error {
			j.SuggestedPath = suggested
			return nil
		})
		if errors.Is(err, queue.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("realign %s: %w", member.OriginalFilename, err)
		}
		logger.Info("sibling suggestion realigned",
			logging.String(logging.FieldJobID, updated.ID),
			logging.String(logging.FieldPath, updated.SuggestedPath),
		)
	}
	return nil
}
