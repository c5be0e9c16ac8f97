package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/services"
)

// handleUnitFailure applies one failed attempt to every member of the unit.
// Transient failures re-queue with exponential backoff until max_attempts;
// everything else fails the jobs permanently. The worker loop itself never
// stops on a unit failure.
func (m *Manager) handleUnitFailure(ctx context.Context, cfg *config.Config, logger *slog.Logger, jobs []*queue.Job, unitErr error) {
	m.setLastError(unitErr)

	message := failureMessage(unitErr)
	retryable := services.IsRetryable(unitErr)
	now := m.clock.Now()

	for _, job := range jobs {
		updated, err := m.store.Update(ctx, job.ID, func(j *queue.Job) error {
			j.Priority = false
			j.AttemptCount++
			if retryable && j.AttemptCount < cfg.Worker.MaxAttempts {
				next := now.Add(backoffDelay(cfg.BackoffBase(), j.AttemptCount))
				j.Status = queue.StatusQueued
				j.NextAttemptAt = &next
				j.ErrorMessage = message
				return nil
			}
			j.SetFailed(message)
			return nil
		})
		if errors.Is(err, queue.ErrNotFound) {
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("shutdown interrupted failure bookkeeping")
			} else {
				logger.Error("failed to persist unit failure", logging.Error(err))
			}
			continue
		}
		m.setLastJob(updated)

		if updated.Status == queue.StatusFailed {
			logger.Error("job failed permanently",
				logging.Error(unitErr),
				logging.String(logging.FieldJobID, updated.ID),
				logging.String(logging.FieldEventType, "unit_failed"),
				logging.Int(logging.FieldAttempt, updated.AttemptCount),
				logging.String(logging.FieldErrorHint, failureHint(unitErr)),
			)
		} else {
			logger.Warn("attempt failed, retry scheduled",
				logging.Error(unitErr),
				logging.String(logging.FieldJobID, updated.ID),
				logging.String(logging.FieldEventType, "unit_retry"),
				logging.Int(logging.FieldAttempt, updated.AttemptCount),
				logging.Time("next_attempt_at", *updated.NextAttemptAt),
			)
		}
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "classification failed without error detail"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "classification failed"
	}
	return message
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "check classifier api_key and base_url"
	case errors.Is(err, services.ErrPermanent):
		return "inspect the model response; retry manually with 'curator classify'"
	default:
		return "check network access to the classification gateway"
	}
}

// backoffDelay returns base * 2^attempt, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= time.Hour {
			return time.Hour
		}
	}
	return delay
}
