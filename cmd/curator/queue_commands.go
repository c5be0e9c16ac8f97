package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"curator/internal/api"
	"curator/internal/ipc"
	"curator/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var jobs []api.Job
				if client != nil {
					resp, err := client.QueueList(listStatuses...)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					statuses := make([]queue.Status, 0, len(listStatuses))
					for _, raw := range listStatuses {
						parsed, ok := queue.ParseStatus(raw)
						if !ok {
							return fmt.Errorf("unknown status %q", raw)
						}
						statuses = append(statuses, parsed)
					}
					loaded, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = api.FromJobs(loaded)
				}

				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Suggested Path", "Attempts"},
					buildQueueListRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func buildQueueListRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		id := job.ID
		if len(id) > 8 {
			id = id[:8]
		}
		name := job.OriginalFilename
		if job.GroupID != "" && job.GroupPrimary {
			name += " *"
		}
		rows = append(rows, []string{
			id,
			name,
			job.Status,
			job.SuggestedPath,
			fmt.Sprintf("%d", job.AttemptCount),
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var job api.Job
				if client != nil {
					resp, err := client.QueueDescribe(args[0])
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					loaded, err := store.GetByID(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					job = api.FromJob(loaded)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "ID:            %s\n", job.ID)
				fmt.Fprintf(stdout, "File:          %s\n", job.OriginalFilename)
				fmt.Fprintf(stdout, "Source:        %s\n", job.SourcePath)
				fmt.Fprintf(stdout, "Status:        %s\n", job.Status)
				if job.SuggestedPath != "" {
					fmt.Fprintf(stdout, "Suggested:     %s (confidence %d)\n", job.SuggestedPath, job.Confidence)
				}
				if job.GroupID != "" {
					role := "member"
					if job.GroupPrimary {
						role = "primary"
					}
					fmt.Fprintf(stdout, "Group:         %s (%s)\n", job.GroupID, role)
				}
				fmt.Fprintf(stdout, "Priority:      %s\n", yesNo(job.Priority))
				fmt.Fprintf(stdout, "Attempts:      %d\n", job.AttemptCount)
				if job.NextAttemptAt != "" {
					fmt.Fprintf(stdout, "Next attempt:  %s\n", job.NextAttemptAt)
				}
				if job.CustomInstructions != "" {
					fmt.Fprintf(stdout, "Instructions:  %s\n", job.CustomInstructions)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:         %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(stdout, "Created:       %s\n", job.CreatedAt)
				fmt.Fprintf(stdout, "Updated:       %s\n", job.UpdatedAt)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs in bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("choose one of --completed or --failed")
			}
			scope := "all"
			if clearCompleted {
				scope = "completed"
			}
			if clearFailed {
				scope = "failed"
			}
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var (
					removed int64
					err     error
				)
				if client != nil {
					var resp *ipc.QueueClearResponse
					resp, err = client.QueueClear(scope)
					if resp != nil {
						removed = resp.Removed
					}
				} else {
					switch scope {
					case "completed":
						removed, err = store.ClearCompleted(cmd.Context())
					case "failed":
						removed, err = store.ClearFailed(cmd.Context())
					default:
						removed, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Only remove completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Only remove failed jobs")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id ...]",
		Short: "Re-queue failed jobs (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var (
					retried int64
					err     error
				)
				if client != nil {
					var resp *ipc.QueueRetryResponse
					resp, err = client.QueueRetry(args...)
					if resp != nil {
						retried = resp.Retried
					}
				} else {
					retried, err = store.RetryFailed(cmd.Context(), args...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %d job(s)\n", retried)
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Re-queue jobs stuck in processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var (
					reset int64
					err   error
				)
				if client != nil {
					var resp *ipc.QueueResetResponse
					resp, err = client.QueueReset()
					if resp != nil {
						reset = resp.Reset
					}
				} else {
					reset, err = store.ResetStuckProcessing(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d job(s)\n", reset)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove one job from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				stdout := cmd.OutOrStdout()
				if client != nil {
					resp, err := client.QueueRemove(args[0])
					if err != nil {
						return err
					}
					if resp.Deferred {
						fmt.Fprintln(stdout, "Job is processing; it will be removed when the current attempt resolves")
						return nil
					}
					fmt.Fprintln(stdout, "Job removed")
					return nil
				}
				removed, err := store.RequestRemoval(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(stdout, "Job is processing; it will be removed when the current attempt resolves")
					return nil
				}
				fmt.Fprintln(stdout, "Job removed")
				return nil
			})
		},
	}
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transitions and move attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()

				if len(resp.Transitions) == 0 && len(resp.Movements) == 0 {
					fmt.Fprintln(stdout, "No history recorded")
					return nil
				}

				if len(resp.Transitions) > 0 {
					rows := make([][]string, 0, len(resp.Transitions))
					for _, t := range resp.Transitions {
						id := t.JobID
						if len(id) > 8 {
							id = id[:8]
						}
						rows = append(rows, []string{id, t.From, t.To, t.Detail, t.At})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Job", "From", "To", "Detail", "At"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}))
				}

				if len(resp.Movements) > 0 {
					rows := make([][]string, 0, len(resp.Movements))
					for _, m := range resp.Movements {
						id := m.JobID
						if len(id) > 8 {
							id = id[:8]
						}
						rows = append(rows, []string{id, filepath.Base(m.Source), m.Destination, m.Status, m.At})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Job", "File", "Destination", "Status", "At"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries per table")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var (
					summary api.QueueHealth
					db      api.DatabaseHealth
				)
				if client != nil {
					resp, err := client.Health()
					if err != nil {
						return err
					}
					summary = resp.Queue
					db = resp.Database
				} else {
					loaded, err := store.Health(cmd.Context())
					if err != nil {
						return err
					}
					checked, err := store.CheckHealth(cmd.Context())
					if err != nil {
						return err
					}
					summary = api.FromHealth(loaded)
					db = api.FromDatabaseHealth(checked)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Total:              %d\n", summary.Total)
				fmt.Fprintf(stdout, "Queued:             %d\n", summary.Queued)
				fmt.Fprintf(stdout, "Processing:         %d\n", summary.Processing)
				fmt.Fprintf(stdout, "Pending completion: %d\n", summary.PendingCompletion)
				fmt.Fprintf(stdout, "Completed:          %d\n", summary.Completed)
				fmt.Fprintf(stdout, "Failed:             %d\n", summary.Failed)
				fmt.Fprintln(stdout)
				fmt.Fprintf(stdout, "Database:           %s\n", db.DBPath)
				fmt.Fprintf(stdout, "Readable:           %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(stdout, "Integrity:          %s\n", yesNo(db.IntegrityCheck))
				if db.Error != "" {
					fmt.Fprintf(stdout, "Error:              %s\n", db.Error)
				}
				return nil
			})
		},
	}
}
