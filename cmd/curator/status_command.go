package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/ipc"
	"curator/internal/queue"
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				status := resp.Status

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintf(stdout, "  Running:   %s\n", yesNo(status.Running))
				fmt.Fprintf(stdout, "  PID:       %d\n", status.PID)
				fmt.Fprintf(stdout, "  Socket:    %s\n", status.SocketPath)
				fmt.Fprintf(stdout, "  Queue DB:  %s\n", status.QueueDBPath)
				if status.ConfigPath != "" {
					fmt.Fprintf(stdout, "  Config:    %s\n", status.ConfigPath)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Worker", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintf(stdout, "  Running:   %s\n", yesNo(status.Worker.Running))
				fmt.Fprintf(stdout, "  State:     %s\n", status.Worker.State)
				if status.Worker.LastError != "" {
					fmt.Fprintf(stdout, "  Last err:  %s\n", status.Worker.LastError)
				}
				if status.Worker.LastJob != nil {
					fmt.Fprintf(stdout, "  Last job:  %s (%s)\n",
						status.Worker.LastJob.OriginalFilename, status.Worker.LastJob.Status)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatsRows(status.Worker.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// buildQueueStatsRows orders counts by lifecycle position, skipping zeroes.
func buildQueueStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	order := make(map[string]int, len(queue.AllStatuses()))
	for i, status := range queue.AllStatuses() {
		order[string(status)] = i
	}
	names := make([]string, 0, len(stats))
	for name, count := range stats {
		if count > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(a, b int) bool {
		ia, oka := order[names[a]]
		ib, okb := order[names[b]]
		if oka && okb {
			return ia < ib
		}
		if oka != okb {
			return oka
		}
		return names[a] < names[b]
	})
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	return rows
}
