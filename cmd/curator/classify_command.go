package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/ipc"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var instructions string

	cmd := &cobra.Command{
		Use:   "classify <job-id>",
		Short: "Re-classify a job on the priority lane",
		Long: "Push a job back through classification ahead of the FIFO queue. " +
			"Works on queued, failed, and pending-completion jobs; optional " +
			"instructions are forwarded to the classification service.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reclassify(args[0], instructions)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Job %s re-queued with priority\n", resp.Job.ID)
				if resp.Job.CustomInstructions != "" {
					fmt.Fprintf(stdout, "Instructions: %s\n", resp.Job.CustomInstructions)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "Extra guidance for the classification service")
	return cmd
}
