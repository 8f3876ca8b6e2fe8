package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"watchsync/internal/api"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Control the RSS-driven sync workflow on the daemon",
	}

	cmd.AddCommand(workflowAction(ctx, "status", "Show workflow status", (*api.Client).Workflow))
	cmd.AddCommand(workflowAction(ctx, "start", "Start the workflow", (*api.Client).StartWorkflow))
	cmd.AddCommand(workflowAction(ctx, "stop", "Stop the workflow", (*api.Client).StopWorkflow))
	return cmd
}

func workflowAction(
	ctx *commandContext,
	use, short string,
	call func(*api.Client, context.Context) (api.WorkflowStatus, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := call(client, cmd.Context())
			if err != nil {
				return fmt.Errorf("workflow %s: %w", use, err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			writeSections(out, isTerminal(out), workflowSection(status))
			return nil
		},
	}
}
