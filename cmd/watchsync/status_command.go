package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"watchsync/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			if errors.Is(err, api.ErrDaemonUnavailable) {
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.DaemonStatus{Workflow: api.WorkflowStatus{Feeds: []string{}}})
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			writeSections(out, colorize, daemonSection(status), workflowSection(status.Workflow))
			return nil
		},
	}
}
