package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dtesync/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, tracking, and contingency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.StatusResponse
			if err := ctx.client().get("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			runningKind := statusOK
			if !status.Running {
				runningKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, yesNo(status.Running), colorize))

			envKind := statusInfo
			if status.Environment == "production" {
				envKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Environment", envKind, status.Environment, colorize))
			fmt.Fprintln(out, renderStatusLine("Store", statusInfo, status.StorePath, colorize))
			fmt.Fprintln(out, renderStatusLine("Tracked documents", statusInfo, fmt.Sprintf("%d", status.Tracking.Active), colorize))

			pendingKind := statusOK
			if status.Contingency.Pending > 0 {
				pendingKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Pending entries", pendingKind, fmt.Sprintf("%d", status.Contingency.Pending), colorize))
			if status.Contingency.Exhausted > 0 {
				fmt.Fprintln(out, renderStatusLine("Exhausted entries", statusError, fmt.Sprintf("%d", status.Contingency.Exhausted), colorize))
			}
			if status.Contingency.Rejected > 0 {
				fmt.Fprintln(out, renderStatusLine("Rejected entries", statusError, fmt.Sprintf("%d", status.Contingency.Rejected), colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Submitted entries", statusInfo, fmt.Sprintf("%d", status.Contingency.Submitted), colorize))
			return nil
		},
	}
}
