package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dtesync/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drive the contingency queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueSubmitCommand(ctx))
	queueCmd.AddCommand(newQueueCleanupCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contingency queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var listing api.EntryListResponse
			if err := ctx.client().get("/api/contingency", &listing); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(listing.Entries) == 0 {
				fmt.Fprintln(out, "Contingency queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(listing.Entries))
			for _, entry := range listing.Entries {
				rows = append(rows, []string{
					entry.ID,
					entry.DocumentID,
					entry.Disposition,
					fmt.Sprintf("%d", entry.Attempts),
					entry.CreatedAt.Local().Format(time.DateTime),
					entry.LastError,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "Entry"},
					{title: "Document"},
					{title: "Disposition"},
					{title: "Attempts", numeric: true},
					{title: "Created"},
					{title: "Last Error", limit: 48},
				},
				rows,
			))
			return nil
		},
	}
}

func newQueueSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit all pending contingency entries now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result api.BatchResultView
			if err := ctx.client().post("/api/contingency/submit", nil, &result); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted %d entries, %d failed\n", result.Submitted, result.Failed)
			for _, entryResult := range result.Results {
				if entryResult.Submitted {
					continue
				}
				fmt.Fprintf(out, "  %s (document %s): %s\n", entryResult.EntryID, entryResult.DocumentID, entryResult.Error)
			}
			return nil
		},
	}
}

func newQueueCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old submitted entries from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result api.CleanupResponse
			if err := ctx.client().post("/api/contingency/cleanup", nil, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", result.Removed)
			return nil
		},
	}
}
