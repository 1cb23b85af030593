package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dtesync/internal/api"
)

func newTrackingCommand(ctx *commandContext) *cobra.Command {
	trackingCmd := &cobra.Command{
		Use:   "tracking",
		Short: "List and control document status tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackingList(cmd, ctx)
		},
	}

	trackingCmd.AddCommand(newTrackingWatchCommand(ctx))
	trackingCmd.AddCommand(newTrackingStopCommand(ctx))

	return trackingCmd
}

func runTrackingList(cmd *cobra.Command, ctx *commandContext) error {
	var stats api.TrackingStatsView
	if err := ctx.client().get("/api/tracking", &stats); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stats.Active == 0 {
		fmt.Fprintln(out, "No documents are being tracked")
		return nil
	}

	rows := make([][]string, 0, len(stats.Documents))
	for _, doc := range stats.Documents {
		rows = append(rows, []string{
			doc.DocumentID,
			doc.IssuerNIT,
			doc.LastStatus,
			fmt.Sprintf("%d", doc.Failures),
			formatElapsed(doc.ElapsedSeconds),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{
			{title: "Document"},
			{title: "Issuer NIT"},
			{title: "Last Status"},
			{title: "Failures", numeric: true},
			{title: "Elapsed", numeric: true},
		},
		rows,
	))
	return nil
}

func newTrackingWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		documentID    string
		controlNumber string
		issuerNIT     string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start status tracking for an already-submitted document",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.WatchRequest{
				Documents: []api.WatchDocument{{ID: documentID, ControlNumber: controlNumber}},
				Issuer:    api.SubmitIssuer{NIT: issuerNIT},
			}
			var resp api.WatchResponse
			if err := ctx.client().post("/api/tracking", req, &resp); err != nil {
				return err
			}
			if resp.Started == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Document %s is not awaiting an authority verdict; tracking not started\n", documentID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking started for document %s\n", documentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "id", "", "document identifier (generation code)")
	cmd.Flags().StringVar(&controlNumber, "control-number", "", "control number returned on submission")
	cmd.Flags().StringVar(&issuerNIT, "issuer-nit", "", "issuing entity NIT")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("control-number")
	_ = cmd.MarkFlagRequired("issuer-nit")

	return cmd
}

func newTrackingStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <document-id>",
		Short: "Stop status tracking for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.StopTrackingResponse
			if err := ctx.client().delete("/api/tracking/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking stopped for document %s\n", resp.DocumentID)
			return nil
		},
	}
}
