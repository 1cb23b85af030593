package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dtesync/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		docID        string
		docType      string
		receiverName string
		receiverID   string
		total        float64
		payloadPath  string
		issuerNIT    string
		issuerNRC    string
		issuerName   string
	)

	cmd := &cobra.Command{
		Use:   "submit [payload-file]",
		Short: "Submit a document to the tax authority, queueing it if unreachable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(issuerNIT) == "" {
				return fmt.Errorf("--issuer-nit is required")
			}
			if len(args) == 1 {
				payloadPath = args[0]
			}

			request := api.SubmitRequest{
				Document: api.SubmitDocument{
					ID:           strings.TrimSpace(docID),
					Type:         strings.TrimSpace(docType),
					ReceiverName: receiverName,
					ReceiverID:   receiverID,
					Total:        total,
				},
				Issuer: api.SubmitIssuer{
					NIT:  strings.TrimSpace(issuerNIT),
					NRC:  strings.TrimSpace(issuerNRC),
					Name: issuerName,
				},
			}

			if payloadPath != "" {
				payload, err := os.ReadFile(payloadPath)
				if err != nil {
					return fmt.Errorf("read payload file: %w", err)
				}
				if !json.Valid(payload) {
					return fmt.Errorf("payload file %s is not valid JSON", payloadPath)
				}
				request.Document.Payload = payload
			}

			var response api.SubmitResponse
			if err := ctx.client().post("/api/documents", request, &response); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if response.Queued {
				fmt.Fprintf(out, "Authority unreachable; document queued for contingency (entry %s)\n", response.EntryID)
				return nil
			}
			fmt.Fprintf(out, "Document accepted\n")
			fmt.Fprintf(out, "  Generation code: %s\n", response.GenerationCode)
			fmt.Fprintf(out, "  Control number:  %s\n", response.ControlNumber)
			fmt.Fprintf(out, "  Reception seal:  %s\n", response.ReceptionSeal)
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Generation code (UUID); generated when omitted")
	cmd.Flags().StringVar(&docType, "type", "01", "Document type code")
	cmd.Flags().StringVar(&receiverName, "receiver-name", "", "Receiver name")
	cmd.Flags().StringVar(&receiverID, "receiver-id", "", "Receiver identification")
	cmd.Flags().Float64Var(&total, "total", 0, "Document total amount")
	cmd.Flags().StringVar(&payloadPath, "payload", "", "Path to the signed document JSON payload")
	cmd.Flags().StringVar(&issuerNIT, "issuer-nit", "", "Issuer NIT")
	cmd.Flags().StringVar(&issuerNRC, "issuer-nrc", "", "Issuer NRC")
	cmd.Flags().StringVar(&issuerName, "issuer-name", "", "Issuer legal name")

	return cmd
}
