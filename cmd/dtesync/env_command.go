package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dtesync/internal/api"
)

func newEnvCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "env [production|test]",
		Short: "Show or switch the tax authority environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				var status api.StatusResponse
				if err := ctx.client().get("/api/status", &status); err != nil {
					return err
				}
				fmt.Fprintln(out, status.Environment)
				return nil
			}

			request := api.EnvironmentRequest{Environment: args[0]}
			if err := ctx.client().post("/api/environment", request, nil); err != nil {
				return err
			}
			fmt.Fprintf(out, "Switched to %s environment\n", args[0])
			if args[0] == "production" {
				fmt.Fprintln(out, "Submissions will now reach the live authority endpoint")
			}
			return nil
		},
	}
}
