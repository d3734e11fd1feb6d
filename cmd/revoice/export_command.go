package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Bundle completed files into the export directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Export(kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", resp.Records, resp.Path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "all", "Export kind: all, transcripts, rewrites, or audio")
	return cmd
}
