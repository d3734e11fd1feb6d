package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Approve or reject rewritten text before speech generation",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewApproveCommand(ctx))
	reviewCmd.AddCommand(newReviewApproveAllCommand(ctx))
	reviewCmd.AddCommand(newReviewRejectCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List files waiting for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewList()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Files) == 0 {
					fmt.Fprintln(out, "No files waiting for review")
					return nil
				}
				rows := make([][]string, 0, len(resp.Files))
				for _, file := range resp.Files {
					rows = append(rows, []string{
						strconv.FormatInt(file.ID, 10),
						file.DisplayName,
						previewText(file.RewriteText, 60),
					})
				}
				table := renderTable(
					[]string{"ID", "Name", "Rewritten text"},
					rows,
					0,
				)
				fmt.Fprintln(out, table)
				fmt.Fprintln(out, "Use `revoice show <id> --rewrite` to read the full text")
				return nil
			})
		},
	}
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	var rewriteFile string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a file for speech generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}

			req := ipc.ReviewApproveRequest{ID: id}
			if strings.TrimSpace(rewriteFile) != "" {
				data, err := os.ReadFile(rewriteFile)
				if err != nil {
					return fmt.Errorf("read edited text: %w", err)
				}
				text := string(data)
				req.RewriteText = &text
			}

			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ReviewApprove(req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved file %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&rewriteFile, "text-file", "", "Replace the rewritten text with this file's contents before approval")
	return cmd
}

func newReviewApproveAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-all",
		Short: "Approve every waiting file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewApproveAll()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %d files\n", resp.Approved)
				return nil
			})
		},
	}
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a file's rewritten text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ReviewReject(id, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected file %d\n", id)
				fmt.Fprintln(cmd.OutOrStdout(), "Use `revoice reprocess` to regenerate its text")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded against the rejection")
	return cmd
}

func previewText(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}
