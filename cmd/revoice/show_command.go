package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showTranscript bool
	var showRewrite bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				file := resp.File
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSectionHeader(out, fmt.Sprintf("File #%d", file.ID), colorize)
				printStatusLine(out, "Name", statusInfo, file.DisplayName, colorize)
				printStatusLine(out, "Source", statusInfo, file.SourcePath, colorize)
				printStatusLine(out, "Status", statusForFile(file.Status), file.Status, colorize)
				printStatusLine(out, "Progress", statusInfo,
					fmt.Sprintf("%.0f%% %s", file.Progress.Percent, file.Progress.Message), colorize)
				if file.TranscriptionDuration > 0 {
					printStatusLine(out, "Audio length", statusInfo,
						fmt.Sprintf("%.1fs", file.TranscriptionDuration), colorize)
				}
				if file.RewriteModel != "" {
					detail := file.RewriteModel
					if file.RewriteTokens > 0 {
						detail = fmt.Sprintf("%s (%d tokens)", detail, file.RewriteTokens)
					}
					printStatusLine(out, "Rewrite model", statusInfo, detail, colorize)
				}
				if file.AudioPath != "" {
					printStatusLine(out, "Audio output", statusOK, file.AudioPath, colorize)
				}
				if file.ErrorMessage != "" {
					printStatusLine(out, "Error", statusError, file.ErrorMessage, colorize)
				}
				for _, stageErr := range file.Errors {
					printStatusLine(out, "  "+stageErr.Stage, statusError, stageErr.Message, colorize)
				}

				if showTranscript && file.TranscriptionText != "" {
					fmt.Fprintln(out)
					printSectionHeader(out, "Transcript", colorize)
					fmt.Fprintln(out, file.TranscriptionText)
				}
				if showRewrite && file.RewriteText != "" {
					fmt.Fprintln(out)
					printSectionHeader(out, "Rewritten text", colorize)
					fmt.Fprintln(out, file.RewriteText)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Print the transcription text")
	cmd.Flags().BoolVar(&showRewrite, "rewrite", false, "Print the rewritten text")
	return cmd
}

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Re-run text processing for a file with the current prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reprocess(id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func statusForFile(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "review_pending", "rejected":
		return statusWarn
	default:
		return statusInfo
	}
}
