package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				printSectionHeader(out, "Daemon", colorize)
				runningKind := statusError
				runningMsg := "stopped"
				if status.Running {
					runningKind = statusOK
					runningMsg = fmt.Sprintf("pid %d", status.PID)
				}
				printStatusLine(out, "Processing", runningKind, runningMsg, colorize)
				printStatusLine(out, "Queue depth", statusInfo, fmt.Sprintf("%d", status.QueueDepth), colorize)
				if status.ActiveID > 0 {
					printStatusLine(out, "Active file", statusInfo, fmt.Sprintf("#%d", status.ActiveID), colorize)
				}
				if status.ReviewPending > 0 {
					printStatusLine(out, "Review waiting", statusWarn, fmt.Sprintf("%d files", status.ReviewPending), colorize)
				}
				if status.LastError != "" {
					printStatusLine(out, "Last error", statusError, status.LastError, colorize)
				}

				if len(status.StageHealth) > 0 {
					fmt.Fprintln(out)
					printSectionHeader(out, "Stages", colorize)
					for _, health := range status.StageHealth {
						kind := statusOK
						if !health.Ready {
							kind = statusWarn
						}
						printStatusLine(out, health.Name, kind, health.Detail, colorize)
					}
				}

				if len(status.Stats) > 0 {
					fmt.Fprintln(out)
					printSectionHeader(out, "Files", colorize)
					rows := buildStatsRows(status.Stats)
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, 1))
				}
				return nil
			})
		},
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start [id...]",
		Short: "Start processing eligible files, optionally limited to the given ids",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid file id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started batch: %s\n", resp.Message)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Shutdown(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test push notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func buildStatsRows(stats map[string]int) [][]string {
	order := []string{
		"pending", "transcribing", "transcribed", "rewriting", "rewritten",
		"review_pending", "approved", "rejected", "synthesizing", "completed", "failed",
	}
	rows := make([][]string, 0, len(stats))
	for _, status := range order {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{strings.ReplaceAll(status, "_", " "), fmt.Sprintf("%d", count)})
	}
	return rows
}
