package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"revoice/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file...>",
		Short: "Add media files to the processing queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueAdd(args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Files) == 0 {
					fmt.Fprintln(out, "No supported files were added")
					return nil
				}
				for _, file := range resp.Files {
					fmt.Fprintf(out, "Added #%d %s\n", file.ID, file.DisplayName)
				}
				if skipped := len(args) - len(resp.Files); skipped > 0 {
					fmt.Fprintf(out, "Skipped %d unsupported files\n", skipped)
				}
				return nil
			})
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the file queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Files) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Files))
				for _, file := range resp.Files {
					progress := fmt.Sprintf("%.0f%%", file.Progress.Percent)
					rows = append(rows, []string{
						strconv.FormatInt(file.ID, 10),
						file.DisplayName,
						file.Status,
						progress,
						file.Progress.Message,
					})
				}
				table := renderTable(
					[]string{"ID", "Name", "Status", "Progress", "Message"},
					rows,
					0, 3,
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a file from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRemove(id)
				if err != nil {
					return err
				}
				if resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed file %d\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "File %d not found\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove files from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			scope := "all"
			switch {
			case clearCompleted:
				scope = "completed"
			case clearFailed:
				scope = "failed"
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear(scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d files\n", resp.Removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed files")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed files")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed files to pending",
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
				resp, err := client.QueueRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed files\n", resp.Updated)
				fmt.Fprintln(cmd.OutOrStdout(), "Run `revoice start` to process them")
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var showDatabase bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show record health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				health, err := client.RecordHealth()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Total: %d\nPending: %d\nProcessing: %d\nReview: %d\nFailed: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.ReviewPending,
					health.Failed,
					health.Completed,
				)
				if !showDatabase {
					return nil
				}
				db, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nDatabase: %s\nReadable: %s\nSchema: %s\nIntegrity: %s\n",
					db.DBPath,
					yesNo(db.DatabaseReadable),
					db.SchemaVersion,
					yesNo(db.IntegrityCheck),
				)
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showDatabase, "database", false, "Include database diagnostics")
	return cmd
}
