package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"visionrecall/internal/ipc"
	"visionrecall/internal/queueaccess"
	"visionrecall/internal/workflow"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control the processing queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "pause", "Suspend processing after the current item", (*ipc.Client).Pause))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "resume", "Resume a paused or stopped queue", (*ipc.Client).Resume))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "stop", "Stop processing; the current item returns to pending", (*ipc.Client).Stop))
	queueCmd.AddCommand(newQueueControlCommand(ctx, "toggle", "Pause, resume or start depending on queue state", (*ipc.Client).Toggle))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTableWidth(
					[]string{"ID", "File", "Status", "Created", "Error"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					terminalWidth(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func buildQueueListRows(items []ipc.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.FileName,
			titleCase(item.Status),
			item.CreatedAt,
			item.ErrorMessage,
		})
	}
	return rows
}

func newQueueControlCommand(ctx *commandContext, use, short string, op func(*ipc.Client) (*ipc.ControlResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := op(client)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				printControlResponse(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func printControlResponse(out io.Writer, resp *ipc.ControlResponse) {
	switch resp.Action {
	case workflow.ActionPaused:
		fmt.Fprintln(out, "Queue paused")
	case workflow.ActionResumed:
		fmt.Fprintln(out, "Queue resumed")
	case "stopped":
		fmt.Fprintln(out, "Queue stopped")
	case workflow.ActionStarted:
		fmt.Fprintln(out, "Queue started")
	default:
		fmt.Fprintln(out, "Queue is idle; nothing to do")
	}
	fmt.Fprintf(out, "State: %s\n", queueStateLabel(resp.IsProcessing, resp.IsPaused, resp.IsStopped))
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var terminalOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, err := access.Clear(cmd.Context(), terminalOnly)
				if err != nil {
					return err
				}
				if terminalOnly {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished items\n", removed)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&terminalOnly, "finished", false, "Remove only completed, failed and skipped items")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|path>...",
		Short: "Remove items by id or source path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				removed, notFound, err := access.Remove(cmd.Context(), args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d items\n", removed)
				if len(notFound) > 0 {
					fmt.Fprintf(out, "Not found: %s\n", strings.Join(notFound, ", "))
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed items to pending (all failed items when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				updated, err := access.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Retrying %d items\n", updated)
				if !access.Live() && updated > 0 {
					fmt.Fprintln(out, "Daemon is not running; items will be processed on next start")
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(resp.TableExists))
				if len(resp.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(resp.MissingColumns, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(out, "Total items: %d\n", resp.TotalItems)
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.New("invalid item id: " + arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
