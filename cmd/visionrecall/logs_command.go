package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"visionrecall/internal/ipc"
	"visionrecall/internal/logging"
	"visionrecall/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		level     string
		itemID    int64
		component string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			req := ipc.LogTailRequest{
				Offset:    -1,
				Limit:     lines,
				Level:     level,
				ItemID:    itemID,
				Component: component,
			}

			fetch, closeFn, err := logFetcher(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			for {
				resp, err := fetch(cmd.Context(), req)
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				if err := cmd.Context().Err(); err != nil {
					return nil
				}
				req.Offset = resp.Offset
				req.Follow = true
				req.WaitMillis = 2000
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only lines for this queue item id")
	cmd.Flags().StringVar(&component, "component", "", "Only lines from this component")
	return cmd
}

type logFetch func(context.Context, ipc.LogTailRequest) (*ipc.LogTailResponse, error)

// logFetcher reads through the daemon when it answers, else straight from
// the log file.
func logFetcher(ctx *commandContext) (logFetch, func(), error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		return func(_ context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
			return client.LogTail(req)
		}, func() { _ = client.Close() }, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	return func(runCtx context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		result, err := logs.Tail(runCtx, path, logs.TailOptions{
			Offset: req.Offset,
			Limit:  req.Limit,
			Follow: req.Follow,
			Wait:   wait,
			Filter: logs.All(logs.MinLevel(req.Level), logs.ForItem(req.ItemID), logs.ForComponent(req.Component)),
		})
		if err != nil && runCtx.Err() == nil {
			return nil, err
		}
		return &ipc.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
	}, func() {}, nil
}
