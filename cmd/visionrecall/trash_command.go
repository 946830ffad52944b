package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visionrecall/internal/trash"
)

func newTrashCommand(ctx *commandContext) *cobra.Command {
	trashCmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and purge trashed screenshots and metadata",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List trash contents, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			items, err := trash.List(cfg.Paths.TrashDir)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Trash is empty")
				return nil
			}
			var total int64
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				total += item.Size
				rows = append(rows, []string{item.Name, item.ModTime.Format("2006-01-02 15:04"), formatBytes(item.Size)})
			}
			fmt.Fprint(out, renderTable([]string{"Name", "Trashed", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			fmt.Fprintf(out, "%d items, %s\n", len(items), formatBytes(total))
			return nil
		},
	}

	var days int
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete trash entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if days < 0 {
				return errors.New("--days must be >= 0")
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Trash.RetentionDays
				if days <= 0 {
					return errors.New("no retention window: pass --days or set trash.retention_days")
				}
			}
			result := trash.Purge(cmd.Context(), cfg.Paths.TrashDir, time.Duration(days)*24*time.Hour, time.Now(), nil)
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d trash entries (%s)\n", len(result.Removed), formatBytes(result.Freed))
			if len(result.Errors) > 0 {
				errs := make([]error, 0, len(result.Errors))
				for _, failure := range result.Errors {
					errs = append(errs, fmt.Errorf("%s: %w", failure.Path, failure.Error))
				}
				return errors.Join(errs...)
			}
			return nil
		},
	}
	purgeCmd.Flags().IntVar(&days, "days", 0, "Age threshold in days; 0 empties the trash (defaults to trash.retention_days)")

	trashCmd.AddCommand(listCmd, purgeCmd)
	return trashCmd
}

func formatBytes(value int64) string {
	const (
		kiB = 1024
		miB = kiB * 1024
		giB = miB * 1024
	)
	switch {
	case value >= giB:
		return fmt.Sprintf("%.2f GiB", float64(value)/float64(giB))
	case value >= miB:
		return fmt.Sprintf("%.2f MiB", float64(value)/float64(miB))
	case value >= kiB:
		return fmt.Sprintf("%.2f KiB", float64(value)/float64(kiB))
	default:
		return fmt.Sprintf("%d B", value)
	}
}
