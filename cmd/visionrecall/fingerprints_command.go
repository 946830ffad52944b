package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visionrecall/internal/fingerprint"
)

func newFingerprintsCommand(ctx *commandContext) *cobra.Command {
	fpCmd := &cobra.Command{
		Use:   "fingerprints",
		Short: "Inspect and prune the duplicate-detection store",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show fingerprint counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := fingerprint.Open(cfg.FingerprintsPath(), nil)
			if err != nil {
				return err
			}
			stats := store.Stats()
			if ctx.JSONMode() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", cfg.FingerprintsPath())
			fmt.Fprintf(out, "File records: %d\n", stats.Records)
			fmt.Fprintf(out, "Known hashes: %d\n", stats.Hashes)
			if cfg.Fingerprints.RetentionDays > 0 {
				fmt.Fprintf(out, "Retention: %d days\n", cfg.Fingerprints.RetentionDays)
			} else {
				fmt.Fprintln(out, "Retention: forever")
			}
			return nil
		},
	}

	var days int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop fingerprints of files older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.Fingerprints.RetentionDays
			}
			if days <= 0 {
				return errors.New("no retention window: pass --days or set fingerprints.retention_days")
			}
			store, err := fingerprint.Open(cfg.FingerprintsPath(), nil)
			if err != nil {
				return err
			}
			removed, err := store.Prune(time.Duration(days)*24*time.Hour, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d fingerprint records older than %d days\n", removed, days)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (defaults to fingerprints.retention_days)")

	fpCmd.AddCommand(statsCmd, pruneCmd)
	return fpCmd
}
