package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"visionrecall/internal/config"
	"visionrecall/internal/filestore"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/pipeline"
	"visionrecall/internal/results"
)

type libraryHandle struct {
	library *pipeline.Library
	entries *results.Store
}

func (h *libraryHandle) Close() {
	if h != nil && h.entries != nil {
		_ = h.entries.Close()
	}
}

func openLibrary(cfg *config.Config) (*libraryHandle, error) {
	entries, err := results.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open entries store: %w", err)
	}
	fps, err := fingerprint.Open(cfg.FingerprintsPath(), nil)
	if err != nil {
		_ = entries.Close()
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}
	files := filestore.New(cfg.Paths.TrashDir)
	return &libraryHandle{
		library: pipeline.NewLibrary(cfg, files, fps, entries, nil),
		entries: entries,
	}, nil
}

func (c *commandContext) withLibrary(fn func(*libraryHandle) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	handle, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	defer handle.Close()
	return fn(handle)
}

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry"},
		Short:   "Browse and maintain processed screenshots",
	}

	entriesCmd.AddCommand(newEntriesListCommand(ctx))
	entriesCmd.AddCommand(newEntriesShowCommand(ctx))
	entriesCmd.AddCommand(newEntriesDeleteCommand(ctx))
	entriesCmd.AddCommand(newEntriesTagsCommand(ctx))
	entriesCmd.AddCommand(newEntriesExportCommand(ctx))
	entriesCmd.AddCommand(newEntriesImportCommand(ctx))

	return entriesCmd
}

func newEntriesListCommand(ctx *commandContext) *cobra.Command {
	var tag string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				entries, err := h.entries.List(cmd.Context(), results.ListOptions{Tag: tag, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if entries == nil {
						entries = []*results.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No entries")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{shortID(entry.ID), entry.Timestamp, entry.Title, strings.Join(entry.ExtractedTags, ", ")})
				}
				fmt.Fprint(out, renderTableWidth(
					[]string{"ID", "Timestamp", "Title", "Tags"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
					terminalWidth(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Only entries carrying this tag")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries (0 for all)")
	return cmd
}

func newEntriesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|timestamp>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				entry, err := h.library.Find(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, entry)
				}
				printEntry(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
}

func printEntry(out io.Writer, entry *results.Entry) {
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Title:      %s\n", entry.Title)
	fmt.Fprintf(out, "Timestamp:  %s\n", entry.Timestamp)
	fmt.Fprintf(out, "Original:   %s\n", entry.OriginalFilename)
	fmt.Fprintf(out, "Screenshot: %s\n", entry.ScreenshotStoragePath)
	fmt.Fprintf(out, "Note:       %s\n", entry.NotePath)
	fmt.Fprintf(out, "Tags:       %s\n", entry.FormattedTags)
	fmt.Fprintf(out, "Hash:       %s\n", entry.Hash)
	if entry.ArchiveKey != "" {
		fmt.Fprintf(out, "Archive:    %s\n", entry.ArchiveKey)
	}
	if text := strings.TrimSpace(entry.OCRText); text != "" {
		fmt.Fprintf(out, "\nOCR text:\n%s\n", text)
	}
	if notes := strings.TrimSpace(entry.GeneratedNotes); notes != "" {
		fmt.Fprintf(out, "\nNotes:\n%s\n", notes)
	}
}

func newEntriesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|timestamp>...",
		Short: "Delete entries; stored screenshots and metadata move to the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, identity := range args {
					entry, err := h.library.DeleteEntry(cmd.Context(), identity)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", identity, err))
						continue
					}
					fmt.Fprintf(out, "Deleted %s (%s)\n", shortID(entry.ID), entry.Title)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newEntriesTagsCommand(ctx *commandContext) *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "Show tag usage or correct an entry's tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				counts, err := h.entries.TagCounts(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, counts)
				}
				out := cmd.OutOrStdout()
				if len(counts) == 0 {
					fmt.Fprintln(out, "No tags")
					return nil
				}
				rows := make([][]string, 0, len(counts))
				for _, tc := range counts {
					rows = append(rows, []string{tc.Tag, strconv.Itoa(tc.Count)})
				}
				fmt.Fprint(out, renderTable([]string{"Tag", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <id|timestamp> <tag>...",
		Short: "Replace the tags of an entry and rewrite its note and metadata",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				entry, err := h.library.UpdateTags(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, entry)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tags for %s: %s\n", shortID(entry.ID), entry.FormattedTags)
				return nil
			})
		},
	}
	tagsCmd.AddCommand(setCmd)
	return tagsCmd
}

func newEntriesExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every entry as a JSON backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				if outputPath == "" || outputPath == "-" {
					_, err := h.entries.Export(cmd.Context(), cmd.OutOrStdout())
					return err
				}
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				count, err := h.entries.Export(cmd.Context(), file)
				if closeErr := file.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", count, outputPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (stdout when empty)")
	return cmd
}

func newEntriesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load entries from a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(func(h *libraryHandle) error {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer file.Close()
				count, err := h.entries.Import(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries\n", count)
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
