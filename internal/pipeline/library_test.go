package pipeline_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"visionrecall/internal/services"
	"visionrecall/internal/testsupport"
)

func TestDeleteEntryTrashesFilesAndReleasesHash(t *testing.T) {
	h := testsupport.NewHarness(t, testsupport.NewConfig(t))
	item := newItem(t, h, "a.png", 10)
	if _, err := h.Processor.Admit(item); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	entry, err := h.Processor.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	deleted, err := h.Library.DeleteEntry(context.Background(), entry.Timestamp)
	if err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if deleted.ID != entry.ID {
		t.Fatalf("deleted wrong entry %q", deleted.ID)
	}
	for _, path := range []string{entry.MetadataPath, entry.ScreenshotStoragePath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s trashed, stat err = %v", path, err)
		}
	}
	if _, err := os.Stat(entry.NotePath); err != nil {
		t.Fatalf("note should be kept: %v", err)
	}
	if stats := h.Fingerprints.Stats(); stats.Hashes != 0 {
		t.Fatalf("expected hash released, got %+v", stats)
	}

	again := newItem(t, h, "again.png", 10)
	if ok, err := h.Processor.Admit(again); err != nil || !ok {
		t.Fatalf("expected content to be admitted after delete, got %v, %v", ok, err)
	}
}

func TestDeleteEntryUnknownIsNotFound(t *testing.T) {
	h := testsupport.NewHarness(t, testsupport.NewConfig(t))
	_, err := h.Library.DeleteEntry(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTagsRewritesNoteAndMetadata(t *testing.T) {
	h := testsupport.NewHarness(t, testsupport.NewConfig(t))
	entry, err := h.Processor.Process(context.Background(), newItem(t, h, "a.png", 11))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	updated, err := h.Library.UpdateTags(context.Background(), entry.ID, []string{"#golang", " release notes ", "golang", ""})
	if err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}
	if len(updated.ExtractedTags) != 2 || updated.FormattedTags != "#golang, #release_notes" {
		t.Fatalf("unexpected tags %v %q", updated.ExtractedTags, updated.FormattedTags)
	}

	note, _ := os.ReadFile(entry.NotePath)
	if !strings.Contains(string(note), "*Tags:* #golang, #release_notes\n") {
		t.Fatalf("note tags not rewritten:\n%s", note)
	}
	meta, _ := os.ReadFile(entry.MetadataPath)
	if !strings.Contains(string(meta), `"formattedTags": "#golang, #release_notes"`) {
		t.Fatalf("metadata not rewritten:\n%s", meta)
	}
	counts, err := h.Entries.TagCounts(context.Background())
	if err != nil || len(counts) != 2 {
		t.Fatalf("TagCounts = %v, %v", counts, err)
	}
}
