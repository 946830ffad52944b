package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"visionrecall/internal/logging"
	"visionrecall/internal/results"
	"visionrecall/internal/services"
	"visionrecall/internal/stages"
	"visionrecall/internal/textutil"
)

const maxNoteSuffix = 100

type source struct {
	path  string
	image []byte
	size  int64
	mtime int64
}

// layout holds the derived names of everything persist writes.
type layout struct {
	titleBase          string
	noteFileName       string
	notePath           string
	uniqueName         string
	screenshotFilename string
	screenshotPath     string
	metadataFilename   string
	metadataPath       string
	linkingTag         string
	noteTag            string
}

func (p *Processor) persist(ctx context.Context, src source, a analysis) (*results.Entry, error) {
	logger := logging.WithContext(ctx, p.logger)
	l, err := p.plan(src.path, a.tags.Title)
	if err != nil {
		return nil, err
	}
	formatted := stages.FormatTags(a.tags.Tags)

	var written []string
	rollback := func() {
		for _, path := range written {
			if err := p.files.Delete(path); err != nil {
				logger.Debug("rollback delete failed", logging.String("path", path), logging.Error(err))
			}
		}
	}

	note := p.renderNote(l, a, formatted)
	if err := p.files.CreateExclusive(l.notePath, []byte(note)); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "persist", "write note", l.notePath, err)
	}
	written = append(written, l.notePath)

	hash, err := p.files.Copy(src.path, l.screenshotPath)
	if err != nil {
		rollback()
		return nil, services.Wrap(services.ErrExternalTool, "persist", "copy screenshot", l.screenshotPath, err)
	}
	written = append(written, l.screenshotPath)

	tags := a.tags.Tags
	if tags == nil {
		tags = []string{}
	}
	entry := &results.Entry{
		ID:                    p.newID(),
		OriginalFilename:      filepath.Base(src.path),
		ScreenshotFilename:    l.screenshotFilename,
		ScreenshotStoragePath: l.screenshotPath,
		NotePath:              l.notePath,
		NoteTitle:             l.noteFileName,
		OCRText:               a.ocrText,
		VisionLLMResponse:     a.vision,
		GeneratedNotes:        a.notes,
		Title:                 a.tags.Title,
		ExtractedTags:         tags,
		FormattedTags:         formatted,
		Timestamp:             results.FormatTimestamp(p.now()),
		MetadataFilename:      l.metadataFilename,
		MetadataPath:          l.metadataPath,
		UniqueName:            l.uniqueName,
		UniqueTag:             l.linkingTag,
		Hash:                  hash,
		Size:                  src.size,
		MTime:                 src.mtime,
	}

	metadata, err := encodeMetadata(entry)
	if err != nil {
		rollback()
		return nil, err
	}
	if p.archiver != nil {
		key, err := p.archiver.Store(ctx, hash, extension(src.path), src.image, metadata)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				rollback()
				return nil, services.WrapContext(services.ErrExternalTool, "archive", "store", ctxErr)
			}
			logging.WarnWithContext(logger, "archive upload failed; local copy kept", "archive_failed",
				logging.String(logging.FieldErrorHint, "check archive bucket and credentials"),
				logging.String(logging.FieldImpact, "screenshot has no off-site copy"),
				logging.Error(err),
			)
		} else {
			entry.ArchiveKey = key
			if metadata, err = encodeMetadata(entry); err != nil {
				rollback()
				return nil, err
			}
		}
	}

	if err := p.files.WriteBytes(l.metadataPath, metadata); err != nil {
		rollback()
		return nil, services.Wrap(services.ErrExternalTool, "persist", "write metadata", l.metadataPath, err)
	}
	written = append(written, l.metadataPath)

	if err := p.entries.Put(ctx, entry); err != nil {
		rollback()
		return nil, services.Wrap(services.ErrExternalTool, "persist", "store entry", entry.ID, err)
	}

	p.trashSource(src.path, logger)
	return entry, nil
}

// plan derives the note, screenshot and metadata locations for a new entry.
// Existing notes get a " (n)" suffix.
func (p *Processor) plan(sourcePath, title string) (layout, error) {
	titleBase := textutil.SanitizeFileName(title)
	if titleBase == "" {
		titleBase = textutil.SanitizeFileName(baseName(sourcePath))
	}
	if titleBase == "" {
		titleBase = stages.DefaultTitle
	}

	notesDir := p.cfg.Paths.NotesDir
	noteName := titleBase + " Notes"
	counter := 1
	for p.files.Exists(filepath.Join(notesDir, noteName+".md")) {
		if counter >= maxNoteSuffix {
			return layout{}, services.Wrap(services.ErrValidation, "persist", "name note",
				fmt.Sprintf("too many notes named %q", titleBase), nil)
		}
		noteName = fmt.Sprintf("%s Notes (%d)", titleBase, counter)
		counter++
	}

	uniqueName := strings.ReplaceAll(textutil.SanitizeFileName(noteName), " ", "_")
	screenshotFilename := uniqueName
	if ext := extension(sourcePath); ext != "" {
		screenshotFilename += "." + ext
	}
	prefix := p.cfg.Notes.TagPrefix
	tagPath, ok := stages.SanitizeTag(uniqueName)
	if !ok {
		tagPath = uniqueName
	}
	storageDir := p.cfg.Paths.StorageDir
	return layout{
		titleBase:          titleBase,
		noteFileName:       noteName + ".md",
		notePath:           filepath.Join(notesDir, noteName+".md"),
		uniqueName:         uniqueName,
		screenshotFilename: screenshotFilename,
		screenshotPath:     filepath.Join(storageDir, screenshotFilename),
		metadataFilename:   uniqueName + ".json",
		metadataPath:       filepath.Join(storageDir, uniqueName+".json"),
		linkingTag:         "#" + prefix + "/" + tagPath,
		noteTag:            "#" + prefix + "/" + strings.ReplaceAll(noteName, " ", "_"),
	}, nil
}

func (p *Processor) renderNote(l layout, a analysis, formattedTags string) string {
	content := "# Notes from screenshot: " + l.titleBase + "\n\n" + a.notes
	if !p.cfg.Notes.IncludeMetadata {
		return content
	}
	ocrLimit := p.cfg.Notes.TruncateOCR
	visionLimit := p.cfg.Notes.TruncateVision
	ocrTitle := "OCR text"
	if ocrLimit > 0 {
		ocrTitle = fmt.Sprintf("OCR text (truncated to %d characters)", ocrLimit)
	}
	visionTitle := "Vision LLM context"
	if visionLimit > 0 {
		visionTitle = fmt.Sprintf("Vision LLM context (truncated to %d characters)", visionLimit)
	}

	var b strings.Builder
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Screenshot filename:* [[%s]]\n", l.screenshotPath)
	fmt.Fprintf(&b, "*%s*:\n```\n%s...\n```\n", ocrTitle, textutil.Truncate(a.ocrText, ocrLimit))
	fmt.Fprintf(&b, "*%s*:\n```\n%s...\n```\n", visionTitle, textutil.Truncate(a.vision, visionLimit))
	fmt.Fprintf(&b, "\n*Tags:* %s\n\n%s\n", formattedTags, l.noteTag)
	return content + "\n\n" + b.String()
}

func encodeMetadata(entry *results.Entry) ([]byte, error) {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "persist", "encode metadata", "", err)
	}
	return data, nil
}

func (p *Processor) trashSource(path string, logger *slog.Logger) {
	trashed, err := p.files.Trash(path)
	if err != nil {
		logging.WarnWithContext(logger, "failed to trash processed screenshot", "trash_failed",
			logging.String(logging.FieldErrorHint, "remove the source file manually"),
			logging.String(logging.FieldImpact, "source stays in place; dedup prevents reprocessing"),
			logging.Error(err),
		)
		return
	}
	logger.Debug("source moved to trash", logging.String("trash_path", trashed))
}
