package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"visionrecall/internal/config"
	"visionrecall/internal/filestore"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/logging"
	"visionrecall/internal/results"
	"visionrecall/internal/services"
	"visionrecall/internal/stages"
)

var noteTagsLine = regexp.MustCompile(`\*Tags:\*.*`)

// Library edits and removes entries after they have been processed.
type Library struct {
	cfg          *config.Config
	files        *filestore.Store
	fingerprints *fingerprint.Store
	entries      *results.Store
	logger       *slog.Logger
}

// NewLibrary builds a Library. fingerprints may be nil.
func NewLibrary(cfg *config.Config, files *filestore.Store, fingerprints *fingerprint.Store, entries *results.Store, logger *slog.Logger) *Library {
	return &Library{
		cfg:          cfg,
		files:        files,
		fingerprints: fingerprints,
		entries:      entries,
		logger:       logging.NewComponentLogger(logger, "library"),
	}
}

// Find resolves identity as an entry id, falling back to a timestamp.
func (l *Library) Find(ctx context.Context, identity string) (*results.Entry, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, services.Wrap(services.ErrValidation, "entries", "find", "identity required", nil)
	}
	entry, err := l.entries.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if entry, err = l.entries.GetByTimestamp(ctx, identity); err != nil {
			return nil, err
		}
	}
	if entry == nil {
		return nil, services.Wrap(services.ErrNotFound, "entries", "find", identity, nil)
	}
	return entry, nil
}

// DeleteEntry removes the entry and trashes its metadata file and stored
// screenshot. The note is left in place. Once no entry references the
// content hash any more, its fingerprints are dropped too.
func (l *Library) DeleteEntry(ctx context.Context, identity string) (*results.Entry, error) {
	entry, err := l.Find(ctx, identity)
	if err != nil {
		return nil, err
	}
	if _, err := l.entries.Delete(ctx, entry.ID); err != nil {
		return nil, err
	}
	logger := l.logger.With(logging.String("entry_id", entry.ID))

	metadataPath := entry.MetadataPath
	if metadataPath == "" && entry.ScreenshotFilename != "" {
		stem := strings.TrimSuffix(entry.ScreenshotFilename, filepath.Ext(entry.ScreenshotFilename))
		metadataPath = filepath.Join(l.cfg.Paths.StorageDir, stem+".json")
	}
	for _, path := range []string{metadataPath, entry.ScreenshotStoragePath} {
		if path == "" {
			continue
		}
		if _, err := l.files.Trash(path); err != nil {
			logging.WarnWithContext(logger, "failed to trash entry file", "entry_trash_failed",
				logging.String("path", path),
				logging.String(logging.FieldImpact, "file remains in storage"),
				logging.Error(err),
			)
		}
	}

	if l.fingerprints != nil && entry.Hash != "" {
		remaining, err := l.entries.CountByHash(ctx, entry.Hash)
		if err != nil {
			return entry, err
		}
		if remaining == 0 {
			if err := l.fingerprints.ForgetHash(entry.Hash); err != nil {
				return entry, err
			}
		}
	}
	logger.Info("entry deleted",
		logging.String(logging.FieldEventType, "entry_deleted"),
		logging.String("title", entry.Title),
	)
	return entry, nil
}

// UpdateTags replaces the tags of an entry and rewrites the tag line of its
// note and its metadata file.
func (l *Library) UpdateTags(ctx context.Context, identity string, tags []string) (*results.Entry, error) {
	entry, err := l.Find(ctx, identity)
	if err != nil {
		return nil, err
	}
	cleaned := normalizeTags(tags)
	formatted := stages.FormatTags(cleaned)
	updated, err := l.entries.UpdateTags(ctx, entry.ID, cleaned, formatted)
	if err != nil {
		return nil, err
	}

	if updated.NotePath != "" && l.files.Exists(updated.NotePath) {
		data, err := l.files.ReadBytes(updated.NotePath)
		if err != nil {
			return updated, err
		}
		if noteTagsLine.Match(data) {
			replaced := noteTagsLine.ReplaceAllLiteral(data, []byte("*Tags:* "+formatted))
			if err := l.files.WriteBytes(updated.NotePath, replaced); err != nil {
				return updated, err
			}
		}
	}
	if updated.MetadataPath != "" {
		if err := l.rewriteMetadata(updated); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (l *Library) rewriteMetadata(entry *results.Entry) error {
	current := *entry
	if l.files.Exists(entry.MetadataPath) {
		data, err := l.files.ReadBytes(entry.MetadataPath)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &current); err != nil {
			return services.Wrap(services.ErrValidation, "entries", "decode metadata", entry.MetadataPath, err)
		}
		current.ExtractedTags = entry.ExtractedTags
		current.FormattedTags = entry.FormattedTags
	}
	data, err := encodeMetadata(&current)
	if err != nil {
		return err
	}
	return l.files.WriteBytes(entry.MetadataPath, data)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		tag = strings.Join(strings.Fields(tag), " ")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
