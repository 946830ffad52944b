package results

import (
	"strings"
	"time"
)

// TimestampLayout matches the millisecond ISO-8601 form used in metadata files.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is the persisted record of a processed screenshot.
type Entry struct {
	ID                    string   `json:"id"`
	OriginalFilename      string   `json:"originalFilename"`
	ScreenshotFilename    string   `json:"screenshotFilename"`
	ScreenshotStoragePath string   `json:"screenshotStoragePath"`
	NotePath              string   `json:"notePath"`
	NoteTitle             string   `json:"noteTitle"`
	OCRText               string   `json:"ocrText"`
	VisionLLMResponse     string   `json:"visionLLMResponse"`
	GeneratedNotes        string   `json:"generatedNotes,omitempty"`
	Title                 string   `json:"title"`
	ExtractedTags         []string `json:"extractedTags"`
	FormattedTags         string   `json:"formattedTags"`
	Timestamp             string   `json:"timestamp"`
	MetadataFilename      string   `json:"metadataFilename"`
	MetadataPath          string   `json:"metadataPath"`
	UniqueName            string   `json:"uniqueName"`
	UniqueTag             string   `json:"uniqueTag"`
	Hash                  string   `json:"hash"`
	Size                  int64    `json:"size"`
	MTime                 int64    `json:"mtime"`
	ArchiveKey            string   `json:"archiveKey,omitempty"`
}

// FormatTimestamp renders t in TimestampLayout using UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses the entry timestamp. The zero time is returned when it is
// missing or malformed.
func (e Entry) Time() time.Time {
	ts := strings.TrimSpace(e.Timestamp)
	if ts == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	return time.Time{}
}

// TagCount is the number of entries carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
