package stages

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxTags = 5

var (
	tagSplit      = regexp.MustCompile(`[,;\n]`)
	tagStrip      = regexp.MustCompile("[\\[\\]*/\\\\`'\")(}{\n]")
	tagWhitespace = regexp.MustCompile(`\s+`)
	tagWrapper    = regexp.MustCompile(`^[\[({]|[\])}]$`)
	tagDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_/-]`)
	tagNonDigit   = regexp.MustCompile(`[a-zA-Z_/-]`)
)

// SanitizeTags normalizes model-provided tags. Strings are split on commas,
// semicolons and newlines. At most five non-empty tags are returned.
func SanitizeTags(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	case string:
		trimmed := tagWrapper.ReplaceAllString(strings.TrimSpace(v), "")
		var parsed []string
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") && json.Unmarshal([]byte(trimmed), &parsed) == nil {
			items = parsed
		} else {
			items = tagSplit.Split(trimmed, -1)
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, maxTags)
	for _, item := range items {
		tag := tagStrip.ReplaceAllString(item, "")
		tag = tagWhitespace.ReplaceAllString(strings.TrimSpace(tag), " ")
		if tag == "" {
			continue
		}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// FormatTags renders tags as hashtags joined by ", ". Spaces become
// underscores.
func FormatTags(tags []string) string {
	formatted := make([]string, 0, len(tags))
	for _, tag := range tags {
		formatted = append(formatted, "#"+strings.ReplaceAll(tag, " ", "_"))
	}
	return strings.Join(formatted, ", ")
}

// SanitizeTag reduces value to a valid hashtag body. It reports false when
// nothing but digits remains.
func SanitizeTag(value string) (string, bool) {
	tag := tagWhitespace.ReplaceAllString(value, "_")
	tag = tagDisallowed.ReplaceAllString(tag, "")
	if !tagNonDigit.MatchString(tag) {
		return "", false
	}
	return tag, true
}
