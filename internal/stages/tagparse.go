package stages

import (
	"encoding/json"
	"regexp"
	"strings"

	"visionrecall/internal/textutil"
)

const maxTitleRunes = 200

type tagParser func(raw string) (TitleAndTags, bool)

// parseChain is tried in order; the first parser that recognises an object wins.
var parseChain = []tagParser{
	parseStrictJSON,
	parseFlexibleJSON,
	parseBracedJSON,
	parseTitleRegex,
}

// ParseTitleAndTags extracts a title and sanitized tags from a model reply.
func ParseTitleAndTags(raw string) TitleAndTags {
	for _, parse := range parseChain {
		if result, ok := parse(raw); ok {
			return result
		}
	}
	return DefaultTitleAndTags()
}

func parseStrictJSON(raw string) (TitleAndTags, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return TitleAndTags{}, false
	}
	return fromObject(obj), true
}

var (
	fencedOrObject   = regexp.MustCompile("(?s)```(?:json)?(.*?)```|\\{.*\\}")
	trailingComma    = regexp.MustCompile(`,\s*([}\]])`)
	bareKey          = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	codeFenceMarkers = regexp.MustCompile("```(json)?")
)

func parseFlexibleJSON(raw string) (TitleAndTags, bool) {
	match := fencedOrObject.FindStringSubmatch(raw)
	if match == nil {
		return TitleAndTags{}, false
	}
	candidate := match[0]
	if match[1] != "" {
		candidate = match[1]
	}
	candidate = strings.ReplaceAll(candidate, `\"`, `"`)
	candidate = strings.ReplaceAll(candidate, `\n`, "")
	candidate = trailingComma.ReplaceAllString(candidate, "$1")
	candidate = bareKey.ReplaceAllString(candidate, `$1"$2"$3`)
	candidate = strings.TrimSpace(candidate)

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return TitleAndTags{}, false
	}
	return fromObject(obj), true
}

func parseBracedJSON(raw string) (TitleAndTags, bool) {
	text := codeFenceMarkers.ReplaceAllString(raw, "")
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last <= first {
		return TitleAndTags{}, false
	}
	candidate := text[first : last+1]
	candidate = trailingComma.ReplaceAllString(candidate, "$1")
	candidate = strings.ReplaceAll(candidate, `\"`, `"`)
	candidate = strings.ReplaceAll(candidate, "\n", "")

	var parsed struct {
		Title *string  `json:"title"`
		Tags  []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil || parsed.Title == nil || parsed.Tags == nil {
		return TitleAndTags{}, false
	}
	title := strings.TrimSpace(strings.NewReplacer(`\`, "", `"`, "").Replace(*parsed.Title))
	return TitleAndTags{
		Title: textutil.Ternary(title == "", DefaultTitle, title),
		Tags:  SanitizeTags(parsed.Tags),
	}, true
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"title":\s*"?(.*?)"?([,}]|$)`),
	regexp.MustCompile(`(?i)title:\s*"?(.*?)"?([,}]|$)`),
	regexp.MustCompile(`(?i)'title':\s*"?(.*?)"?([,}]|$)`),
	regexp.MustCompile(`(?i)title:\s*(.*?)[,}]`),
}

func parseTitleRegex(raw string) (TitleAndTags, bool) {
	title := DefaultTitle
	for _, re := range titlePatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			candidate := strings.TrimSpace(strings.NewReplacer(`\`, "", `"`, "").Replace(m[1]))
			if candidate != "" {
				title = candidate
			}
			break
		}
	}
	return TitleAndTags{
		Title: textutil.Truncate(title, maxTitleRunes),
		Tags:  SanitizeTags(raw),
	}, true
}

func fromObject(obj map[string]any) TitleAndTags {
	title, _ := obj["title"].(string)
	title = strings.TrimSpace(title)
	var tags []string
	if list, ok := obj["tags"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return TitleAndTags{
		Title: textutil.Ternary(title == "", DefaultTitle, title),
		Tags:  SanitizeTags(tags),
	}
}
