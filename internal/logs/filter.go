package logs

import (
	"encoding/json"
	"strings"
)

// Filter reports whether a log line should be returned.
type Filter func(line string) bool

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

type entryFields struct {
	Level     string `json:"level"`
	Component string `json:"component"`
	ItemID    *int64 `json:"item_id"`
}

func parseEntry(line string) (entryFields, bool) {
	var fields entryFields
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return fields, false
	}
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return fields, false
	}
	return fields, true
}

// MinLevel keeps JSON entries at or above level. Lines that are not JSON
// entries pass through.
func MinLevel(level string) Filter {
	want, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok || want == 0 {
		return nil
	}
	return func(line string) bool {
		fields, ok := parseEntry(line)
		if !ok {
			return true
		}
		got, known := levelRank[strings.ToLower(fields.Level)]
		return !known || got >= want
	}
}

// ForItem keeps entries tagged with the queue item id.
func ForItem(id int64) Filter {
	if id <= 0 {
		return nil
	}
	return func(line string) bool {
		fields, ok := parseEntry(line)
		return ok && fields.ItemID != nil && *fields.ItemID == id
	}
}

// ForComponent keeps entries emitted by component.
func ForComponent(component string) Filter {
	component = strings.TrimSpace(component)
	if component == "" {
		return nil
	}
	return func(line string) bool {
		fields, ok := parseEntry(line)
		return ok && strings.EqualFold(fields.Component, component)
	}
}

// All combines filters; nil filters are ignored.
func All(filters ...Filter) Filter {
	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, f := range active {
			if !f(line) {
				return false
			}
		}
		return true
	}
}
