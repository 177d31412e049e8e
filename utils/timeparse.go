package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var embeddedTime = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)

// ParseHourMinute extracts an hour/minute pair from a time-of-day string.
// Plain "15:04" and "15:04:05" parse directly; full datetimes from clients
// that serialize the whole instant fall back to a set of known layouts, and
// as a last resort any embedded HH:MM fragment is used.
func ParseHourMinute(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, fmt.Errorf("time value cannot be empty")
	}

	layout := "15:04"
	if strings.Count(value, ":") >= 2 {
		layout = "15:04:05"
	}

	if t, err := time.Parse(layout, value); err == nil {
		return t.Hour(), t.Minute(), nil
	} else {
		fallbackLayouts := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04",
			"2006-01-02T15:04",
		}

		for _, layout := range fallbackLayouts {
			if parsed, altErr := time.Parse(layout, value); altErr == nil {
				return parsed.Hour(), parsed.Minute(), nil
			}
		}

		if match := embeddedTime.FindString(value); match != "" && match != value {
			return ParseHourMinute(match)
		}

		return 0, 0, fmt.Errorf("invalid time format %q: %w", value, err)
	}
}

// MinuteOfDay converts a time-of-day string to minutes from midnight.
func MinuteOfDay(value string) (int, error) {
	h, m, err := ParseHourMinute(value)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// FormatMinute renders minutes from midnight as "15:04".
func FormatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
