package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the caller's hint for how ambiguous day/month text is ordered.
type DateFormat string

const (
	DateFormatDMY DateFormat = "DD/MM/YYYY"
	DateFormatMDY DateFormat = "MM/DD/YYYY"
	DateFormatYMD DateFormat = "YYYY-MM-DD"
)

var ErrInvalidDateFormat = errors.New("unsupported date format")

// SupportedDateFormats lists the hints accepted by ParseDateFormat.
var SupportedDateFormats = []DateFormat{DateFormatDMY, DateFormatMDY, DateFormatYMD}

// ParseDateFormat validates a hint. The empty string is accepted and means
// "no hint".
func ParseDateFormat(s string) (DateFormat, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return "", nil
	}
	for _, f := range SupportedDateFormats {
		if string(f) == trimmed {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}

// FallbackPolicy decides what DateParser returns when no interpretation works.
type FallbackPolicy string

const (
	FallbackNow   FallbackPolicy = "now"
	FallbackEpoch FallbackPolicy = "epoch"
	FallbackFail  FallbackPolicy = "fail" // the caller must reject the row
)

// ParseFallbackPolicy validates a policy name; the empty string means FallbackNow.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FallbackNow:
		return FallbackNow, nil
	case FallbackEpoch:
		return FallbackEpoch, nil
	case FallbackFail:
		return FallbackFail, nil
	}
	return "", fmt.Errorf("unsupported date fallback policy %q", s)
}

// nativeLayouts are unambiguous layouts tried before the caller's hint.
// Slash-separated dates are left to the hint so DD/MM input is never read
// as MM/DD.
var nativeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"Mon Jan 2 2006 15:04:05",
}

// DateParser turns broker date text into UTC timestamps. The zero value uses
// FallbackNow and the wall clock.
type DateParser struct {
	Policy FallbackPolicy
	Now    func() time.Time
}

func NewDateParser(policy FallbackPolicy) *DateParser {
	return &DateParser{Policy: policy}
}

// Parse never panics and always returns a timestamp. ok is false when the
// text could not be interpreted and the fallback value was returned instead.
func (p *DateParser) Parse(text string, hint DateFormat) (t time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t, ok = p.fallback(), false
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return p.fallback(), false
	}

	for _, layout := range nativeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}

	if parsed, hintOK := parseWithHint(trimmed, hint); hintOK {
		return parsed, true
	}

	if strings.Contains(trimmed, "/") {
		datePart, timePart := splitDateTime(trimmed)
		parts := strings.Split(datePart, "/")
		if len(parts) == 3 {
			if parsed, buildOK := buildDate(parts[2], parts[0], parts[1], timePart); buildOK {
				return parsed, true
			}
		}
	}

	return p.fallback(), false
}

// FailsOnFallback reports whether unparsed dates must reject the row.
func (p *DateParser) FailsOnFallback() bool {
	return p.Policy == FallbackFail
}

func (p *DateParser) fallback() time.Time {
	switch p.Policy {
	case FallbackEpoch:
		return time.Unix(0, 0).UTC()
	case FallbackFail:
		return time.Time{}
	}
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func parseWithHint(text string, hint DateFormat) (time.Time, bool) {
	datePart, timePart := splitDateTime(text)
	parts := splitDate(datePart)
	if len(parts) != 3 {
		return time.Time{}, false
	}
	switch hint {
	case DateFormatDMY:
		return buildDate(parts[2], parts[1], parts[0], timePart)
	case DateFormatMDY:
		return buildDate(parts[2], parts[0], parts[1], timePart)
	case DateFormatYMD:
		return buildDate(parts[0], parts[1], parts[2], timePart)
	}
	return time.Time{}, false
}

// splitDate splits a date on "/" or "-". Mixed separators are not a date.
func splitDate(datePart string) []string {
	hasSlash, hasDash := strings.Contains(datePart, "/"), strings.Contains(datePart, "-")
	switch {
	case hasSlash && hasDash:
		return nil
	case hasDash:
		return strings.Split(datePart, "-")
	}
	return strings.Split(datePart, "/")
}

func splitDateTime(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func buildDate(yearStr, monthStr, dayStr, timePart string) (time.Time, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil || year < 0 {
		return time.Time{}, false
	}
	if len(strings.TrimSpace(yearStr)) <= 2 {
		year += 2000
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayStr))
	if err != nil || day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, false
	}

	// An unreadable clock keeps the date at midnight.
	var hour, minute, second int
	if strings.Contains(timePart, ":") {
		if h, m, sec, timeOK := parseClock(timePart); timeOK {
			hour, minute, second = h, m, sec
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// parseClock reads hours:minutes[:seconds] with an optional AM/PM suffix.
func parseClock(s string) (int, int, int, bool) {
	clock := strings.ToUpper(strings.TrimSpace(s))
	meridiem := ""
	for _, m := range []string{"AM", "PM"} {
		if strings.HasSuffix(clock, m) {
			meridiem = m
			clock = strings.TrimSpace(strings.TrimSuffix(clock, m))
			break
		}
	}

	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > limits[i] {
			return 0, 0, 0, false
		}
		values[i] = v
	}

	switch meridiem {
	case "AM", "PM":
		if values[0] < 1 || values[0] > 12 {
			return 0, 0, 0, false
		}
		values[0] %= 12
		if meridiem == "PM" {
			values[0] += 12
		}
	}
	return values[0], values[1], values[2], true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
