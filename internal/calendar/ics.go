// Package calendar parses RFC-5545 (iCalendar) feeds into discrete events for
// retrospective forecast seeding. Only the fields needed for backtesting are
// extracted; recurrence rules, alarms, and timezone components are ignored.
package calendar

import (
	"strings"
	"time"
)

// Event is a single calendar event.
type Event struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// ParseICS parses an iCalendar text into events. Events without a SUMMARY or
// without a parseable DTSTART are discarded.
func ParseICS(text string) []Event {
	lines := unfold(text)

	var events []Event
	var cur map[string]string
	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			cur = make(map[string]string)
		case line == "END:VEVENT":
			if cur != nil {
				if ev, ok := buildEvent(cur); ok {
					events = append(events, ev)
				}
				cur = nil
			}
		case cur != nil:
			name, value, ok := splitProperty(line)
			if ok {
				cur[name] = value
			}
		}
	}
	return events
}

// unfold joins RFC-5545 folded continuation lines: a line starting with a
// space or tab continues the previous line, with the leading whitespace
// character stripped.
func unfold(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var lines []string
	for _, l := range raw {
		if len(l) > 0 && (l[0] == ' ' || l[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += l[1:]
			continue
		}
		lines = append(lines, strings.TrimRight(l, "\r"))
	}
	return lines
}

// splitProperty splits "NAME;PARAM=X:value" into the bare property name and
// its value. Parameters after the first semicolon are dropped.
func splitProperty(line string) (name, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	name = line[:idx]
	value = line[idx+1:]
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}
	return strings.ToUpper(name), value, true
}

func buildEvent(props map[string]string) (Event, bool) {
	summary := strings.TrimSpace(unescapeText(props["SUMMARY"]))
	if summary == "" {
		return Event{}, false
	}

	start, ok := parseICSTime(props["DTSTART"])
	if !ok {
		return Event{}, false
	}

	ev := Event{
		Summary:     summary,
		Description: unescapeText(props["DESCRIPTION"]),
		Location:    unescapeText(props["LOCATION"]),
		Start:       start,
	}
	if end, ok := parseICSTime(props["DTEND"]); ok {
		ev.End = end
	}
	return ev, true
}

// parseICSTime parses the two date forms used by calendar feeds: a bare date
// YYYYMMDD (local midnight) and a Z-suffixed UTC timestamp YYYYMMDDTHHMMSSZ.
func parseICSTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102", value, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// unescapeText reverses RFC-5545 text escaping for the sequences that appear
// in practice.
func unescapeText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}
