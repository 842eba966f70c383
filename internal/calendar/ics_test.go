package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20240115T090000Z\r\n" +
	"DTEND:20240115T100000Z\r\n" +
	"SUMMARY:Fed rate decision\r\n" +
	"DESCRIPTION:FOMC announces the target\r\n" +
	" \\, range for the federal funds rate\r\n" +
	"LOCATION:Washington\\, DC\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;VALUE=DATE:20240301\r\n" +
	"SUMMARY:Quarterly earnings\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20240401T000000Z\r\n" +
	"DESCRIPTION:event with no summary\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events := ParseICS(sampleICS)
	require.Len(t, events, 2, "the summary-less event must be discarded")

	first := events[0]
	assert.Equal(t, "Fed rate decision", first.Summary)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), first.End)
	assert.Equal(t, "Washington, DC", first.Location)
	// The folded continuation line is joined with its leading space stripped.
	assert.Equal(t, "FOMC announces the target, range for the federal funds rate", first.Description)

	second := events[1]
	assert.Equal(t, "Quarterly earnings", second.Summary)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), second.Start)
	assert.True(t, second.End.IsZero())
}

func TestParseICSEmpty(t *testing.T) {
	assert.Empty(t, ParseICS(""))
	assert.Empty(t, ParseICS("BEGIN:VCALENDAR\nEND:VCALENDAR"))
}

func TestUnfoldTabs(t *testing.T) {
	lines := unfold("SUMMARY:part one\n\tpart two")
	require.Len(t, lines, 1)
	assert.Equal(t, "SUMMARY:part onepart two", lines[0])
}

func TestParseICSTimeForms(t *testing.T) {
	utc, ok := parseICSTime("20231231T235959Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), utc)

	local, ok := parseICSTime("20240229")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local), local)

	_, ok = parseICSTime("tomorrow")
	assert.False(t, ok)
}
