package parse

import (
	"strings"
	"testing"
	"time"

	"townfeed/internal/config"
	"townfeed/internal/model"
)

func icsSource() config.SourceConfig {
	return config.SourceConfig{Name: "campus-cal", Type: model.SourceICS, URL: "https://example.com/events.ics"}
}

func icsOptions(t *testing.T) Options {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return Options{
		Location:   loc,
		RangeStart: time.Date(2025, 11, 1, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2025, 11, 30, 0, 0, 0, 0, loc),
	}
}

func icsDoc(events ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n")
	for _, e := range events {
		b.WriteString(e)
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func TestParseICSTimedEvent(t *testing.T) {
	payload := icsDoc(
		"BEGIN:VEVENT\r\n" +
			"UID:1@test\r\n" +
			"DTSTART:20251120T190000Z\r\n" +
			"DTEND:20251120T210000Z\r\n" +
			"SUMMARY:Fall Concert\r\n" +
			"LOCATION:The Lyric\r\n" +
			"DESCRIPTION:Doors at 6\r\n" +
			"URL:https://example.com/events/concert\r\n" +
			"END:VEVENT\r\n")

	res, err := parseICS(icsSource(), payload, icsOptions(t))
	if err != nil {
		t.Fatalf("parseICS: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}

	c := res.Candidates[0]
	if c.Title != "Fall Concert" {
		t.Errorf("title = %q", c.Title)
	}
	if c.DateOnly {
		t.Error("timed event flagged date-only")
	}
	if c.Start == nil || !c.Start.Equal(time.Date(2025, 11, 20, 19, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", c.Start)
	}
	if c.End == nil || !c.End.Equal(time.Date(2025, 11, 20, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", c.End)
	}
	if c.Location != "The Lyric" {
		t.Errorf("location = %q", c.Location)
	}
	if c.Link != "https://example.com/events/concert" {
		t.Errorf("link = %q", c.Link)
	}
}

func TestParseICSDateOnlyEvent(t *testing.T) {
	payload := icsDoc(
		"BEGIN:VEVENT\r\n" +
			"UID:2@test\r\n" +
			"DTSTART;VALUE=DATE:20251122\r\n" +
			"SUMMARY:Holiday Market\r\n" +
			"LOCATION:Oxford Square\r\n" +
			"END:VEVENT\r\n")

	res, err := parseICS(icsSource(), payload, icsOptions(t))
	if err != nil {
		t.Fatalf("parseICS: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}

	c := res.Candidates[0]
	if !c.DateOnly {
		t.Error("all-day VEVENT not flagged date-only")
	}
	if c.Start == nil || c.Start.Hour() != 0 || c.Start.Day() != 22 {
		t.Errorf("start = %v, want midnight on the 22nd", c.Start)
	}
}

func TestParseICSExpandsRecurrence(t *testing.T) {
	payload := icsDoc(
		"BEGIN:VEVENT\r\n" +
			"UID:3@test\r\n" +
			"DTSTART:20251104T180000Z\r\n" +
			"DTEND:20251104T190000Z\r\n" +
			"RRULE:FREQ=WEEKLY;COUNT=10\r\n" +
			"EXDATE:20251111T180000Z\r\n" +
			"SUMMARY:Weekly Run Club\r\n" +
			"END:VEVENT\r\n")

	res, err := parseICS(icsSource(), payload, icsOptions(t))
	if err != nil {
		t.Fatalf("parseICS: %v", err)
	}

	// Nov 4, 18, 25 fall inside the range; Nov 11 is excluded by EXDATE.
	if len(res.Candidates) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(res.Candidates))
	}
	for _, c := range res.Candidates {
		if c.Title != "Weekly Run Club" {
			t.Errorf("title = %q", c.Title)
		}
		if c.Start == nil {
			t.Fatal("occurrence without start")
		}
		if c.Start.Day() == 11 {
			t.Error("EXDATE occurrence was not excluded")
		}
	}
}

func TestParseICSSkipsBadEventKeepsRest(t *testing.T) {
	payload := icsDoc(
		"BEGIN:VEVENT\r\n"+
			"UID:4@test\r\n"+
			"SUMMARY:No Start Time\r\n"+
			"END:VEVENT\r\n",
		"BEGIN:VEVENT\r\n"+
			"UID:5@test\r\n"+
			"DTSTART:20251120T190000Z\r\n"+
			"SUMMARY:Valid Event\r\n"+
			"END:VEVENT\r\n")

	res, err := parseICS(icsSource(), payload, icsOptions(t))
	if err != nil {
		t.Fatalf("parseICS: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Title != "Valid Event" {
		t.Fatalf("candidates = %+v, want only the valid event", res.Candidates)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
}

func TestParseICSEmptyBody(t *testing.T) {
	if _, err := parseICS(icsSource(), nil, icsOptions(t)); err == nil {
		t.Fatal("expected error for empty body")
	}
}
