// Package normalize maps parser candidates onto canonical Events. It is a
// pure transformation: the same candidate always yields the same Event, and
// candidates that cannot produce a valid Event are dropped, never defaulted.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"townfeed/internal/model"
)

// dateLayouts are tried in order for zone-naive inputs. Naive values are
// pinned to the configured local zone.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006",
}

var dateOnlyLayouts = []string{
	"2006-01-02",
	"01/02/2006",
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Candidate converts one parser candidate into an Event. The boolean is
// false when the candidate must be dropped (empty title or unresolvable
// start time).
func Candidate(c model.Candidate, sourceName string, loc *time.Location) (model.Event, bool) {
	title := CollapseWhitespace(c.Title)
	if title == "" {
		return model.Event{}, false
	}

	start, dateOnly, ok := resolveStart(c, loc)
	if !ok {
		return model.Event{}, false
	}

	ev := model.Event{
		Title:       title,
		Start:       start,
		DateOnly:    dateOnly,
		Location:    Location(c.Location),
		Description: StripHTML(c.Description),
		Category:    c.Category, // refined by the categorizer
		Cost:        Cost(c.Cost),
		Source:      sourceName,
		Link:        strings.TrimSpace(c.Link),
	}
	if c.End != nil {
		ev.End = c.End.In(loc)
	}
	return ev, true
}

func resolveStart(c model.Candidate, loc *time.Location) (time.Time, bool, bool) {
	if c.Start != nil {
		return c.Start.In(loc), c.DateOnly, true
	}
	return ParseWhen(c.StartText, loc)
}

// ParseWhen parses a date string in one of the accepted input formats:
// ISO 8601, RFC 2822, a handful of human-written layouts, and date-only
// forms. The second result reports date-only precision; the third is false
// when nothing matched.
func ParseWhen(s string, loc *time.Location) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}

	// Zone-aware forms first. RFC 2822 makes the weekday optional, so the
	// weekday-less variants sit next to their RFC1123/RFC822 counterparts.
	for _, layout := range []string{
		time.RFC3339,
		time.RFC1123Z, time.RFC1123,
		"2 Jan 2006 15:04:05 -0700", "2 Jan 2006 15:04:05 MST",
		time.RFC822Z, time.RFC822,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), false, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, true
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true, true
		}
	}
	return time.Time{}, false, false
}

// StripHTML removes markup from a description, decodes entities, and
// collapses the remaining whitespace.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
		s = html.UnescapeString(s)
	}
	return CollapseWhitespace(s)
}

// Location trims and collapses whitespace and strips trailing punctuation.
// Geocoding is a downstream concern.
func Location(s string) string {
	s = CollapseWhitespace(s)
	return strings.TrimRight(s, ",.;: ")
}

// Cost canonicalizes free-admission variants to "Free"; everything else
// passes through as trimmed free text.
func Cost(s string) string {
	t := strings.TrimSpace(s)
	switch strings.ToLower(t) {
	case "free", "no cost", "no charge", "$0", "$0.00", "0":
		return "Free"
	}
	return t
}

// CollapseWhitespace trims and squeezes internal runs of whitespace.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}
