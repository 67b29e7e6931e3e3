package parse

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"townfeed/internal/config"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

// maxOccurrencesPerEvent caps recurrence expansion so a runaway RRULE
// cannot flood the feed.
const maxOccurrencesPerEvent = 100

// vevent is the intermediate form of one VEVENT before recurrence
// expansion and candidate conversion.
type vevent struct {
	summary     string
	description string
	location    string
	url         string

	start   time.Time
	end     time.Time
	allDay  bool
	rawRule string
	exDates []time.Time
}

func parseICS(src config.SourceConfig, payload []byte, opts Options) (Result, error) {
	if len(payload) == 0 {
		return Result{}, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, comp := range cal.Events() {
		ve, perr := parseVEvent(comp, opts.Location)
		if perr != nil {
			// Skip this event, keep parsing the others.
			appLog.Warn("ics vevent skipped", "source", src.Name, "reason", perr.Error())
			res.Skipped++
			continue
		}
		res.Candidates = append(res.Candidates, expandVEvent(src, ve, opts)...)
	}

	appLog.Debug("ics parse completed", "source", src.Name,
		"candidates", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.url = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}

	// All-day: VALUE=DATE parameter or a value without a time part.
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.allDay = true
		}
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.allDay = true
	}

	startLoc := loc
	if params := dtStart.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			if l, err := time.LoadLocation(tzs[0]); err == nil {
				startLoc = l
			}
		}
	}

	start, err := parseICSTime(dtStart.Value, startLoc)
	if err != nil {
		return out, err
	}
	out.start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, err := parseICSTime(dtEnd.Value, startLoc); err == nil {
			out.end = end
		}
	}
	if out.end.IsZero() {
		if out.allDay {
			out.end = out.start.Add(24 * time.Hour)
		} else {
			out.end = out.start.Add(time.Hour)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rawRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, startLoc); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}

	return out, nil
}

// expandVEvent converts a parsed VEVENT into candidates. Non-recurring
// events yield one candidate; RRULE-bearing events are expanded into their
// concrete occurrences inside [opts.RangeStart, opts.RangeEnd].
func expandVEvent(src config.SourceConfig, ve vevent, opts Options) []model.Candidate {
	if ve.rawRule == "" {
		return []model.Candidate{makeCandidate(ve, ve.start)}
	}

	r, err := rrule.StrToRRule(ve.rawRule)
	if err != nil {
		appLog.Warn("ics rrule unparseable, using base event only",
			"source", src.Name, "rrule", ve.rawRule)
		return []model.Candidate{makeCandidate(ve, ve.start)}
	}
	r.DTStart(ve.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ve.exDates {
		set.ExDate(ex.In(ve.start.Location()))
	}

	rangeStart := opts.RangeStart.In(ve.start.Location())
	rangeEnd := opts.RangeEnd.In(ve.start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > maxOccurrencesPerEvent {
		appLog.Warn("ics recurrence truncated", "source", src.Name,
			"summary", ve.summary, "cap", maxOccurrencesPerEvent)
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	out := make([]model.Candidate, 0, len(occTimes))
	for _, occStart := range occTimes {
		out = append(out, makeCandidate(ve, occStart))
	}
	return out
}

func makeCandidate(ve vevent, start time.Time) model.Candidate {
	if ve.allDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	}
	end := start.Add(ve.end.Sub(ve.start))
	s := start
	return model.Candidate{
		Title:       ve.summary,
		Start:       &s,
		End:         &end,
		DateOnly:    ve.allDay,
		Location:    ve.location,
		Description: ve.description,
		Link:        ve.url,
	}
}

// parseICSTime parses basic ICS date/date-time forms. Naive values are
// interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	// Floating date-time, e.g. 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	// Date-only, e.g. 20250101
	return time.ParseInLocation("20060102", v, loc)
}
