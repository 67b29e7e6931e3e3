// Package export renders an aggregated event list as an iCalendar payload
// for calendar subscription buttons and downloads. It is a pure
// transformation over the snapshot.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ical "github.com/arran4/golang-ical"

	"townfeed/internal/model"
)

const prodID = "-//townfeed//event feed//EN"

// Calendar serializes events into an iCalendar document.
func Calendar(events []model.Event, name string) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(eventUID(ev))
		ve.SetSummary(ev.Title)
		if ev.DateOnly {
			ve.SetAllDayStartAt(ev.Start)
			if !ev.End.IsZero() {
				ve.SetAllDayEndAt(ev.End)
			}
		} else {
			ve.SetStartAt(ev.Start)
			if !ev.End.IsZero() {
				ve.SetEndAt(ev.End)
			}
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Link != "" {
			ve.SetURL(ev.Link)
		}
	}

	return []byte(cal.Serialize())
}

// eventUID derives a stable UID from the event's identifying fields so a
// re-exported feed updates rather than duplicates subscribed entries.
func eventUID(ev model.Event) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", ev.Title, ev.Start.Unix(), ev.Location))
	return hex.EncodeToString(sum[:16]) + "@townfeed"
}
