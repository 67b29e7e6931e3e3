package model

import "time"

// SourceType enumerates the supported kinds of event sources. Parser and
// fetcher dispatch is closed over this set.
type SourceType string

const (
	SourceRSS  SourceType = "rss"
	SourceICS  SourceType = "ics"
	SourceHTML SourceType = "html"
	SourceAPI  SourceType = "api"
)

// Event is the canonical, normalized representation of one event listing.
// Values are immutable once constructed by the normalizer.
type Event struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitzero"`
	DateOnly    bool      `json:"date_only,omitempty"` // source gave a date without time-of-day
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Cost        string    `json:"cost,omitempty"`
	Source      string    `json:"source"`
	Link        string    `json:"link,omitempty"`
}

// Candidate is a raw, not-yet-validated record produced by a parser.
// Either Start or StartText carries the event time; the normalizer decides
// whether the candidate survives.
type Candidate struct {
	Title       string
	Start       *time.Time // set when the parser already produced a timestamp
	StartText   string     // raw date string, parsed by the normalizer
	End         *time.Time
	DateOnly    bool
	Location    string
	Description string // may contain HTML
	Cost        string
	Link        string
	Category    string // parser-provided hint (e.g. a ticketing segment)
}

// Status describes the outcome of one source in one aggregation pass.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// HealthRecord is the per-source, per-pass outcome summary. Records are
// created fresh each pass and never persisted.
type HealthRecord struct {
	Source     string        `json:"source"`
	Status     Status        `json:"status"`
	EventCount int           `json:"event_count"`
	Skipped    int           `json:"skipped,omitempty"` // malformed or dropped candidates
	Error      string        `json:"error,omitempty"`   // truncated summary
	Timestamp  time.Time     `json:"timestamp"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Snapshot is the read-only result of one aggregation pass.
type Snapshot struct {
	PassID      string         `json:"pass_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Events      []Event        `json:"events"`
	Health      []HealthRecord `json:"health"`
}

// Stats summarizes a snapshot for status displays.
type Stats struct {
	Total      int `json:"total"`
	Free       int `json:"free"`
	Categories int `json:"categories"`
	Sources    int `json:"sources"`
}

// Stats computes feed statistics over the snapshot's events.
func (s Snapshot) Stats() Stats {
	cats := make(map[string]struct{})
	srcs := make(map[string]struct{})
	free := 0
	for _, ev := range s.Events {
		cats[ev.Category] = struct{}{}
		srcs[ev.Source] = struct{}{}
		if ev.Cost == "Free" {
			free++
		}
	}
	return Stats{
		Total:      len(s.Events),
		Free:       free,
		Categories: len(cats),
		Sources:    len(srcs),
	}
}
