// Package aggregate drives one full pipeline pass: fan out across the
// enabled sources, join, merge, dedupe, window-filter, and sort. The
// pipeline holds no state between passes; every Run produces an
// independent snapshot.
package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"townfeed/internal/categorize"
	"townfeed/internal/config"
	"townfeed/internal/dedupe"
	"townfeed/internal/fetch"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
	"townfeed/internal/normalize"
	"townfeed/internal/parse"
)

// maxErrorSummary bounds the error text carried in a health record.
const maxErrorSummary = 200

// Fetcher retrieves the raw payload for one source. Satisfied by
// *fetch.Fetcher; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, src config.SourceConfig) ([]byte, error)
}

// Aggregator runs aggregation passes over the configured source registry.
type Aggregator struct {
	cfg     *config.Config
	fetcher Fetcher
	rules   []categorize.Rule
	loc     *time.Location
}

// New builds an Aggregator from config, compiling the categorizer rule
// table up front so rule mistakes surface at startup.
func New(cfg *config.Config) (*Aggregator, error) {
	rules, err := categorize.Compile(cfg.CategoryRules)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		cfg:     cfg,
		fetcher: fetch.New(cfg.FetchTimeout),
		rules:   rules,
		loc:     cfg.Location(),
	}, nil
}

// Run executes one aggregation pass. It never fails: a source that errors
// contributes zero events and a failed health record, and sources still
// outstanding at the pass ceiling are abandoned the same way.
func (a *Aggregator) Run(ctx context.Context) model.Snapshot {
	return a.runAt(ctx, time.Now().In(a.loc))
}

type sourceResult struct {
	index  int
	events []model.Event
	health model.HealthRecord
}

func (a *Aggregator) runAt(ctx context.Context, now time.Time) model.Snapshot {
	windowEnd := now.Add(a.cfg.Window())

	var enabled []config.SourceConfig
	var order []int // registry indices of the enabled sources
	for i, src := range a.cfg.Sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
			order = append(order, i)
		}
	}

	passCtx, cancel := context.WithTimeout(ctx, a.cfg.PassTimeout)
	defer cancel()

	results := make(chan sourceResult, len(enabled))
	for i, src := range enabled {
		go func(i int, src config.SourceConfig) {
			events, rec := a.collectSource(passCtx, src, now, windowEnd)
			results <- sourceResult{index: i, events: events, health: rec}
		}(i, src)
	}

	// Join barrier with a hard ceiling: a partial pass beats a blocked one.
	collected := make([]*sourceResult, len(enabled))
	done := 0
loop:
	for done < len(enabled) {
		select {
		case r := <-results:
			collected[r.index] = &r
			done++
		case <-passCtx.Done():
			break loop
		}
	}

	var merged []model.Event
	health := make([]model.HealthRecord, 0, len(enabled))
	sourceOrder := make(map[string]int, len(enabled))
	for i, src := range enabled {
		sourceOrder[src.Name] = order[i]
		r := collected[i]
		if r == nil {
			// Abandoned at the ceiling; its partial results are discarded.
			health = append(health, model.HealthRecord{
				Source:    src.Name,
				Status:    model.StatusFailed,
				Error:     "aggregation pass deadline exceeded",
				Timestamp: time.Now(),
			})
			continue
		}
		merged = append(merged, r.events...)
		health = append(health, r.health)
	}

	deduped := dedupe.Dedupe(merged, dedupe.Options{SourceOrder: sourceOrder})

	kept := deduped[:0]
	for _, ev := range deduped {
		if inWindow(ev, now, windowEnd) {
			kept = append(kept, ev)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start.Before(kept[j].Start)
	})

	snap := model.Snapshot{
		PassID:      uuid.NewString(),
		GeneratedAt: now,
		Events:      kept,
		Health:      health,
	}
	appLog.Info("aggregation pass complete", "pass_id", snap.PassID,
		"sources", len(enabled), "events", len(snap.Events))
	return snap
}

// collectSource runs fetch → parse → normalize → categorize for one
// source. All failures are converted into the health record; nothing
// propagates.
func (a *Aggregator) collectSource(ctx context.Context, src config.SourceConfig, now, windowEnd time.Time) ([]model.Event, model.HealthRecord) {
	started := time.Now()
	rec := model.HealthRecord{Source: src.Name, Timestamp: started}

	fail := func(err error) ([]model.Event, model.HealthRecord) {
		appLog.Error("source failed", err, "source", src.Name)
		rec.Status = model.StatusFailed
		rec.Error = truncate(err.Error(), maxErrorSummary)
		rec.Elapsed = time.Since(started)
		return nil, rec
	}

	payload, err := a.fetcher.Fetch(ctx, src)
	if err != nil {
		return fail(err)
	}

	parsed, err := parse.Candidates(src, payload, parse.Options{
		Location:   a.loc,
		RangeStart: now,
		RangeEnd:   windowEnd,
	})
	if err != nil {
		return fail(err)
	}

	dropped := 0
	events := make([]model.Event, 0, len(parsed.Candidates))
	for _, c := range parsed.Candidates {
		ev, ok := normalize.Candidate(c, src.Name, a.loc)
		if !ok {
			dropped++
			continue
		}
		ev.Category = categorize.Apply(a.rules, ev.Title, ev.Description, ev.Category, src.DefaultCategory)
		events = append(events, ev)
	}

	rec.EventCount = len(events)
	rec.Skipped = parsed.Skipped + dropped
	rec.Elapsed = time.Since(started)
	switch {
	case len(events) == 0:
		// Usually a structural mismatch: the fetch worked but nothing
		// usable came out.
		rec.Status = model.StatusFailed
		rec.Error = "no events extracted"
	case rec.Skipped > 0:
		rec.Status = model.StatusPartial
	default:
		rec.Status = model.StatusOK
	}

	appLog.Info("source collected", "source", src.Name, "status", string(rec.Status),
		"events", rec.EventCount, "skipped", rec.Skipped)
	return events, rec
}

// inWindow reports whether the event belongs in [now, windowEnd].
// Date-only events count as spanning their whole civil day.
func inWindow(ev model.Event, now, windowEnd time.Time) bool {
	if ev.DateOnly {
		dayStart := time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 0, 0, 0, 0, now.Location())
		dayEnd := dayStart.Add(24 * time.Hour)
		return dayEnd.After(now) && !dayStart.After(windowEnd)
	}
	return !ev.Start.Before(now) && !ev.Start.After(windowEnd)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
