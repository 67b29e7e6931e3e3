// Package parse turns raw source payloads into candidate events. One parser
// per source type; dispatch is closed over model.SourceType. Parsers never
// fail a whole source on a single malformed item: the bad item is skipped
// and counted.
package parse

import (
	"fmt"
	"time"

	"townfeed/internal/config"
	"townfeed/internal/model"
)

// Options carries pass-scoped context parsers need: the zone for naive
// timestamps and the window recurring events are expanded into.
type Options struct {
	Location   *time.Location
	RangeStart time.Time
	RangeEnd   time.Time
}

// Result is a parser's output: the candidates it extracted plus the count
// of items it had to skip.
type Result struct {
	Candidates []model.Candidate
	Skipped    int
}

// Candidates parses the payload fetched for src into candidate events.
func Candidates(src config.SourceConfig, payload []byte, opts Options) (Result, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	switch src.Type {
	case model.SourceRSS:
		return parseRSS(src, payload)
	case model.SourceICS:
		return parseICS(src, payload, opts)
	case model.SourceHTML:
		return parseHTML(src, payload)
	case model.SourceAPI:
		return parseAPI(src, payload)
	default:
		return Result{}, fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
	}
}
