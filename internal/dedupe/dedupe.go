// Package dedupe collapses events that describe the same real-world
// occurrence, typically a game or concert listed by both a feed and a
// ticketing API. It is a pure function of its input: no state survives
// between calls.
package dedupe

import (
	"strings"
	"time"

	"github.com/xrash/smetrics"

	"townfeed/internal/model"
)

// DefaultSimilarity is the Jaro-Winkler threshold above which two titles
// count as the same event. Tunable, validated against known cross-listed
// events rather than a hard contract.
const DefaultSimilarity = 0.90

// Options tunes the deduplicator.
type Options struct {
	// Similarity overrides DefaultSimilarity when > 0.
	Similarity float64
	// SourceOrder maps source names to their registry index; it breaks
	// ties between equal-length titles deterministically. Unknown sources
	// sort last.
	SourceOrder map[string]int
}

// Dedupe returns events with duplicate clusters collapsed to one event
// each. Relative order of surviving events follows the first appearance of
// each cluster in the input.
//
// Two events are duplicates when their starts agree to minute precision
// and either their non-empty locations are equal (case-insensitive,
// whitespace-collapsed) or, when a location is missing, their titles are
// fuzzy-similar above the threshold.
func Dedupe(events []model.Event, opts Options) []model.Event {
	if len(events) < 2 {
		return events
	}
	threshold := opts.Similarity
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}

	// Bucket by start minute so we never compare events days apart.
	buckets := make(map[int64][]int)
	for i, ev := range events {
		key := ev.Start.Truncate(time.Minute).Unix()
		buckets[key] = append(buckets[key], i)
	}

	parent := make([]int, len(events))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, idxs := range buckets {
		for x := 0; x < len(idxs); x++ {
			for y := x + 1; y < len(idxs); y++ {
				if duplicates(events[idxs[x]], events[idxs[y]], threshold) {
					union(idxs[x], idxs[y])
				}
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range events {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	out := make([]model.Event, 0, len(events))
	for i := range events {
		cluster := clusters[find(i)]
		if cluster[0] != i {
			continue // cluster already emitted at its first appearance
		}
		out = append(out, merge(events, cluster, opts.SourceOrder))
	}
	return out
}

func duplicates(a, b model.Event, threshold float64) bool {
	la, lb := foldSpace(a.Location), foldSpace(b.Location)
	if la != "" && lb != "" {
		return la == lb
	}
	// Location missing or unreliable on one side: fall back to title
	// similarity.
	return smetrics.JaroWinkler(foldSpace(a.Title), foldSpace(b.Title), 0.7, 4) >= threshold
}

// merge collapses a cluster to one event. The longer title wins; equal
// lengths fall back to registry order, then input order. Empty optional
// fields are back-filled from the losing records.
func merge(events []model.Event, cluster []int, sourceOrder map[string]int) model.Event {
	win := cluster[0]
	for _, idx := range cluster[1:] {
		if better(events[idx], events[win], sourceOrder) {
			win = idx
		}
	}

	merged := events[win]
	for _, idx := range cluster {
		if idx == win {
			continue
		}
		cand := events[idx]
		if merged.Location == "" {
			merged.Location = cand.Location
		}
		if merged.Link == "" {
			merged.Link = cand.Link
		}
		if merged.Cost == "" {
			merged.Cost = cand.Cost
		}
		if merged.Description == "" {
			merged.Description = cand.Description
		}
	}
	return merged
}

func better(a, b model.Event, sourceOrder map[string]int) bool {
	if len(a.Title) != len(b.Title) {
		return len(a.Title) > len(b.Title)
	}
	return registryIndex(a.Source, sourceOrder) < registryIndex(b.Source, sourceOrder)
}

func registryIndex(source string, sourceOrder map[string]int) int {
	if i, ok := sourceOrder[source]; ok {
		return i
	}
	return int(^uint(0) >> 1)
}

func foldSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
