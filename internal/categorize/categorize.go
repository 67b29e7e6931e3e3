// Package categorize assigns each event exactly one category from a fixed
// closed set using an ordered rule table: the first matching rule wins, so
// precedence between overlapping rules is auditable in one place.
package categorize

import (
	"fmt"
	"regexp"

	"townfeed/internal/config"
)

// Uncategorized is the fall-through category.
const Uncategorized = "Uncategorized"

// Categories is the closed set every output event's category belongs to.
var Categories = []string{
	"Music",
	"Sports",
	"Ole Miss Athletics",
	"Performing Arts",
	"Arts & Culture",
	"Community",
	"Education",
	"University",
	Uncategorized,
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// Valid reports whether cat is a member of the closed set.
func Valid(cat string) bool {
	_, ok := categorySet[cat]
	return ok
}

// Rule is one compiled categorization rule.
type Rule struct {
	re       *regexp.Regexp
	category string
}

// Compile builds the ordered rule list from config. A rule naming a
// category outside the closed set or carrying a bad pattern fails loudly:
// that is an operator configuration mistake, not a runtime condition.
func Compile(rules []config.CategoryRule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if !Valid(r.Category) {
			return nil, fmt.Errorf("rule[%d]: unknown category %q", i, r.Category)
		}
		// Matching is case-insensitive for every rule; operator patterns
		// are plain keyword alternations and must not need regex flags.
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule[%d] %q: %w", i, r.Pattern, err)
		}
		out = append(out, Rule{re: re, category: r.Category})
	}
	return out, nil
}

// Apply picks the category for an event. Precedence: first matching rule,
// then the parser's hint, then the source's default, then Uncategorized.
// Hints and defaults outside the closed set are ignored, never passed
// through.
func Apply(rules []Rule, title, description, hint, sourceDefault string) string {
	text := title + " " + description
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.category
		}
	}
	if Valid(hint) {
		return hint
	}
	if Valid(sourceDefault) {
		return sourceDefault
	}
	return Uncategorized
}
