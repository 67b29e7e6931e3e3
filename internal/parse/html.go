package parse

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"townfeed/internal/config"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

// htmlProfile is a site-specific set of CSS selectors for extracting event
// listings. Selectors are tried in order within each comma group; a
// structural mismatch (no item matches) yields zero candidates, not an
// error — the aggregator surfaces that through the health record.
type htmlProfile struct {
	item     string
	title    string
	date     string
	location string
	cost     string
}

var htmlProfiles = map[string]htmlProfile{
	"visitoxford": {
		item:     "article.event, li.event, div.event-item, [class*='event-card']",
		title:    "h2, h3, .title, a[class*='title']",
		date:     "time, .date, [class*='date']",
		location: ".location, .venue, [class*='location'], [class*='venue']",
		cost:     ".cost, .price, [class*='price']",
	},
	"bandsintown": {
		item:     "[class*='event'], article",
		title:    "h2, h3, h4, [class*='title'], [class*='name']",
		date:     "time, [class*='date']",
		location: "[class*='venue']",
	},
	// simplelist is the generic fallback profile for unconfigured sites.
	"simplelist": {
		item:     "article, .event, [class*='event']",
		title:    "h1, h2, h3, h4",
		date:     "time, .date, [class*='date']",
		location: ".location, .venue, [class*='location']",
	},
}

func parseHTML(src config.SourceConfig, payload []byte) (Result, error) {
	prof, ok := htmlProfiles[src.Parser]
	if !ok {
		prof = htmlProfiles["simplelist"]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}

	base, _ := url.Parse(src.URL)

	var res Result
	doc.Find(prof.item).Each(func(_ int, sel *goquery.Selection) {
		title := firstText(sel, prof.title)
		date := extractDate(sel, prof.date)
		if title == "" || date == "" {
			res.Skipped++
			return
		}

		c := model.Candidate{
			Title:     title,
			StartText: date,
			Location:  firstText(sel, prof.location),
			Link:      absoluteLink(sel, base),
		}
		if prof.cost != "" {
			c.Cost = firstText(sel, prof.cost)
		}
		res.Candidates = append(res.Candidates, c)
	})

	appLog.Debug("html parse completed", "source", src.Name, "parser", src.Parser,
		"candidates", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}

// firstText returns the trimmed text of the first non-empty match.
func firstText(sel *goquery.Selection, selector string) string {
	out := ""
	sel.Find(selector).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		if t := strings.TrimSpace(m.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}

// extractDate prefers a machine-readable datetime attribute over the
// element's display text.
func extractDate(sel *goquery.Selection, selector string) string {
	out := ""
	sel.Find(selector).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		if dt, ok := m.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			out = strings.TrimSpace(dt)
			return false
		}
		if t := strings.TrimSpace(m.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}

func absoluteLink(sel *goquery.Selection, base *url.URL) string {
	href, ok := sel.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
