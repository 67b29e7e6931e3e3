package parse

import (
	"bytes"
	"regexp"

	"github.com/mmcdole/gofeed"

	"townfeed/internal/config"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

// rssItemLimit bounds how many feed items we consider per source. Feeds
// that keep years of history would otherwise dominate a pass for nothing:
// the window filter discards old entries anyway.
const rssItemLimit = 50

// embeddedDateRE finds an ISO-shaped date inside free text. Event feeds
// often carry the actual event date in the item body while pubDate is just
// the posting time; the embedded date wins when present.
var embeddedDateRE = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?\b`)

func parseRSS(src config.SourceConfig, payload []byte) (Result, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i, item := range feed.Items {
		if i >= rssItemLimit {
			break
		}
		if item == nil || item.Title == "" {
			res.Skipped++
			continue
		}

		c := model.Candidate{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
		}
		if c.Description == "" {
			c.Description = item.Content
		}

		switch {
		case embeddedDateRE.MatchString(c.Description):
			c.StartText = embeddedDateRE.FindString(c.Description)
		case item.PublishedParsed != nil:
			t := *item.PublishedParsed
			c.Start = &t
		case item.UpdatedParsed != nil:
			t := *item.UpdatedParsed
			c.Start = &t
		default:
			// Raw string as a last resort; the normalizer decides.
			c.StartText = item.Published
		}

		res.Candidates = append(res.Candidates, c)
	}

	appLog.Debug("rss parse completed", "source", src.Name,
		"candidates", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}
