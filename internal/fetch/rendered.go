package fetch

import (
	"context"

	"github.com/chromedp/chromedp"

	appLog "townfeed/internal/log"
)

// fetchRendered loads the page in headless Chromium and returns the
// serialized DOM after scripts have run. Some listing sites only
// materialize their events client-side; a plain GET sees an empty shell.
//
// The whole browser session is bounded by the fetcher timeout, same as a
// plain HTTP fetch.
func (f *Fetcher) fetchRendered(parentCtx context.Context, name, url string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, f.timeout)
	defer timeoutCancel()

	appLog.Debug("rendered fetch start", "source", name, "url", redactURL(url))

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, &FetchError{Source: name, URL: url, Err: err}
	}

	return []byte(html), nil
}
