package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"townfeed/internal/config"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; townfeed/1.0)"

// maxBodyBytes caps how much of a response we read; event feeds are small
// and a misbehaving source must not exhaust memory.
const maxBodyBytes = 8 << 20

// Fetcher retrieves raw payloads for sources with a bounded timeout.
// One attempt per pass; a later pass retries naturally.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// New creates a Fetcher whose every request is bounded by timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: tr},
		timeout:   timeout,
		userAgent: defaultUserAgent,
	}
}

// Fetch retrieves the raw payload for one source. API sources resolve
// their endpoint and credential first; HTML sources marked render:true go
// through headless Chromium. All failures come back as *ConfigError or
// *FetchError, never a panic.
func (f *Fetcher) Fetch(ctx context.Context, src config.SourceConfig) ([]byte, error) {
	url := src.URL
	if src.Type == model.SourceAPI {
		resolved, err := apiRequestURL(src)
		if err != nil {
			return nil, err
		}
		url = resolved
	}
	if url == "" {
		return nil, &ConfigError{Source: src.Name, Reason: "url is required"}
	}

	if src.Type == model.SourceHTML && src.Render {
		return f.fetchRendered(ctx, src.Name, url)
	}
	return f.fetchHTTP(ctx, src.Name, url)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, name, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ConfigError{Source: name, Reason: "bad url: " + err.Error()}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	appLog.Debug("fetch start", "source", name, "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: name, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: name, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Source: name, URL: url, Err: err}
	}

	appLog.Debug("fetch done", "source", name, "bytes", len(body), "status", resp.StatusCode)
	return body, nil
}

// redactURL hides query strings and paths of source URLs in logs; ICS and
// API endpoints routinely embed tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	j := strings.IndexByte(rest, '/')
	if j == -1 {
		return u
	}
	return u[:i+3+j] + redactedSuffix
}
