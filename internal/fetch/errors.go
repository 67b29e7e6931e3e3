package fetch

import "fmt"

// ConfigError reports a source that is misconfigured (missing URL, missing
// API credential, unknown parser profile). It short-circuits the source
// before any network call.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %s: config: %s", e.Source, e.Reason)
}

// FetchError reports a network-level failure for one source: timeout,
// connection error, or a non-2xx HTTP status.
type FetchError struct {
	Source string
	URL    string
	Status int // HTTP status when the server responded, else 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("source %s: fetch %s: status %d", e.Source, redactURL(e.URL), e.Status)
	}
	return fmt.Sprintf("source %s: fetch %s: %v", e.Source, redactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
