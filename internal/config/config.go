package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"townfeed/internal/model"
)

// SourceConfig describes one external origin of event listings. The registry
// is read-only input for an aggregation pass.
type SourceConfig struct {
	// Name identifies the source in logs, health records and event records.
	Name string `yaml:"name" json:"name"`
	// Type is one of rss|ics|html|api.
	Type model.SourceType `yaml:"type" json:"type"`
	// URL is the feed/calendar/page endpoint. API sources derive their URL
	// from Parser + City/State instead.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Parser selects a site/API-specific extraction profile
	// (e.g. "visitoxford", "bandsintown", "seatgeek", "ticketmaster").
	Parser string `yaml:"parser,omitempty" json:"parser,omitempty"`
	// DefaultCategory applies when no categorizer rule matches.
	DefaultCategory string `yaml:"default_category,omitempty" json:"default_category,omitempty"`
	// Render routes HTML fetches through headless Chromium for pages that
	// only materialize their listings via JavaScript.
	Render bool `yaml:"render,omitempty" json:"render,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// API-source query parameters.
	City  string `yaml:"city,omitempty" json:"city,omitempty"`
	State string `yaml:"state,omitempty" json:"state,omitempty"`
	// CredentialEnv overrides the environment variable holding the API key.
	CredentialEnv string `yaml:"credential_env,omitempty" json:"credential_env,omitempty"`
}

// IsEnabled reports whether the source participates in aggregation passes.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CategoryRule is one ordered categorization rule. The first rule whose
// pattern matches the event text wins.
type CategoryRule struct {
	Pattern  string `yaml:"pattern" json:"pattern"`
	Category string `yaml:"category" json:"category"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone timezone-naive source dates are assumed
	// to be in, and the zone all output timestamps are expressed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron schedules aggregation passes in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WindowDays is the forward-looking display window: events starting
	// within [now, now+WindowDays] are retained.
	WindowDays int `yaml:"window_days" json:"window_days"`

	// FetchTimeout bounds each source's network fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// PassTimeout is the hard ceiling for one aggregation pass. Sources
	// still outstanding when it expires are abandoned.
	PassTimeout time.Duration `yaml:"pass_timeout" json:"pass_timeout"`

	// SnapshotTTL bounds how long the serve-mode cache answers requests
	// from the previous pass before recomputing.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" json:"snapshot_ttl"`

	// Sources is the source registry. Order matters: it is the dedup
	// tie-break of last resort.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// CategoryRules is the ordered rule table for the categorizer.
	CategoryRules []CategoryRule `yaml:"category_rules" json:"category_rules"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "America/Chicago",
		RefreshCron:   "*/30 * * * *",
		WindowDays:    21,
		FetchTimeout:  15 * time.Second,
		PassTimeout:   60 * time.Second,
		SnapshotTTL:   10 * time.Minute,
		Sources:       []SourceConfig{},
		CategoryRules: DefaultCategoryRules(),
		BasicAuth:     nil,
	}
}

// DefaultCategoryRules is the built-in ordered rule table. Patterns match
// case-insensitively. Specific rules come before generic ones: the
// athletics rule must win over the plain sports keywords for venue-tagged
// titles.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Pattern: `\b(vaught|hemingway|pavilion|swayze|ole miss (?:football|basketball|baseball|athletics|rebels))\b`, Category: "Ole Miss Athletics"},
		{Pattern: `\b(football|basketball|baseball|softball|soccer|volleyball|golf|tennis|track|athletics|tailgate)\b`, Category: "Sports"},
		{Pattern: `\b(concert|live music|recital|orchestra|band|choir|jazz|music)\b`, Category: "Music"},
		{Pattern: `\b(theatre|theater|play|ballet|dance|opera|stage)\b`, Category: "Performing Arts"},
		{Pattern: `\b(art|gallery|museum|exhibit|film|screening|author|poetry|literary|book signing)\b`, Category: "Arts & Culture"},
		{Pattern: `\b(lecture|seminar|workshop|symposium|colloquium|panel|class|course|training)\b`, Category: "Education"},
		{Pattern: `\b(farmers market|festival|parade|fair|market|fundraiser|volunteer|community)\b`, Category: "Community"},
		{Pattern: `\b(campus|student|alumni|university|residence hall)\b`, Category: "University"},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Chicago"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 21
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = 60 * time.Second
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 10 * time.Minute
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if len(c.CategoryRules) == 0 {
		c.CategoryRules = DefaultCategoryRules()
	}
}

// Validate rejects sources the pipeline cannot dispatch on. Per-source
// runtime problems (bad URLs, missing credentials) are health-record
// material, not load failures; only structurally unusable entries fail here.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source[%d]: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = struct{}{}
		switch s.Type {
		case model.SourceRSS, model.SourceICS, model.SourceHTML, model.SourceAPI:
		default:
			return fmt.Errorf("source %q: unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}

// Window returns the display window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowDays) * 24 * time.Hour
}

// Location resolves the configured timezone, falling back to time.Local
// when the zone name cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed, write
//     a default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, normalize defaults, validate.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".townfeed-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
