// Package config loads the pipeline configuration: the feed source list,
// the police API settings, and the shared HTTP knobs. Configuration comes
// from a YAML file, falling back to the built-in default source set, with a
// couple of environment overrides applied last.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so "300ms"-style values work in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the whole pipeline configuration.
type Config struct {
	UserAgent      string       `yaml:"user_agent"`
	RequestTimeout Duration     `yaml:"request_timeout"`
	RequestDelay   Duration     `yaml:"request_delay"`
	StateDB        string       `yaml:"state_db"`
	Feeds          []FeedConfig `yaml:"feeds"`
	Police         PoliceConfig `yaml:"police"`
}

// FeedConfig describes one RSS/Atom source.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	MaxItems int    `yaml:"max_items"`
	Enabled  *bool  `yaml:"enabled"`
	Output   string `yaml:"output"`
}

// IsEnabled treats an absent enabled flag as enabled.
func (f FeedConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// PoliceConfig describes the paginated police API source.
type PoliceConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Language    string   `yaml:"language"`
	PageSize    int      `yaml:"page_size"`
	WindowDays  int      `yaml:"window_days"`
	WindowDelay Duration `yaml:"window_delay"`
	Enabled     *bool    `yaml:"enabled"`
	Output      string   `yaml:"output"`
}

// IsEnabled treats an absent enabled flag as enabled.
func (p PoliceConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Default returns the built-in configuration: the standing PVO Limburg
// source set with the original pipeline's rate limits.
func Default() *Config {
	return &Config{
		UserAgent:      "Mozilla/5.0 (compatible; PVO-Limburg/1.0)",
		RequestTimeout: Duration(12 * time.Second),
		RequestDelay:   Duration(300 * time.Millisecond),
		StateDB:        "ingest.db",
		Feeds: []FeedConfig{
			{
				Name:     "De Limburger - Economie",
				URL:      "https://www.limburger.nl/extra/rssfeed/22594085.html",
				MaxItems: 30,
				Output:   "scrapedArticles/limburger.json",
			},
			{
				Name:     "Nationaal Cyber Security Centrum - Nieuwsberichten",
				URL:      "https://www.ncsc.nl/actueel/nieuws.rss",
				MaxItems: 30,
				Output:   "scrapedArticles/ncsc.json",
			},
			{
				Name:     "NOS Nieuws",
				URL:      "https://feeds.nos.nl/nosnieuwsalgemeen",
				MaxItems: 30,
				Output:   "scrapedArticles/nos.json",
			},
			{
				Name:     "Security.nl",
				URL:      "https://www.security.nl/rss/headlines.xml",
				MaxItems: 30,
				Output:   "scrapedArticles/security_nl.json",
			},
			{
				Name:     "De Gelderlander - Economie",
				URL:      "https://www.gelderlander.nl/economie/rss.xml",
				MaxItems: 30,
				Output:   "scrapedArticles/gelderlander.json",
			},
		},
		Police: PoliceConfig{
			Language:    "nl",
			PageSize:    25,
			WindowDays:  15,
			WindowDelay: Duration(1 * time.Second),
			Output:      "scrapedArticles/police.json",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults;
// a file that exists but cannot be parsed is an error. Environment
// overrides (PVO_STATE_DB, PVO_USER_AGENT) are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PVO_STATE_DB"); v != "" {
		c.StateDB = v
	}
	if v := os.Getenv("PVO_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
}

// FindFeed returns the feed config with the given name.
func (c *Config) FindFeed(name string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// EnabledFeeds returns the feeds that run in a full ingestion pass.
func (c *Config) EnabledFeeds() []FeedConfig {
	var enabled []FeedConfig
	for _, f := range c.Feeds {
		if f.IsEnabled() {
			enabled = append(enabled, f)
		}
	}
	return enabled
}
