package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSources        = errors.New("no enabled sources")
	ErrUnknownSource    = errors.New("unknown source type")
	ErrDuplicateSource  = errors.New("duplicate source name")
	ErrRSSWithoutFeeds  = errors.New("rss source needs at least one feed")
	ErrDedupMode        = errors.New("dedup.mode must be off, memory or redis")
	ErrConcurrency      = errors.New("sync.concurrency must be >= 1")
	ErrInvalidRate      = errors.New("rate_per_second must be >= 0")
	ErrEmptyCategoryTag = errors.New("normalize.extra_categories: empty tag or when list")
	ErrLogFormat        = errors.New("log.format must be text or json")
)

// Validate performs rule checks on a loaded configuration. Load calls it.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w (got %q)", ErrLogFormat, c.Log.Format)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("%w (got %d)", ErrConcurrency, c.Sync.Concurrency)
	}

	enabled := 0
	names := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		switch s.Type {
		case SourceOCDS, SourceCSVBulk, SourceHTMLListing, SourceForeignAPI:
		case SourceRSS:
			if len(s.RSS.Feeds) == 0 {
				return fmt.Errorf("sources[%d] %s: %w", i, s.Name, ErrRSSWithoutFeeds)
			}
		default:
			return fmt.Errorf("sources[%d]: %w %q", i, ErrUnknownSource, s.Type)
		}
		if s.RatePerSecond < 0 {
			return fmt.Errorf("sources[%d] %s: %w", i, s.Name, ErrInvalidRate)
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("sources[%d]: %w %q", i, ErrDuplicateSource, s.Name)
		}
		names[s.Name] = struct{}{}
		if s.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoSources
	}

	for _, r := range c.Normalize.ExtraCategories {
		if strings.TrimSpace(r.Tag) == "" || len(r.When) == 0 {
			return ErrEmptyCategoryTag
		}
	}

	switch c.Dedup.Mode {
	case "", "off", "memory", "redis":
	default:
		return fmt.Errorf("%w (got %q)", ErrDedupMode, c.Dedup.Mode)
	}
	if c.Geocode.RatePerSecond < 0 {
		return fmt.Errorf("geocode: %w", ErrInvalidRate)
	}
	return nil
}
