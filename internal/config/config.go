package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"` // text | json
}

type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout"            env:"HTTP_TIMEOUT"            env-default:"20s"`
	DialTimeout     time.Duration `yaml:"dial_timeout"       env:"HTTP_DIAL_TIMEOUT"       env-default:"5s"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host" env:"HTTP_MAX_CONNS_PER_HOST" env-default:"4"`
	UserAgent       string        `yaml:"user_agent"         env:"HTTP_USER_AGENT"         env-default:"tender-sync/1.0 (+https://github.com/galois26/tender-sync)"`
	MaxRetries      int           `yaml:"max_retries"        env:"HTTP_MAX_RETRIES"        env-default:"3"`
	Backoff         time.Duration `yaml:"backoff"            env:"HTTP_BACKOFF"            env-default:"500ms"`
	MaxBackoff      time.Duration `yaml:"max_backoff"        env:"HTTP_MAX_BACKOFF"        env-default:"5s"`
}

type SyncConfig struct {
	Concurrency int           `yaml:"concurrency" env:"SYNC_CONCURRENCY" env-default:"2"`
	Interval    time.Duration `yaml:"interval"    env:"SYNC_INTERVAL"    env-default:"6h"`  // serve only
	RunTimeout  time.Duration `yaml:"run_timeout" env:"SYNC_RUN_TIMEOUT" env-default:"15m"` // per run
}

type OCDSConfig struct {
	Limit    int           `yaml:"limit"`     // page size, default 100
	Window   time.Duration `yaml:"window"`    // updatedFrom = now - window, default 720h
	Stages   string        `yaml:"stages"`    // default "tender"
	MaxPages int           `yaml:"max_pages"` // default 20
}

type CSVConfig struct {
	Days int `yaml:"days"` // default 7
}

type ListingConfig struct {
	Keywords []string `yaml:"keywords"` // already URL-encoded
}

type ForeignConfig struct {
	CountryCode string `yaml:"country_code"` // default GBR
	CPVCode     string `yaml:"cpv_code"`     // default 45310000
	NoticeType  string `yaml:"notice_type"`  // default Contract
	PageSize    int    `yaml:"page_size"`    // default 100
}

type RSSConfig struct {
	Feeds    []string `yaml:"feeds"`     // may contain {keyword}
	Keywords []string `yaml:"keywords"`  // expanded into {keyword}
	IDPrefix string   `yaml:"id_prefix"` // e.g. PCS
	Buyer    string   `yaml:"buyer"`     // fallback buyer name
	Region   string   `yaml:"region"`    // fixed address region, e.g. Scotland
}

type SourceConfig struct {
	Type    string `yaml:"type"` // ocds | csv_bulk | html_listing | foreign_api | rss
	Name    string `yaml:"name"` // defaults per type
	BaseURL string `yaml:"base_url"`
	Enabled *bool  `yaml:"enabled"` // nil means enabled

	// NoticeURL is the public page of a notice; {id} is replaced by the notice id.
	NoticeURL string `yaml:"notice_url"`

	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	OCDS    OCDSConfig    `yaml:"ocds"`
	CSV     CSVConfig     `yaml:"csv"`
	Listing ListingConfig `yaml:"listing"`
	Foreign ForeignConfig `yaml:"foreign"`
	RSS     RSSConfig     `yaml:"rss"`
}

func (s SourceConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

type ClassifierConfig struct {
	VocabularyPath string `yaml:"vocabulary_path" env:"CLASSIFIER_VOCABULARY_PATH"`
}

// CategoryRule adds tag when any of the substrings appears in the lowercased
// title or description.
type CategoryRule struct {
	Tag  string   `yaml:"tag"`
	When []string `yaml:"when"`
}

type NormalizeConfig struct {
	ExtraCategories []CategoryRule    `yaml:"extra_categories"`
	RegionOverrides map[string]string `yaml:"region_overrides"` // postcode area -> region
}

type GeocodeConfig struct {
	Disable       bool          `yaml:"disable"         env:"GEOCODE_DISABLE"`
	BaseURL       string        `yaml:"base_url"        env:"GEOCODE_BASE_URL"        env-default:"https://api.postcodes.io"`
	RatePerSecond float64       `yaml:"rate_per_second" env:"GEOCODE_RATE_PER_SECOND" env-default:"10"`
	Burst         int           `yaml:"burst"           env:"GEOCODE_BURST"           env-default:"5"`
	CacheTTL      time.Duration `yaml:"cache_ttl"       env:"GEOCODE_CACHE_TTL"       env-default:"24h"`
	CacheSize     int           `yaml:"cache_size"      env:"GEOCODE_CACHE_SIZE"      env-default:"5000"`
}

type DedupConfig struct {
	Mode    string        `yaml:"mode"     env:"DEDUP_MODE"     env-default:"off"` // off | memory | redis
	TTL     time.Duration `yaml:"ttl"      env:"DEDUP_TTL"      env-default:"168h"`
	MaxKeys int           `yaml:"max_keys" env:"DEDUP_MAX_KEYS" env-default:"100000"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"       env:"REDIS_ADDR"       env-default:"localhost:6379"`
	Password  string `yaml:"password"   env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db"         env:"REDIS_DB"         env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"tender-sync:seen:"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"       env:"POSTGRES_DSN"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"5"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

type JSONLConfig struct {
	Path string `yaml:"path" env:"JSONL_PATH"` // "-" for stdout
}

type LokiConfig struct {
	URL      string        `yaml:"url"       env:"LOKI_URL"` // http://loki:3100
	TenantID string        `yaml:"tenant_id" env:"LOKI_TENANT_ID"`
	Job      string        `yaml:"job"       env:"LOKI_JOB"     env-default:"tender-sync"`
	Timeout  time.Duration `yaml:"timeout"   env:"LOKI_TIMEOUT" env-default:"10s"`
}

type SinksConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	JSONL    JSONLConfig    `yaml:"jsonl"`
	Loki     LokiConfig     `yaml:"loki"`
}

type MetricsConfig struct {
	Addr         string        `yaml:"addr"          env:"METRICS_ADDR"          env-default:":9108"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"METRICS_READ_TIMEOUT"  env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"METRICS_WRITE_TIMEOUT" env-default:"5s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"METRICS_IDLE_TIMEOUT"  env-default:"60s"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Sync       SyncConfig       `yaml:"sync"`
	Sources    []SourceConfig   `yaml:"sources"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Redis      RedisConfig      `yaml:"redis"`
	Sinks      SinksConfig      `yaml:"sinks"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path loads from the
// environment only, with the built-in source list.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &c); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
	for i := range c.Sources {
		applySourceDefaults(&c.Sources[i])
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &c, nil
}

// DefaultSources is the production source set, in execution order.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Type: SourceOCDS},
		{Type: SourceCSVBulk},
		{Type: SourceHTMLListing},
		{Type: SourceForeignAPI},
	}
}

const (
	SourceOCDS        = "ocds"
	SourceCSVBulk     = "csv_bulk"
	SourceHTMLListing = "html_listing"
	SourceForeignAPI  = "foreign_api"
	SourceRSS         = "rss"
)

func applySourceDefaults(s *SourceConfig) {
	switch s.Type {
	case SourceOCDS:
		if s.Name == "" {
			s.Name = "find_a_tender"
		}
		if s.BaseURL == "" {
			s.BaseURL = "https://www.find-tender.service.gov.uk/api/1.0"
		}
		if s.NoticeURL == "" {
			s.NoticeURL = "https://www.find-tender.service.gov.uk/Notice/{id}"
		}
		if s.RatePerSecond == 0 {
			s.RatePerSecond = 2
		}
		if s.OCDS.Limit <= 0 {
			s.OCDS.Limit = 100
		}
		if s.OCDS.Window <= 0 {
			s.OCDS.Window = 720 * time.Hour
		}
		if s.OCDS.Stages == "" {
			s.OCDS.Stages = "tender"
		}
		if s.OCDS.MaxPages <= 0 {
			s.OCDS.MaxPages = 20
		}
	case SourceCSVBulk:
		if s.Name == "" {
			s.Name = "contracts_finder"
		}
		if s.BaseURL == "" {
			s.BaseURL = "https://www.contractsfinder.service.gov.uk/harvester/Notices"
		}
		if s.NoticeURL == "" {
			s.NoticeURL = "https://www.contractsfinder.service.gov.uk/Notice/{id}"
		}
		if s.RatePerSecond == 0 {
			s.RatePerSecond = 5
		}
		if s.CSV.Days <= 0 {
			s.CSV.Days = 7
		}
	case SourceHTMLListing:
		if s.Name == "" {
			s.Name = "construction_index"
		}
		if s.BaseURL == "" {
			s.BaseURL = "https://www.theconstructionindex.co.uk"
		}
		if s.NoticeURL == "" {
			s.NoticeURL = "https://www.theconstructionindex.co.uk/tender/{id}"
		}
		if s.RatePerSecond == 0 {
			s.RatePerSecond = 1
		}
		if len(s.Listing.Keywords) == 0 {
			s.Listing.Keywords = []string{"electrical", "fire alarm", "emergency lighting", "M&E", "rewiring"}
		}
	case SourceForeignAPI:
		if s.Name == "" {
			s.Name = "ted_europa"
		}
		if s.BaseURL == "" {
			s.BaseURL = "https://ted.europa.eu/api/v3.0"
		}
		if s.NoticeURL == "" {
			s.NoticeURL = "https://ted.europa.eu/notice/{id}"
		}
		if s.RatePerSecond == 0 {
			s.RatePerSecond = 1
		}
		if s.Foreign.CountryCode == "" {
			s.Foreign.CountryCode = "GBR"
		}
		if s.Foreign.CPVCode == "" {
			s.Foreign.CPVCode = "45310000"
		}
		if s.Foreign.NoticeType == "" {
			s.Foreign.NoticeType = "Contract"
		}
		if s.Foreign.PageSize <= 0 {
			s.Foreign.PageSize = 100
		}
	case SourceRSS:
		if s.RatePerSecond == 0 {
			s.RatePerSecond = 1
		}
		if s.RSS.IDPrefix == "" {
			s.RSS.IDPrefix = "RSS"
		}
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
}
