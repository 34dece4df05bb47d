// Package source holds the notice adapters. Each adapter turns one
// publication format into model.Notice values.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
)

// Source fetches raw notices. A non-nil error may come with partial results,
// which callers should keep.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Notice, error)
}

// NoticeURLer is implemented by sources that know the public page of a notice.
type NoticeURLer interface {
	NoticeURL(n *model.Notice) string
}

// Getter is the slice of fetch.Fetcher the adapters need.
type Getter interface {
	Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error)
	GetJSON(ctx context.Context, rawURL string, v any) error
	SetRate(rawURL string, rps float64, burst int)
}

type Deps struct {
	HTTP       Getter
	Classifier *classify.Classifier // text pre-filter for listing and rss
	Logger     *slog.Logger
}

func NewFromConfig(c config.SourceConfig, d Deps) (Source, error) {
	if d.HTTP == nil {
		return nil, fmt.Errorf("%s: no http getter", c.Name)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if c.BaseURL != "" {
		d.HTTP.SetRate(c.BaseURL, c.RatePerSecond, c.Burst)
	}
	b := base{name: c.Name, noticeURL: c.NoticeURL, log: d.Logger.With("source", c.Name)}
	switch c.Type {
	case config.SourceOCDS:
		return &ocdsSource{base: b, http: d.HTTP, baseURL: c.BaseURL, cfg: c.OCDS}, nil
	case config.SourceCSVBulk:
		return &csvSource{base: b, http: d.HTTP, baseURL: c.BaseURL, days: c.CSV.Days}, nil
	case config.SourceHTMLListing:
		if d.Classifier == nil {
			return nil, fmt.Errorf("%s: html_listing needs a classifier", c.Name)
		}
		return &listingSource{base: b, http: d.HTTP, baseURL: c.BaseURL, keywords: c.Listing.Keywords, cls: d.Classifier}, nil
	case config.SourceForeignAPI:
		return &foreignSource{base: b, http: d.HTTP, baseURL: c.BaseURL, cfg: c.Foreign}, nil
	case config.SourceRSS:
		if d.Classifier == nil {
			return nil, fmt.Errorf("%s: rss needs a classifier", c.Name)
		}
		for _, f := range c.RSS.Feeds {
			d.HTTP.SetRate(f, c.RatePerSecond, c.Burst)
		}
		return &rssSource{base: b, http: d.HTTP, cfg: c.RSS, cls: d.Classifier}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

type base struct {
	name      string
	noticeURL string
	log       *slog.Logger
}

func (b base) Name() string { return b.name }

func (b base) NoticeURL(n *model.Notice) string {
	if b.noticeURL == "" || n.ID == "" {
		return ""
	}
	return strings.ReplaceAll(b.noticeURL, "{id}", url.PathEscape(n.ID))
}
