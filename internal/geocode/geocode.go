// Package geocode resolves UK postcodes to coordinates via a postcodes.io
// compatible API. Lookups never fail the caller: any problem yields nil.
package geocode

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/metrics"
	"github.com/galois26/tender-sync/internal/model"
	"github.com/galois26/tender-sync/internal/postcode"
	"github.com/galois26/tender-sync/internal/store"
)

// JSONGetter is the slice of fetch.Fetcher the client needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, v any) error
}

type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Client struct {
	base  string
	http  JSONGetter
	cache *store.LRU[*model.LatLng]
	m     *metrics.Metrics
	log   *slog.Logger
}

func New(baseURL string, g JSONGetter, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  g,
		cache: store.NewLRU[*model.LatLng](opts.CacheSize, opts.CacheTTL),
		m:     opts.Metrics,
		log:   log.With("component", "geocode"),
	}
}

type lookupResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
}

// Lookup tries the full postcode, then its outcode. Results, including misses,
// are memoised per cleaned postcode.
func (c *Client) Lookup(ctx context.Context, pc string) *model.LatLng {
	clean := postcode.Clean(pc)
	if clean == "" {
		return nil
	}
	if ll, ok := c.cache.Get(clean); ok {
		c.m.Geocode("cached")
		return ll
	}

	ll := c.get(ctx, "/postcodes/"+url.PathEscape(clean), true)
	result := "postcode"
	if ll == nil {
		if out := postcode.Outcode(pc); out != "" {
			ll = c.get(ctx, "/outcodes/"+url.PathEscape(out), false)
			result = "outcode"
		}
	}
	if ll == nil {
		result = "miss"
		c.log.Info("geocode miss", "postcode", clean)
	}
	c.m.Geocode(result)

	// A cancelled run must not poison the cache with misses.
	if ctx.Err() == nil {
		c.cache.Put(clean, ll)
	}
	return ll
}

// get decodes one lookup. The postcode endpoint reports status 200 in the body;
// the outcode endpoint is only judged by its result.
func (c *Client) get(ctx context.Context, path string, wantStatus bool) *model.LatLng {
	var resp lookupResponse
	if err := c.http.GetJSON(ctx, c.base+path, &resp); err != nil {
		c.log.Debug("lookup failed", "path", path, "err", err)
		c.m.Geocode("error")
		return nil
	}
	if wantStatus && resp.Status != 200 {
		c.log.Debug("lookup rejected", "path", path, "status", resp.Status)
		return nil
	}
	if resp.Result == nil || resp.Result.Latitude == nil || resp.Result.Longitude == nil {
		c.log.Debug("lookup empty", "path", path)
		return nil
	}
	return &model.LatLng{Lat: *resp.Result.Latitude, Lng: *resp.Result.Longitude}
}
