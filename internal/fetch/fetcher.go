package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/galois26/tender-sync/internal/metrics"
)

const maxBody = 64 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.URL, e.Code) }

// IsNotFound reports whether err carries a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type Options struct {
	Timeout         time.Duration
	DialTimeout     time.Duration
	MaxConnsPerHost int
	UserAgent       string
	MaxRetries      int
	Backoff         time.Duration
	MaxBackoff      time.Duration
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// Fetcher is safe for concurrent use by all sources and the geocoder. Hosts
// without an explicit rate are unlimited.
type Fetcher struct {
	client *http.Client
	opts   Options
	log    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client: NewHTTPClient(ClientOptions{
			Timeout:         opts.Timeout,
			DialTimeout:     opts.DialTimeout,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		}),
		opts:     opts,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetRate installs a token bucket for the host of rawURL. rps <= 0 removes the limit.
// The first call for a host wins so sources sharing a host share one bucket.
func (f *Fetcher) SetRate(rawURL string, rps float64, burst int) {
	host := hostOf(rawURL)
	if host == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.limiters[host]; ok {
		return
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	f.limiters[host] = rate.NewLimiter(lim, burst)
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limiters[host]
}

// Get returns the body of a 2xx response. 5xx, 429 and transport errors are
// retried; other statuses fail at once with a *StatusError.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	host := hostOf(rawURL)
	var body []byte
	err := Retry(ctx, f.opts.MaxRetries, f.opts.Backoff, f.opts.MaxBackoff, func() error {
		if lim := f.limiter(host); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return Permanent(err)
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := f.client.Do(req)
		if err != nil {
			f.opts.Metrics.HTTPRequest(host, 0)
			if ctx.Err() != nil {
				return Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		f.opts.Metrics.HTTPRequest(host, resp.StatusCode)

		if resp.StatusCode/100 != 2 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			se := &StatusError{Code: resp.StatusCode, URL: rawURL}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				f.log.Debug("retryable status", "url", rawURL, "status", resp.StatusCode)
				return se
			}
			return Permanent(se)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return fmt.Errorf("read %s: %w", rawURL, err)
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the body into v.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	b, err := f.Get(ctx, rawURL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
