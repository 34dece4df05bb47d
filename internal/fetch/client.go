// Package fetch is the shared outbound HTTP layer: pooled client, retry with
// backoff, and a token bucket per host.
package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// ClientOptions shapes the pooled transport. Zero values take the defaults.
type ClientOptions struct {
	Timeout         time.Duration // whole request, body included
	DialTimeout     time.Duration
	MaxConnsPerHost int // 0 is unlimited
}

// NewHTTPClient builds a client whose idle pool is sized to MaxConnsPerHost,
// since most traffic goes to a handful of procurement portals.
func NewHTTPClient(o ClientOptions) *http.Client {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	idle := o.MaxConnsPerHost
	if idle <= 0 {
		idle = http.DefaultMaxIdleConnsPerHost
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: o.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: idle,
		MaxConnsPerHost:     o.MaxConnsPerHost,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: o.DialTimeout,
	}
	return &http.Client{Timeout: o.Timeout, Transport: tr}
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry runs fn up to attempts times with doubling backoff capped at max.
// It stops early on context cancellation or a Permanent error, which is
// returned unwrapped.
func Retry(ctx context.Context, attempts int, initial, max time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < max {
				d *= 2
				if d > max {
					d = max
				}
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		var p permanentError
		if errors.As(err, &p) {
			return p.err
		}
	}
	return err
}
