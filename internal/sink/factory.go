package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/galois26/tender-sync/internal/config"
)

var ErrNoSinks = errors.New("no sinks configured")

// FromConfig builds every configured sink. On error, sinks already opened
// are closed.
func FromConfig(ctx context.Context, cfg config.SinksConfig) ([]Sink, error) {
	var out []Sink
	fail := func(err error) ([]Sink, error) {
		_ = CloseAll(out)
		return nil, err
	}
	if strings.TrimSpace(cfg.Postgres.DSN) != "" {
		p, err := NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return fail(fmt.Errorf("init postgres sink: %w", err))
		}
		out = append(out, p)
	}
	if strings.TrimSpace(cfg.SQLite.Path) != "" {
		s, err := NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			return fail(fmt.Errorf("init sqlite sink: %w", err))
		}
		out = append(out, s)
	}
	if strings.TrimSpace(cfg.JSONL.Path) != "" {
		j, err := NewJSONL(cfg.JSONL)
		if err != nil {
			return fail(fmt.Errorf("init jsonl sink: %w", err))
		}
		out = append(out, j)
	}
	if strings.TrimSpace(cfg.Loki.URL) != "" {
		out = append(out, NewLoki(cfg.Loki))
	}
	if len(out) == 0 {
		return nil, ErrNoSinks
	}
	return out, nil
}

func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
