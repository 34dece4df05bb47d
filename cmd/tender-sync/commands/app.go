package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/fetch"
	"github.com/galois26/tender-sync/internal/geocode"
	"github.com/galois26/tender-sync/internal/logger"
	"github.com/galois26/tender-sync/internal/metrics"
	"github.com/galois26/tender-sync/internal/normalize"
	"github.com/galois26/tender-sync/internal/pipeline"
	"github.com/galois26/tender-sync/internal/sink"
	"github.com/galois26/tender-sync/internal/source"
	"github.com/galois26/tender-sync/internal/store"
)

// app is everything one process needs to run syncs.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	reg   *prometheus.Registry
	orch  *pipeline.Orchestrator
	seen  store.Seen
	sinks []sink.Sink
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log), nil
}

func loadClassifier(cfg config.ClassifierConfig) (*classify.Classifier, error) {
	v := classify.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		var err error
		if v, err = classify.LoadVocabulary(cfg.VocabularyPath); err != nil {
			return nil, err
		}
	}
	return classify.New(v), nil
}

// newApp wires sources, the pipeline and, unless dryRun, the sinks.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, dryRun bool) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, reg: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.reg)

	cls, err := loadClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	norm, err := normalize.New(cfg.Normalize)
	if err != nil {
		return nil, err
	}

	f := fetch.New(fetch.Options{
		Timeout:         cfg.HTTP.Timeout,
		DialTimeout:     cfg.HTTP.DialTimeout,
		MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		UserAgent:       cfg.HTTP.UserAgent,
		MaxRetries:      cfg.HTTP.MaxRetries,
		Backoff:         cfg.HTTP.Backoff,
		MaxBackoff:      cfg.HTTP.MaxBackoff,
		Metrics:         m,
		Logger:          log,
	})

	var srcs []source.Source
	for _, sc := range cfg.Sources {
		if !sc.IsEnabled() {
			log.Info("source disabled", "source", sc.Name)
			continue
		}
		s, err := source.NewFromConfig(sc, source.Deps{HTTP: f, Classifier: cls, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("build source %q: %w", sc.Name, err)
		}
		srcs = append(srcs, s)
		log.Info("configured source", "source", s.Name(), "type", sc.Type)
	}

	opts := pipeline.Options{Concurrency: cfg.Sync.Concurrency, Metrics: m, Logger: log}
	if !cfg.Geocode.Disable {
		f.SetRate(cfg.Geocode.BaseURL, cfg.Geocode.RatePerSecond, cfg.Geocode.Burst)
		opts.Geocoder = geocode.New(cfg.Geocode.BaseURL, f, geocode.Options{
			CacheSize: cfg.Geocode.CacheSize,
			CacheTTL:  cfg.Geocode.CacheTTL,
			Metrics:   m,
			Logger:    log,
		})
	}

	if a.seen, err = newSeen(ctx, cfg); err != nil {
		return nil, err
	}
	opts.Seen = a.seen
	a.orch = pipeline.New(srcs, cls, norm, opts)

	if !dryRun {
		if a.sinks, err = sink.FromConfig(ctx, cfg.Sinks); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newSeen(ctx context.Context, cfg *config.Config) (store.Seen, error) {
	switch cfg.Dedup.Mode {
	case "memory":
		return store.NewMemorySeen(cfg.Dedup.MaxKeys, cfg.Dedup.TTL), nil
	case "redis":
		r := store.NewRedisSeen(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix, cfg.Dedup.TTL)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return r, nil
	default:
		return nil, nil
	}
}

// runOnce performs one sync and delivers it. Only a failed delivery is an error.
func (a *app) runOnce(ctx context.Context) (*pipeline.Result, error) {
	if a.cfg.Sync.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
		defer cancel()
	}
	res := a.orch.Run(ctx)
	if len(a.sinks) == 0 {
		return res, nil
	}
	// delivery is not bound to the run deadline
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	return res, a.orch.Deliver(dctx, res, a.sinks)
}

func (a *app) Close() {
	var errs []error
	if err := sink.CloseAll(a.sinks); err != nil {
		errs = append(errs, err)
	}
	if a.seen != nil {
		if err := a.seen.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close", "err", err)
	}
}
