// Package pipeline runs one sync: fetch every source, keep the relevant
// notices, normalize, dedup by ocid and geocode.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/metrics"
	"github.com/galois26/tender-sync/internal/model"
	"github.com/galois26/tender-sync/internal/normalize"
	"github.com/galois26/tender-sync/internal/source"
	"github.com/galois26/tender-sync/internal/store"
)

// Geocoder is satisfied by *geocode.Client.
type Geocoder interface {
	Lookup(ctx context.Context, postcode string) *model.LatLng
}

type Options struct {
	Concurrency int
	Geocoder    Geocoder   // nil disables geocoding
	Seen        store.Seen // nil disables the cross-run ledger
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type Orchestrator struct {
	sources     []source.Source
	cls         *classify.Classifier
	norm        *normalize.Engine
	geo         Geocoder
	seen        store.Seen
	concurrency int
	m           *metrics.Metrics
	log         *slog.Logger
	now         func() time.Time
}

func New(srcs []source.Source, cls *classify.Classifier, norm *normalize.Engine, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sources:     srcs,
		cls:         cls,
		norm:        norm,
		geo:         opts.Geocoder,
		seen:        opts.Seen,
		concurrency: opts.Concurrency,
		m:           opts.Metrics,
		log:         log,
		now:         time.Now,
	}
}

// SourceStats counts one source's notices through the run.
type SourceStats struct {
	Name     string
	Found    int
	Relevant int
	Emitted  int
	Err      error
	Took     time.Duration
}

type Result struct {
	RunID     string
	StartedAt time.Time
	Tenders   []model.Record
	Stats     []SourceStats // configured source order
	Skipped   int           // dropped by the seen ledger
}

type fetched struct {
	notices []model.Notice
	err     error
	took    time.Duration
}

// Run never fails: source errors are recorded in Stats and whatever was
// gathered before a cancellation is still processed.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	res := &Result{RunID: uuid.NewString(), StartedAt: o.now().UTC()}
	log := o.log.With("run_id", res.RunID)
	log.Info("sync started", "sources", len(o.sources))

	raw := make([]fetched, len(o.sources))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, src := range o.sources {
		g.Go(func() error {
			start := time.Now()
			ns, err := o.fetchOne(ctx, src)
			raw[i] = fetched{notices: ns, err: err, took: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	res.Stats = make([]SourceStats, len(o.sources))
	var records []model.Record
	pos := make(map[string]int)
	for i, src := range o.sources {
		name := src.Name()
		st := SourceStats{Name: name, Found: len(raw[i].notices), Err: raw[i].err, Took: raw[i].took}
		o.m.SourceDone(name, st.Took, st.Err)
		if st.Err != nil {
			log.Warn("source failed", "source", name, "err", st.Err, "partial", st.Found)
		}

		urler, _ := src.(source.NoticeURLer)
		for j := range raw[i].notices {
			n := &raw[i].notices[j]
			if !o.cls.Relevant(n) {
				continue
			}
			st.Relevant++
			rec := o.norm.Tender(n, name)
			if urler != nil {
				if u := urler.NoticeURL(n); u != "" {
					rec.SourceURL = u
				}
			}
			if k, dup := pos[rec.OCID]; dup {
				records[k] = rec
				continue
			}
			pos[rec.OCID] = len(records)
			records = append(records, rec)
		}
		res.Stats[i] = st
	}

	records, res.Skipped = o.filterSeen(ctx, log, records)
	o.m.SeenSkipped(res.Skipped)
	o.geocode(ctx, records)

	emitted := make(map[string]int, len(o.sources))
	for _, r := range records {
		emitted[r.Source]++
	}
	for i := range res.Stats {
		st := &res.Stats[i]
		st.Emitted = emitted[st.Name]
		o.m.Notices(st.Name, "found", st.Found)
		o.m.Notices(st.Name, "relevant", st.Relevant)
		o.m.Notices(st.Name, "emitted", st.Emitted)
		log.Info("source done", "source", st.Name, "found", st.Found, "relevant", st.Relevant,
			"emitted", st.Emitted, "took", st.Took.Truncate(time.Millisecond))
	}

	res.Tenders = records
	took := o.now().Sub(res.StartedAt)
	o.m.RunDone(took)
	log.Info("sync finished", "tenders", len(records), "skipped_seen", res.Skipped, "took", took.Truncate(time.Millisecond))
	return res
}

func (o *Orchestrator) fetchOne(ctx context.Context, src source.Source) (ns []model.Notice, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("source panicked", "source", src.Name(), "panic", r, "stack", string(debug.Stack()))
			ns, err = nil, fmt.Errorf("%s: panic: %v", src.Name(), r)
		}
	}()
	return src.Fetch(ctx)
}

// filterSeen drops records already delivered in an earlier run. A ledger
// failure keeps every record.
func (o *Orchestrator) filterSeen(ctx context.Context, log *slog.Logger, recs []model.Record) ([]model.Record, int) {
	if o.seen == nil || len(recs) == 0 {
		return recs, 0
	}
	keys := make([]string, len(recs))
	for i := range recs {
		keys[i] = recs[i].DedupKey()
	}
	fresh, err := o.seen.Filter(ctx, keys)
	if err != nil {
		log.Warn("seen ledger unavailable, keeping all records", "err", err)
		return recs, 0
	}
	keep := make(map[string]struct{}, len(fresh))
	for _, k := range fresh {
		keep[k] = struct{}{}
	}
	out := recs[:0]
	for _, r := range recs {
		if _, ok := keep[r.DedupKey()]; ok {
			out = append(out, r)
		}
	}
	return out, len(recs) - len(out)
}

func (o *Orchestrator) geocode(ctx context.Context, recs []model.Record) {
	if o.geo == nil {
		return
	}
	for i := range recs {
		if ctx.Err() != nil {
			return
		}
		if pc := recs[i].Postcode; pc != nil {
			recs[i].Geocode = o.geo.Lookup(ctx, *pc)
		}
	}
}

// MarkDelivered records the result's revisions in the seen ledger. Call it
// only after every sink accepted the batch.
func (o *Orchestrator) MarkDelivered(ctx context.Context, res *Result) error {
	if o.seen == nil || len(res.Tenders) == 0 {
		return nil
	}
	keys := make([]string, len(res.Tenders))
	for i := range res.Tenders {
		keys[i] = res.Tenders[i].DedupKey()
	}
	return o.seen.Mark(ctx, keys...)
}
