package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/galois26/tender-sync/internal/sink"
)

// Batch converts a run result into what sinks store. Failed sources are left
// out of the sync bookkeeping.
func (r *Result) Batch() sink.Batch {
	b := sink.Batch{RunID: r.RunID, At: r.StartedAt, Records: r.Tenders}
	for _, st := range r.Stats {
		if st.Err == nil {
			b.Sources = append(b.Sources, sink.SourceCount{Name: st.Name, Count: st.Emitted})
		}
	}
	return b
}

// Deliver fans the result out to every sink. Only when all sinks accept it
// are the records marked in the seen ledger; a failed push is retried by the
// next run.
func (o *Orchestrator) Deliver(ctx context.Context, res *Result, sinks []sink.Sink) error {
	b := res.Batch()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sk := range sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sk.Push(ctx, b)
			o.m.SinkWrite(sk.Name(), len(b.Records), err)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("push %s: %w", sk.Name(), err))
				mu.Unlock()
				return
			}
			o.log.Info("pushed", "run_id", res.RunID, "sink", sk.Name(), "tenders", len(b.Records))
		}()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := o.MarkDelivered(ctx, res); err != nil {
		o.log.Warn("seen ledger update failed", "run_id", res.RunID, "err", err)
	}
	return nil
}
