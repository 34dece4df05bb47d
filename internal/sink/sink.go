// Package sink delivers a run's canonical records to storage.
package sink

import (
	"context"
	"time"

	"github.com/galois26/tender-sync/internal/model"
)

// Sink is the interface all sinks implement. Push must be safe to repeat
// with the same batch: stores upsert by ocid.
type Sink interface {
	Name() string
	Push(ctx context.Context, b Batch) error
	Close() error
}

// Batch is one run's output.
type Batch struct {
	RunID   string
	At      time.Time
	Records []model.Record
	Sources []SourceCount // sources that completed without error
}

type SourceCount struct {
	Name  string
	Count int
}
