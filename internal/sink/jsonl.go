package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/galois26/tender-sync/internal/config"
)

// JSONL appends one canonical record per line.
type JSONL struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer // nil for stdout
	enc *json.Encoder
}

// NewJSONL opens cfg.Path for appending; "-" writes to stdout.
func NewJSONL(cfg config.JSONLConfig) (*JSONL, error) {
	if cfg.Path == "-" {
		return NewJSONLWriter(os.Stdout), nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl %s: %w", cfg.Path, err)
	}
	j := NewJSONLWriter(f)
	j.c = f
	return j, nil
}

func NewJSONLWriter(w io.Writer) *JSONL {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONL{w: w, enc: enc}
}

func (j *JSONL) Name() string { return "jsonl" }

func (j *JSONL) Push(ctx context.Context, b Batch) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range b.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.enc.Encode(&b.Records[i]); err != nil {
			return fmt.Errorf("write %s: %w", b.Records[i].OCID, err)
		}
	}
	return nil
}

func (j *JSONL) Close() error {
	if j.c == nil {
		return nil
	}
	return j.c.Close()
}
