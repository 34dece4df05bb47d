package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/fetch"
	"github.com/galois26/tender-sync/internal/model"
)

type lokiSink struct {
	cfg    config.LokiConfig
	client *http.Client
}

// NewLoki pushes one log line per tender, streamed by source, region and sector.
func NewLoki(cfg config.LokiConfig) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	return &lokiSink{cfg: cfg, client: fetch.NewHTTPClient(fetch.ClientOptions{Timeout: to})}
}

func (l *lokiSink) Name() string { return "loki" }

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiLine struct {
	OCID       string           `json:"ocid"`
	Title      string           `json:"title"`
	Client     string           `json:"client_name"`
	URL        string           `json:"source_url,omitempty"`
	Categories []model.Category `json:"categories"`
	Postcode   *string          `json:"postcode,omitempty"`
	ValueLow   *float64         `json:"value_low,omitempty"`
	ValueHigh  *float64         `json:"value_high,omitempty"`
	Deadline   *string          `json:"deadline,omitempty"`
	Published  string           `json:"published_at"`
	RunID      string           `json:"run_id"`
}

func (l *lokiSink) Push(ctx context.Context, b Batch) error {
	if len(b.Records) == 0 {
		return nil
	}

	streams := make(map[string]*lokiStream)
	var order []string
	for i := range b.Records {
		r := &b.Records[i]
		lbls := map[string]string{
			"job":    l.cfg.Job,
			"source": r.Source,
			"region": string(r.Region),
			"sector": string(r.Sector),
		}
		key := r.Source + "|" + string(r.Region) + "|" + string(r.Sector)
		s, ok := streams[key]
		if !ok {
			s = &lokiStream{Stream: lbls}
			streams[key] = s
			order = append(order, key)
		}
		line, err := json.Marshal(lokiLine{
			OCID: r.OCID, Title: r.Title, Client: r.ClientName, URL: r.SourceURL,
			Categories: r.Categories, Postcode: r.Postcode,
			ValueLow: r.ValueLow, ValueHigh: r.ValueHigh, Deadline: r.Deadline,
			Published: r.PublishedAt, RunID: b.RunID,
		})
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.OCID, err)
		}
		// Loki expects ns timestamp as a decimal string
		ts := strconv.FormatInt(r.FetchedAt.UnixNano(), 10)
		s.Values = append(s.Values, [2]string{ts, string(line)})
	}

	payload := struct {
		Streams []lokiStream `json:"streams"`
	}{}
	for _, k := range order {
		payload.Streams = append(payload.Streams, *streams[k])
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := strings.TrimRight(l.cfg.URL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("loki push failed http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (l *lokiSink) Close() error { return nil }
