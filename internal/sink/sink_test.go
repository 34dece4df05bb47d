package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
)

var at = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func record(ocid, title string) model.Record {
	return model.Record{
		OCID:        ocid,
		Source:      "find_a_tender",
		SourceURL:   "https://www.find-tender.service.gov.uk/Notice/" + ocid,
		Title:       title,
		Description: "Full rewire",
		ClientName:  "Leeds City Council",
		CPVCodes:    []string{"45311000"},
		Categories:  []model.Category{model.CategoryElectrical, model.CategoryRewire},
		Sector:      model.SectorLocalAuthority,
		ValueLow:    ptr(1250000.0),
		ValueHigh:   ptr(1250000.0),
		ValueExact:  ptr(1250000.0),
		Currency:    "GBP",
		Postcode:    ptr("LS1 1UR"),
		Region:      model.RegionYorkshire,
		Geocode:     &model.LatLng{Lat: 53.8, Lng: -1.55},
		PublishedAt: "2024-03-01T09:00:00Z",
		Deadline:    ptr("2024-04-01T12:00:00Z"),
		Documents:   []model.TenderDocument{{Name: "Spec", URL: "https://x.test/spec.pdf", Type: "application/pdf"}},
		Complexity:  "complex",
		Status:      "live",
		FetchedAt:   at,
		Raw:         model.Notice{OCID: ocid, ID: ocid, Date: "2024-03-01T09:00:00Z"},
	}
}

func batch(recs ...model.Record) Batch {
	return Batch{
		RunID:   "run-1",
		At:      at,
		Records: recs,
		Sources: []SourceCount{{Name: "find_a_tender", Count: len(recs)}},
	}
}

func TestUpsertSQL(t *testing.T) {
	stmts, err := upsertTenders(NewPostgresWith(nil).sb, []model.Record{record("a", "A"), record("b", "B")}, pgList, "now()")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	q, args, err := stmts[0].ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO tenders (ocid,source,"))
	assert.Contains(t, q, "ON CONFLICT (ocid) DO UPDATE SET source = EXCLUDED.source")
	assert.Contains(t, q, "raw_data = EXCLUDED.raw_data, updated_at = now()")
	assert.NotContains(t, q, "ocid = EXCLUDED.ocid")
	assert.Contains(t, q, "$56")
	assert.Len(t, args, 2*len(tenderColumns))
	assert.Equal(t, []string{"45311000"}, args[6])
	assert.Equal(t, []string{"electrical", "rewire"}, args[7])
}

func TestUpsertSQL_Chunks(t *testing.T) {
	recs := make([]model.Record, chunkSize+1)
	for i := range recs {
		recs[i] = record("x", "X")
	}
	stmts, err := upsertTenders(NewPostgresWith(nil).sb, recs, pgList, "now()")
	require.NoError(t, err)
	assert.Len(t, stmts, 2)
}

func TestUpsertSources(t *testing.T) {
	ins, ok := upsertSources(NewPostgresWith(nil).sb, batch())
	require.True(t, ok)
	q, args, err := ins.ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "INSERT INTO tender_sources (name,last_sync_at,last_sync_count,run_id)")
	assert.Contains(t, q, "ON CONFLICT (name) DO UPDATE SET last_sync_at = EXCLUDED.last_sync_at")
	assert.Equal(t, []any{"find_a_tender", at, 0, "run-1"}, args)

	_, ok = upsertSources(NewPostgresWith(nil).sb, Batch{})
	assert.False(t, ok)
}

func TestJSONL_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenders.jsonl")
	j, err := NewJSONL(config.JSONLConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, j.Push(context.Background(), batch(record("a", "A & B"), record("b", "B"))))
	require.NoError(t, j.Push(context.Background(), batch(record("c", "C"))))
	require.NoError(t, j.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"title":"A & B"`)

	var got model.Record
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &got))
	assert.Equal(t, "c", got.OCID)
	assert.Equal(t, model.RegionYorkshire, got.Region)
	assert.Equal(t, "LS1 1UR", *got.Postcode)
}

func TestJSONL_Writer(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONLWriter(&buf)
	require.NoError(t, j.Push(context.Background(), batch()))
	assert.Empty(t, buf.String())
	assert.NoError(t, j.Close())
}

func TestLoki_Push(t *testing.T) {
	var got struct {
		Streams []lokiStream `json:"streams"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, "tenant-a", r.Header.Get("X-Scope-OrgID"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	other := record("b", "B")
	other.Region = model.RegionScotland
	l := NewLoki(config.LokiConfig{URL: srv.URL + "/", TenantID: "tenant-a", Job: "tender-sync"})
	require.NoError(t, l.Push(context.Background(), batch(record("a", "A"), other, record("c", "C"))))

	require.Len(t, got.Streams, 2)
	assert.Equal(t, map[string]string{
		"job": "tender-sync", "source": "find_a_tender", "region": "yorkshire", "sector": "local_authority",
	}, got.Streams[0].Stream)
	assert.Len(t, got.Streams[0].Values, 2)
	assert.Equal(t, "scotland", got.Streams[1].Stream["region"])
	assert.Equal(t, "1709366400000000000", got.Streams[0].Values[0][0])
	assert.Contains(t, got.Streams[0].Values[0][1], `"run_id":"run-1"`)
}

func TestLoki_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entry too far behind", http.StatusBadRequest)
	}))
	defer srv.Close()

	l := NewLoki(config.LokiConfig{URL: srv.URL})
	assert.NoError(t, l.Push(context.Background(), batch()), "empty batch is not sent")
	err := l.Push(context.Background(), batch(record("a", "A")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry too far behind")
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(context.Background(), config.SinksConfig{})
	assert.ErrorIs(t, err, ErrNoSinks)

	sinks, err := FromConfig(context.Background(), config.SinksConfig{
		JSONL: config.JSONLConfig{Path: filepath.Join(t.TempDir(), "out.jsonl")},
		Loki:  config.LokiConfig{URL: "http://loki.invalid"},
	})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "jsonl", sinks[0].Name())
	assert.Equal(t, "loki", sinks[1].Name())
	assert.NoError(t, CloseAll(sinks))

	_, err = FromConfig(context.Background(), config.SinksConfig{
		JSONL: config.JSONLConfig{Path: filepath.Join(t.TempDir(), "missing", "out.jsonl")},
	})
	assert.Error(t, err)
}
