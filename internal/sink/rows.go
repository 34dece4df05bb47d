package sink

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/galois26/tender-sync/internal/model"
)

// chunkSize keeps a multi-row insert under the 65535 bind parameter limit.
const chunkSize = 500

var tenderColumns = []string{
	"ocid", "source", "source_url", "title", "description", "client_name",
	"cpv_codes", "categories", "sector",
	"value_low", "value_high", "value_exact", "currency",
	"location_text", "postcode", "region", "lat", "lng",
	"published_at", "deadline",
	"contact_name", "contact_email", "contact_phone",
	"documents", "estimated_complexity", "status", "fetched_at", "raw_data",
}

func upsertSuffix(key string, cols []string, extra ...string) string {
	set := make([]string, 0, len(cols)+len(extra))
	for _, c := range cols {
		if c != key {
			set = append(set, c+" = EXCLUDED."+c)
		}
	}
	set = append(set, extra...)
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(set, ", "))
}

// listEncoder renders a string slice for the target column type.
type listEncoder func([]string) (any, error)

func tenderValues(r *model.Record, list listEncoder) ([]any, error) {
	cats := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		cats[i] = string(c)
	}
	cpv, err := list(r.CPVCodes)
	if err != nil {
		return nil, err
	}
	catv, err := list(cats)
	if err != nil {
		return nil, err
	}
	docs, err := json.Marshal(r.Documents)
	if err != nil {
		return nil, fmt.Errorf("documents %s: %w", r.OCID, err)
	}
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return nil, fmt.Errorf("raw_data %s: %w", r.OCID, err)
	}
	var lat, lng *float64
	if r.Geocode != nil {
		lat, lng = &r.Geocode.Lat, &r.Geocode.Lng
	}
	return []any{
		r.OCID, r.Source, nullable(r.SourceURL), r.Title, r.Description, r.ClientName,
		cpv, catv, string(r.Sector),
		r.ValueLow, r.ValueHigh, r.ValueExact, r.Currency,
		r.LocationText, r.Postcode, string(r.Region), lat, lng,
		nullable(r.PublishedAt), r.Deadline,
		r.ContactName, r.ContactEmail, r.ContactPhone,
		string(docs), r.Complexity, r.Status, r.FetchedAt, string(raw),
	}, nil
}

// upsertTenders builds one INSERT ... ON CONFLICT per chunk of records.
func upsertTenders(b sq.StatementBuilderType, recs []model.Record, list listEncoder, now string) ([]sq.InsertBuilder, error) {
	var out []sq.InsertBuilder
	for start := 0; start < len(recs); start += chunkSize {
		end := min(start+chunkSize, len(recs))
		ins := b.Insert("tenders").Columns(tenderColumns...)
		for i := start; i < end; i++ {
			vals, err := tenderValues(&recs[i], list)
			if err != nil {
				return nil, err
			}
			ins = ins.Values(vals...)
		}
		out = append(out, ins.Suffix(upsertSuffix("ocid", tenderColumns, "updated_at = "+now)))
	}
	return out, nil
}

var sourceColumns = []string{"name", "last_sync_at", "last_sync_count", "run_id"}

func upsertSources(b sq.StatementBuilderType, batch Batch) (sq.InsertBuilder, bool) {
	if len(batch.Sources) == 0 {
		return sq.InsertBuilder{}, false
	}
	ins := b.Insert("tender_sources").Columns(sourceColumns...)
	for _, s := range batch.Sources {
		ins = ins.Values(s.Name, batch.At, s.Count, batch.RunID)
	}
	return ins.Suffix(upsertSuffix("name", sourceColumns)), true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
