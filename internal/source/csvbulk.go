package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/galois26/tender-sync/internal/csvline"
	"github.com/galois26/tender-sync/internal/fetch"
	"github.com/galois26/tender-sync/internal/model"
)

// Column alternates, nested export path first.
var (
	colTitle     = []string{"releases/0/tender/title", "title"}
	colDesc      = []string{"releases/0/tender/description", "description"}
	colCPV       = []string{"releases/0/tender/classification/id", "cpv"}
	colCPVDesc   = []string{"releases/0/tender/classification/description"}
	colValue     = []string{"releases/0/tender/value/amount", "value"}
	colOrg       = []string{"releases/0/parties/0/name", "organisation"}
	colPostcode  = []string{"releases/0/parties/0/address/postalCode", "postcode"}
	colLocality  = []string{"releases/0/parties/0/address/locality", "locality"}
	colEmail     = []string{"releases/0/parties/0/contactPoint/email", "email"}
	colPublished = []string{"publishedDate", "published"}
	colDeadline  = []string{"releases/0/tender/tenderPeriod/endDate", "deadline"}
	colOCID      = []string{"releases/0/ocid", "ocid"}
)

// csvSource reads one daily bulk CSV per day, newest first.
type csvSource struct {
	base
	http    Getter
	baseURL string
	days    int
	now     func() time.Time
}

// Fetch never fails as a whole: a missing or broken day is logged and skipped.
func (s *csvSource) Fetch(ctx context.Context) ([]model.Notice, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	today := now().UTC()
	var all []model.Notice
	for d := 0; d < s.days; d++ {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		day := today.AddDate(0, 0, -d)
		u := fmt.Sprintf("%s/Data/CSV/%s", strings.TrimRight(s.baseURL, "/"), day.Format("2006/01/02"))
		body, err := s.http.Get(ctx, u, nil)
		if err != nil {
			if fetch.IsNotFound(err) {
				s.log.Info("no export for day", "day", day.Format("2006-01-02"))
			} else {
				s.log.Warn("day fetch failed", "day", day.Format("2006-01-02"), "err", err)
			}
			continue
		}
		rows := parseBulkCSV(decodeCSV(body), day, today, s.log.With("day", day.Format("2006-01-02")))
		s.log.Debug("day parsed", "day", day.Format("2006-01-02"), "notices", len(rows))
		all = append(all, rows...)
	}
	return all, nil
}

// decodeCSV treats the body as UTF-8 unless it is not valid UTF-8, in which
// case it is decoded as Windows-1252.
func decodeCSV(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func parseBulkCSV(doc string, day, now time.Time, log *slog.Logger) []model.Notice {
	lines := csvline.Lines(doc)
	if len(lines) < 2 {
		return nil
	}
	h := csvline.NewHeader(csvline.Split(lines[0]))
	if !h.Has(colTitle...) && !h.Has(colDesc...) {
		log.Warn("export has no title or description column", "header", lines[0])
		return nil
	}
	out := make([]model.Notice, 0, len(lines)-1)

	for i, line := range lines[1:] {
		row := csvline.Split(line)
		title := h.Get(row, colTitle...)
		desc := h.Get(row, colDesc...)
		if title == "" && desc == "" {
			continue
		}
		if title == "" {
			title = truncate(desc, 200)
		}

		ocid := h.Get(row, colOCID...)
		if ocid == "" {
			ocid = "CF-" + day.Format("20060102") + "-" + strconv.Itoa(i+1)
		}
		org := h.Get(row, colOrg...)
		if org == "" {
			org = "Unknown"
		}
		published := h.Get(row, colPublished...)
		if published == "" {
			published = now.UTC().Format(time.RFC3339)
		}

		addr := &model.Address{PostalCode: h.Get(row, colPostcode...), Locality: h.Get(row, colLocality...)}
		buyer := buyerParty(org, addr)
		if email := h.Get(row, colEmail...); email != "" {
			buyer.ContactPoint = &model.ContactPoint{Email: email}
		}

		t := &model.Tender{ID: ocid, Title: title, Description: desc, Status: "active"}
		if v := h.Get(row, colValue...); v != "" {
			amt, _ := parseAmount(v)
			t.Value = &model.Value{Amount: amt, Currency: "GBP"}
		}
		if cpv := h.Get(row, colCPV...); cpv != "" {
			cpvDesc := h.Get(row, colCPVDesc...)
			t.Items = []model.Item{{
				ID:             "1",
				Description:    cpvDesc,
				Classification: &model.Classification{Scheme: "CPV", ID: cpv, Description: cpvDesc},
			}}
		}
		if dl := h.Get(row, colDeadline...); dl != "" {
			t.TenderPeriod = &model.Period{EndDate: dl}
		}

		out = append(out, model.Notice{
			OCID:    ocid,
			ID:      ocid,
			Date:    published,
			Tag:     []string{"tender"},
			Parties: []model.Party{buyer},
			Tender:  t,
		})
	}
	return out
}
