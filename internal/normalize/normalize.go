// Package normalize derives the canonical tender record from a raw notice:
// postcode, region, sector, categories, values and contacts.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
	"github.com/galois26/tender-sync/internal/postcode"
)

const complexThreshold = 500000

type rule[T any] struct {
	tag   T
	words []string
}

// compile lowercases and trims the match words, dropping empty rules.
func compile[T any](tag T, when []string) (rule[T], bool) {
	words := make([]string, 0, len(when))
	for _, w := range when {
		if s := strings.ToLower(strings.TrimSpace(w)); s != "" {
			words = append(words, s)
		}
	}
	return rule[T]{tag: tag, words: words}, len(words) > 0
}

func (r rule[T]) any(text string) bool {
	for _, w := range r.words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

var defaultCategories = []struct {
	tag  model.Category
	when []string
}{
	{model.CategoryFireAlarm, []string{"fire alarm", "fire detection"}},
	{model.CategoryEmergencyLighting, []string{"emergency light"}},
	{model.CategoryRewire, []string{"rewir", "re-wir"}},
	{model.CategoryTesting, []string{"eicr", "periodic", "testing"}},
	{model.CategoryEVCharging, []string{"ev charg", "electric vehicle"}},
	{model.CategoryLighting, []string{"led", "lighting"}},
	{model.CategorySolar, []string{"solar", "pv"}},
	{model.CategoryDataCabling, []string{"data", "cabling"}},
	{model.CategoryMAndE, []string{"m&e", "mechanical"}},
}

// Sector groups are checked in order over the buyer name; the first hit wins.
var sectorRules = []struct {
	sector model.Sector
	buyer  []string
	desc   []string
}{
	{model.SectorHealthcare, []string{"nhs", "hospital", "health"}, nil},
	{model.SectorHousing, []string{"housing", "homes"}, []string{"social housing"}},
	{model.SectorEducation, []string{"school", "academy", "college", "university"}, nil},
	{model.SectorLocalAuthority, []string{"council", "borough", "district"}, nil},
}

var knownRegions = map[model.Region]struct{}{
	model.RegionLondon: {}, model.RegionSouthEast: {}, model.RegionSouthWest: {},
	model.RegionEastEngland: {}, model.RegionEastMidlands: {}, model.RegionWestMidlands: {},
	model.RegionYorkshire: {}, model.RegionNorthEast: {}, model.RegionNorthWest: {},
	model.RegionWales: {}, model.RegionScotland: {}, model.RegionNorthernIreland: {},
	model.RegionUKWide: {},
}

type Engine struct {
	regions    *postcode.Resolver
	categories []rule[model.Category]
	now        func() time.Time
}

func New(cfg config.NormalizeConfig) (*Engine, error) {
	table := postcode.DefaultRegions()
	for area, reg := range cfg.RegionOverrides {
		r := model.Region(strings.ToLower(strings.TrimSpace(reg)))
		if _, ok := knownRegions[r]; !ok {
			return nil, fmt.Errorf("region_overrides[%s]: unknown region %q", area, reg)
		}
		table[strings.ToUpper(strings.TrimSpace(area))] = r
	}

	eng := &Engine{regions: postcode.NewResolver(table), now: time.Now}
	for _, c := range defaultCategories {
		r, _ := compile(c.tag, c.when)
		eng.categories = append(eng.categories, r)
	}
	for _, c := range cfg.ExtraCategories {
		if r, ok := compile(model.Category(strings.TrimSpace(c.Tag)), c.When); ok {
			eng.categories = append(eng.categories, r)
		}
	}
	return eng, nil
}

// Postcode returns the buyer's postal code, or the first postcode found in
// the buyer address lines and tender description. "" when none.
func (e *Engine) Postcode(n *model.Notice) string {
	buyer := n.Buyer()
	var parts []string
	if buyer != nil && buyer.Address != nil {
		if pc := strings.TrimSpace(buyer.Address.PostalCode); pc != "" {
			return strings.ToUpper(pc)
		}
		parts = append(parts, buyer.Address.StreetAddress, buyer.Address.Locality, buyer.Address.Region)
	}
	parts = append(parts, n.Description())
	return postcode.Find(strings.Join(parts, " "))
}

// Region never returns "": a notice without a postcode is uk_wide.
func (e *Engine) Region(pc string) model.Region {
	if r, ok := e.regions.Region(pc); ok {
		return r
	}
	return model.RegionUKWide
}

func (e *Engine) Sector(n *model.Notice) model.Sector {
	var name string
	if b := n.Buyer(); b != nil {
		name = strings.ToLower(b.Name)
	}
	desc := strings.ToLower(n.Description())
	for _, r := range sectorRules {
		if containsAny(name, r.buyer) || containsAny(desc, r.desc) {
			return r.sector
		}
	}
	return model.SectorPublic
}

// Categories always starts with electrical, followed by every matching tag.
func (e *Engine) Categories(n *model.Notice) []model.Category {
	text := strings.ToLower(n.Title() + " " + n.Description())
	out := []model.Category{model.CategoryElectrical}
	for _, r := range e.categories {
		if r.any(text) {
			out = append(out, r.tag)
		}
	}
	return out
}

// Tender builds the canonical record for a relevant notice. Geocode is left
// nil; SourceURL falls back to the first document link.
func (e *Engine) Tender(n *model.Notice, source string) model.Record {
	buyer := n.Buyer()
	rec := model.Record{
		OCID:        n.OCID,
		Source:      source,
		Title:       n.Title(),
		Description: n.Description(),
		ClientName:  "Unknown",
		Categories:  e.Categories(n),
		Sector:      e.Sector(n),
		Currency:    "GBP",
		PublishedAt: n.Date,
		Documents:   []model.TenderDocument{},
		Status:      "live",
		FetchedAt:   e.now().UTC(),
		Raw:         *n,
		CPVCodes:    []string{},
	}
	if rec.Title == "" {
		rec.Title = "Untitled"
	}

	pc := e.Postcode(n)
	rec.Postcode = strPtr(pc)
	rec.Region = e.Region(pc)

	if buyer != nil {
		if s := strings.TrimSpace(buyer.Name); s != "" {
			rec.ClientName = s
		}
		if a := buyer.Address; a != nil {
			rec.LocationText = strPtr(joinNonEmpty(", ", a.Locality, a.Region))
		}
		if cp := buyer.ContactPoint; cp != nil {
			rec.ContactName = strPtr(cp.Name)
			rec.ContactEmail = strPtr(cp.Email)
			rec.ContactPhone = strPtr(cp.Telephone)
		}
	}

	if t := n.Tender; t != nil {
		rec.ValueExact = amount(t.Value)
		rec.ValueLow = firstNonNil(amount(t.MinValue), rec.ValueExact)
		rec.ValueHigh = firstNonNil(amount(t.MaxValue), rec.ValueExact)
		if t.Value != nil && t.Value.Currency != "" {
			rec.Currency = t.Value.Currency
		}
		if t.TenderPeriod != nil {
			rec.Deadline = strPtr(t.TenderPeriod.EndDate)
		}
		for _, it := range t.Items {
			if it.Classification != nil && it.Classification.ID != "" {
				rec.CPVCodes = append(rec.CPVCodes, it.Classification.ID)
			}
		}
		for _, d := range t.Documents {
			doc := model.TenderDocument{Name: d.Title, URL: d.URL, Type: d.Format}
			if doc.Name == "" {
				doc.Name = "Document"
			}
			if doc.Type == "" {
				doc.Type = "application/pdf"
			}
			rec.Documents = append(rec.Documents, doc)
		}
		if len(t.Documents) > 0 {
			rec.SourceURL = t.Documents[0].URL
		}
	}

	rec.Complexity = "standard"
	if rec.ValueLow != nil && *rec.ValueLow > complexThreshold {
		rec.Complexity = "complex"
	}
	return rec
}

func containsAny(text string, words []string) bool {
	if text == "" {
		return false
	}
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// amount treats a zero amount as absent.
func amount(v *model.Value) *float64 {
	if v == nil || v.Amount == 0 {
		return nil
	}
	a := v.Amount
	return &a
}

func firstNonNil(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
