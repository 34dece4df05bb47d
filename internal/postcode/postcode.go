// Package postcode holds the UK postcode helpers shared by the normalizer and
// the geocoder, and the area-prefix to region lookup.
package postcode

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/galois26/tender-sync/internal/model"
)

var (
	inText     = regexp.MustCompile(`(?i)([A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2})`)
	outcodeRe  = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?$`)
	areaPrefix = regexp.MustCompile(`^[A-Z]{1,2}`)
)

// Clean strips all whitespace and uppercases.
func Clean(pc string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, pc))
}

// Area returns the leading one or two letter area code ("SW", "B"), or "".
func Area(pc string) string {
	return areaPrefix.FindString(Clean(pc))
}

// Outcode returns the outward code of a postcode ("SW1A" for "SW1A 1AA"), or ""
// when none can be derived. The inward code is always digit + two letters, so an
// unspaced postcode loses its last three characters.
func Outcode(pc string) string {
	pc = strings.ToUpper(strings.TrimSpace(pc))
	if pc == "" {
		return ""
	}
	var out string
	if i := strings.IndexFunc(pc, unicode.IsSpace); i > 0 {
		out = pc[:i]
	} else if outcodeRe.MatchString(pc) {
		out = pc
	} else if len(pc) >= 5 {
		out = pc[:len(pc)-3]
	}
	if !outcodeRe.MatchString(out) {
		return ""
	}
	return out
}

// Find returns the first UK postcode found in free text, uppercased, or "".
func Find(text string) string {
	m := inText.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Resolver maps postcode areas to regions. The table is read-only after construction.
type Resolver struct {
	table map[string]model.Region
}

func NewResolver(table map[string]model.Region) *Resolver {
	return &Resolver{table: table}
}

// Region returns the region for a postcode. An empty postcode yields ok=false;
// an unmapped area yields uk_wide.
func (r *Resolver) Region(pc string) (model.Region, bool) {
	if strings.TrimSpace(pc) == "" {
		return "", false
	}
	if reg, ok := r.table[Area(pc)]; ok {
		return reg, true
	}
	return model.RegionUKWide, true
}
