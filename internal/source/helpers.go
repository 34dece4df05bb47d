package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/model"
)

// Small helper used by multiple sources to pick the first non-empty string key
func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case map[string]any:
			// multilingual fields: {"eng": "..."}; prefer English
			s = pickStr(t, "eng", "ENG", "en")
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func pickFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			if t != 0 {
				return t, true
			}
		case string:
			if f, err := parseAmount(t); err == nil && f != 0 {
				return f, true
			}
		case map[string]any:
			if f, ok := pickFloat(t, "amount", "value"); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// Parse timestamps in a few common formats (RFC3339, RSS dates, plain dates).
func parseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339, time.RFC1123Z, time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700", "Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "02/01/2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

// isoOrNow normalises a source timestamp to RFC3339, falling back to now.
func isoOrNow(s string, now time.Time) string {
	if t, err := parseTimeFlexible(s); err == nil {
		return t.Format(time.RFC3339)
	}
	return now.UTC().Format(time.RFC3339)
}

var amountJunk = strings.NewReplacer("£", "", "Â", "", ",", "", " ", "")

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(amountJunk.Replace(strings.TrimSpace(s)), 64)
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// stripTags removes markup and collapses whitespace.
func stripTags(s string) string {
	return strings.Join(strings.Fields(tagRe.ReplaceAllString(s, " ")), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func buyerParty(name string, addr *model.Address) model.Party {
	return model.Party{ID: "buyer", Name: name, Roles: []string{"buyer"}, Address: addr}
}
