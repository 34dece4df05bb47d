// Package classify decides whether a notice is electrical work.
package classify

import (
	"strings"

	"github.com/galois26/tender-sync/internal/model"
)

// Classifier is safe for concurrent use; it never mutates after New.
type Classifier struct {
	codes    map[string]struct{}
	keywords []string
}

func New(v Vocabulary) *Classifier {
	c := &Classifier{codes: make(map[string]struct{}, len(v.Codes))}
	for _, code := range v.Codes {
		if code = strings.TrimSpace(code); code != "" {
			c.codes[truncCode(code)] = struct{}{}
		}
	}
	for _, kw := range v.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.keywords = append(c.keywords, kw)
		}
	}
	return c
}

// Relevant reports whether any item carries a known CPV code, or the notice text
// mentions any keyword.
func (c *Classifier) Relevant(n *model.Notice) bool {
	return c.matchesCode(n) || c.MatchesText(noticeText(n))
}

// MatchesText is the keyword half of Relevant.
func (c *Classifier) MatchesText(text string) bool {
	if text == "" {
		return false
	}
	lc := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lc, kw) {
			return true
		}
	}
	return false
}

func (c *Classifier) matchesCode(n *model.Notice) bool {
	for _, it := range n.Items() {
		if it.Classification == nil || it.Classification.ID == "" {
			continue
		}
		if _, ok := c.codes[truncCode(it.Classification.ID)]; ok {
			return true
		}
	}
	return false
}

// truncCode drops the CPV check digit ("45310000-3" -> "45310000").
func truncCode(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func noticeText(n *model.Notice) string {
	parts := []string{n.Title(), n.Description()}
	for _, it := range n.Items() {
		parts = append(parts, it.Description)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
