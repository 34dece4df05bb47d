package source

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
)

var (
	rssIDRe    = regexp.MustCompile(`(?i)[?&]id=(\d+)`)
	rssOppRe   = regexp.MustCompile(`(?i)opportunity/(\d+)`)
	rssBuyerRe = regexp.MustCompile(`\s+-\s+([^-]+)$`)
	rssAccept  = http.Header{"Accept": []string{"application/rss+xml, application/xml, text/xml"}}
)

// rssSource reads portal search feeds (RSS 2.0). Feed URLs may carry a
// {keyword} placeholder, expanded once per configured keyword.
type rssSource struct {
	base
	http Getter
	cfg  config.RSSConfig
	cls  *classify.Classifier
	now  func() time.Time
}

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (s *rssSource) Fetch(ctx context.Context) ([]model.Notice, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	var all []model.Notice
	seen := make(map[string]struct{})
	for _, feed := range s.feedURLs() {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		body, err := s.http.Get(ctx, feed, rssAccept)
		if err != nil {
			s.log.Warn("feed fetch failed", "feed", feed, "err", err)
			continue
		}
		items, err := parseRSS(body)
		if err != nil {
			s.log.Warn("feed parse failed", "feed", feed, "err", err)
			continue
		}
		for _, it := range items {
			title := strings.TrimSpace(it.Title)
			desc := stripTags(it.Description)
			if title == "" || !s.cls.MatchesText(title+" "+desc) {
				continue
			}
			n := s.notice(it, title, desc, now())
			if _, dup := seen[n.OCID]; dup {
				continue
			}
			seen[n.OCID] = struct{}{}
			all = append(all, n)
		}
	}
	return all, nil
}

func (s *rssSource) feedURLs() []string {
	var out []string
	for _, f := range s.cfg.Feeds {
		if !strings.Contains(f, "{keyword}") {
			out = append(out, f)
			continue
		}
		if len(s.cfg.Keywords) == 0 {
			s.log.Warn("feed has {keyword} but no keywords are configured", "feed", f)
			continue
		}
		for _, kw := range s.cfg.Keywords {
			out = append(out, strings.ReplaceAll(f, "{keyword}", url.QueryEscape(kw)))
		}
	}
	return out
}

func (s *rssSource) notice(it rssItem, title, desc string, now time.Time) model.Notice {
	link := strings.TrimSpace(it.Link)
	var id string
	if m := rssIDRe.FindStringSubmatch(link); m != nil {
		id = m[1]
	} else if m := rssOppRe.FindStringSubmatch(link); m != nil {
		id = m[1]
	} else {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(link+"|"+title)).String()
	}

	// Portal titles are often "Title - Organisation".
	buyer := s.cfg.Buyer
	if m := rssBuyerRe.FindStringSubmatch(title); m != nil {
		buyer = strings.TrimSpace(m[1])
	}
	if buyer == "" {
		buyer = "Public Body"
	}
	var addr *model.Address
	if s.cfg.Region != "" {
		addr = &model.Address{Region: s.cfg.Region}
	}

	t := &model.Tender{
		ID:          id,
		Title:       truncate(title, 500),
		Description: truncate(desc, 2000),
		Status:      "active",
	}
	if link != "" {
		t.Documents = []model.Document{{ID: "notice", Title: "Notice", URL: link, Format: "text/html"}}
	}
	return model.Notice{
		OCID:    s.cfg.IDPrefix + "-" + id,
		ID:      id,
		Date:    isoOrNow(it.PubDate, now),
		Tag:     []string{"tender"},
		Parties: []model.Party{buyerParty(buyer, addr)},
		Tender:  t,
	}
}

func parseRSS(body []byte) ([]rssItem, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(label string, r io.Reader) (io.Reader, error) {
		switch strings.ToLower(label) {
		case "windows-1252", "cp1252":
			return charmap.Windows1252.NewDecoder().Reader(r), nil
		case "iso-8859-1", "latin1", "latin-1":
			return charmap.ISO8859_1.NewDecoder().Reader(r), nil
		}
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	var doc rssDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Channel.Items, nil
}
