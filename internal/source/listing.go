package source

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/model"
)

var tenderIDRe = regexp.MustCompile(`/tender/(\d+)`)

var listingHeader = http.Header{
	"Accept":          []string{"text/html,application/xhtml+xml"},
	"Accept-Language": []string{"en-GB,en;q=0.9"},
}

// listingSource scrapes a keyword search results page. Two layouts are
// recognised: result tables and tender cards.
type listingSource struct {
	base
	http     Getter
	baseURL  string
	keywords []string
	cls      *classify.Classifier
	now      func() time.Time
}

type listingHit struct {
	link, title, location, buyer string
}

func (s *listingSource) Fetch(ctx context.Context) ([]model.Notice, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	stamp := now().UTC().Format(time.RFC3339)
	root := strings.TrimRight(s.baseURL, "/")

	var all []model.Notice
	seen := make(map[string]struct{})
	for _, kw := range s.keywords {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		u := root + "/tenders?" + url.Values{"keywords": {searchTerm(kw)}, "status": {"Active"}}.Encode()
		body, err := s.http.Get(ctx, u, listingHeader)
		if err != nil {
			s.log.Warn("search failed", "keyword", kw, "err", err)
			continue
		}
		hits, err := parseListing(body)
		if err != nil {
			s.log.Warn("parse failed", "keyword", kw, "err", err)
			continue
		}
		for _, h := range hits {
			if !s.cls.MatchesText(h.title) {
				continue
			}
			n := s.notice(h, root, stamp)
			if _, dup := seen[n.OCID]; dup {
				continue
			}
			seen[n.OCID] = struct{}{}
			all = append(all, n)
		}
	}
	return all, nil
}

func (s *listingSource) notice(h listingHit, root, stamp string) model.Notice {
	var id string
	if m := tenderIDRe.FindStringSubmatch(h.link); m != nil {
		id = m[1]
	} else {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(h.link+"|"+h.title)).String()
	}
	var addr *model.Address
	if h.location != "" {
		addr = &model.Address{Locality: h.location}
	}
	t := &model.Tender{ID: id, Title: h.title, Description: h.title, Status: "active"}
	if abs := resolveLink(root, h.link); abs != "" {
		t.Documents = []model.Document{{ID: "listing", Title: "Listing", URL: abs, Format: "text/html"}}
	}
	return model.Notice{
		OCID:    "TCI-" + id,
		ID:      id,
		Date:    stamp,
		Tag:     []string{"tender"},
		Parties: []model.Party{buyerParty(h.buyer, addr)},
		Tender:  t,
	}
}

func parseListing(body []byte) ([]listingHit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var hits []listingHit

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 2 {
			return
		}
		a := cells.Eq(0).Find("a[href]").First()
		title := strings.TrimSpace(a.Text())
		if a.Length() == 0 || title == "" {
			return
		}
		href, _ := a.Attr("href")
		hits = append(hits, listingHit{
			link:     href,
			title:    title,
			location: strings.Join(strings.Fields(cells.Eq(1).Text()), " "),
			buyer:    "Construction Index Listing",
		})
	})

	doc.Find("div[class*='tender']").Each(func(_ int, card *goquery.Selection) {
		a := card.Find("h2 a[href], h3 a[href]").First()
		title := strings.TrimSpace(a.Text())
		if a.Length() == 0 || title == "" {
			return
		}
		href, _ := a.Attr("href")
		hits = append(hits, listingHit{link: href, title: title, buyer: "Construction Index"})
	})
	return hits, nil
}

func resolveLink(root, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(root + "/")
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// searchTerm accepts keywords either plain ("fire alarm") or already
// query-encoded ("fire+alarm", "M%26E").
func searchTerm(kw string) string {
	if plain, err := url.QueryUnescape(kw); err == nil {
		return plain
	}
	return kw
}
