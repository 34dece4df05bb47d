package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
)

// ocdsSource pages through an OCDS release-package API with an opaque cursor.
type ocdsSource struct {
	base
	http    Getter
	baseURL string
	cfg     config.OCDSConfig
	now     func() time.Time
}

type releasePackage struct {
	Releases []model.Notice `json:"releases"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Fetch stops on an empty cursor, a short page, or the page ceiling. A failed
// page ends pagination; earlier pages are returned with the error.
func (s *ocdsSource) Fetch(ctx context.Context) ([]model.Notice, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	updatedFrom := now().UTC().Add(-s.cfg.Window).Format(time.RFC3339)
	endpoint := strings.TrimRight(s.baseURL, "/") + "/ocdsReleasePackages"

	var (
		all    []model.Notice
		cursor string
	)
	for page := 1; page <= s.cfg.MaxPages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(s.cfg.Limit))
		q.Set("updatedFrom", updatedFrom)
		q.Set("stages", s.cfg.Stages)
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var pkg releasePackage
		if err := s.http.GetJSON(ctx, endpoint+"?"+q.Encode(), &pkg); err != nil {
			return all, fmt.Errorf("%s page %d: %w", s.name, page, err)
		}
		all = append(all, pkg.Releases...)
		s.log.Debug("page fetched", "page", page, "releases", len(pkg.Releases))

		cursor = cursorFrom(pkg.Links.Next)
		if cursor == "" || len(pkg.Releases) < s.cfg.Limit {
			return all, nil
		}
	}
	s.log.Warn("page ceiling reached, more results available", "max_pages", s.cfg.MaxPages, "releases", len(all))
	return all, nil
}

// cursorFrom extracts the cursor query parameter of a next link.
func cursorFrom(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}
