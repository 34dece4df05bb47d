package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/tender-sync/internal/classify"
	"github.com/galois26/tender-sync/internal/logger"
	"github.com/galois26/tender-sync/internal/model"
)

func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	fixture, err := os.ReadFile("testdata/construction_index.html")
	require.NoError(t, err)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tenders", r.URL.Path)
		assert.Equal(t, "Active", r.URL.Query().Get("status"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		if r.URL.Query().Get("keywords") == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(fixture)
	}))
}

func newListing(baseURL string, keywords ...string) *listingSource {
	return &listingSource{
		base:     base{name: "construction_index", log: logger.Discard()},
		http:     testDeps().HTTP,
		baseURL:  baseURL,
		keywords: keywords,
		cls:      classify.New(classify.DefaultVocabulary()),
		now:      func() time.Time { return fixedNow },
	}
}

func byOCID(ns []model.Notice) map[string]model.Notice {
	out := make(map[string]model.Notice, len(ns))
	for _, n := range ns {
		out[n.OCID] = n
	}
	return out
}

func TestListing_KeywordEncoding(t *testing.T) {
	var terms []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotContains(t, r.URL.RawQuery, " ")
		terms = append(terms, r.URL.Query().Get("keywords"))
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	_, err := newListing(srv.URL, "fire alarm", "fire+alarm", "M%26E", "M&E", "100%").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fire alarm", "fire alarm", "M&E", "M&E", "100%"}, terms)
}

func TestListing_Fetch(t *testing.T) {
	srv := listingServer(t)
	defer srv.Close()

	out, err := newListing(srv.URL, "electrical", "broken", "fire+alarm").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3, "irrelevant rows dropped, repeats across keywords merged")

	got := byOCID(out)
	row, ok := got["TCI-12345"]
	require.True(t, ok)
	assert.Equal(t, "Rewiring of Primary School", row.Title())
	assert.Equal(t, "Construction Index Listing", row.Buyer().Name)
	assert.Equal(t, "Leeds, West Yorkshire", row.Buyer().Address.Locality)
	assert.Equal(t, fixedNow.Format(time.RFC3339), row.Date)
	require.Len(t, row.Tender.Documents, 1)
	assert.Equal(t, srv.URL+"/tender/12345", row.Tender.Documents[0].URL)

	card, ok := got["TCI-777"]
	require.True(t, ok)
	assert.Equal(t, "Construction Index", card.Buyer().Name)
	assert.Nil(t, card.Buyer().Address)

	var external model.Notice
	for _, n := range out {
		if strings.HasPrefix(n.Title(), "LED") {
			external = n
		}
	}
	require.NotEmpty(t, external.OCID)
	assert.Len(t, strings.TrimPrefix(external.OCID, "TCI-"), 36, "uuid id for links without a tender number")
	assert.Equal(t, "https://partner.example.test/opp?ref=A9", external.Tender.Documents[0].URL)
}

func TestListing_StableSyntheticID(t *testing.T) {
	srv := listingServer(t)
	defer srv.Close()

	a, err := newListing(srv.URL, "electrical").Fetch(context.Background())
	require.NoError(t, err)
	b, err := newListing(srv.URL, "electrical").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byOCID(a), byOCID(b))
}

func TestParseListing_Empty(t *testing.T) {
	hits, err := parseListing([]byte("<html><body><p>No results</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "https://ci.test/tender/1", resolveLink("https://ci.test", "/tender/1"))
	assert.Equal(t, "https://other.test/x", resolveLink("https://ci.test", "https://other.test/x"))
	assert.Equal(t, "", resolveLink("https://ci.test", ""))
}
