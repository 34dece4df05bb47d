package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/logger"
)

func newForeign(baseURL string) *foreignSource {
	return &foreignSource{
		base:    base{name: "ted_europa", log: logger.Discard()},
		http:    testDeps().HTTP,
		baseURL: baseURL,
		cfg:     config.ForeignConfig{CountryCode: "GBR", CPVCode: "45310000", NoticeType: "cn-standard", PageSize: 50},
		now:     func() time.Time { return fixedNow },
	}
}

func TestForeign_ContentShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/notices/search", r.URL.Path)
		assert.Equal(t, "GBR", q.Get("countryCode"))
		assert.Equal(t, "45310000", q.Get("cpvCode"))
		assert.Equal(t, "cn-standard", q.Get("noticeType"))
		assert.Equal(t, "50", q.Get("pageSize"))
		_, _ = w.Write([]byte(`{"content": [
		  {"id": "123456-2024", "title": {"eng": "Electrical installation works"},
		   "contractingAuthorityName": "Belfast City Council", "estimatedValue": 250000,
		   "cpvCodes": ["45310000", {"code": "45315000"}], "deadline": "2024-04-15",
		   "publicationDate": "2024-03-01"},
		  "not an object",
		  {"shortDescription": "Street lighting"}
		]}`))
	}))
	defer srv.Close()

	out, err := newForeign(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	n := out[0]
	assert.Equal(t, "123456-2024", n.OCID)
	assert.Equal(t, "Electrical installation works", n.Title())
	assert.Equal(t, "Belfast City Council", n.Buyer().Name)
	assert.Equal(t, 250000.0, n.Tender.Value.Amount)
	require.Len(t, n.Items(), 2)
	assert.Equal(t, "45315000", n.Items()[1].Classification.ID)
	assert.Equal(t, "2024-04-15", n.Tender.TenderPeriod.EndDate)
	assert.Equal(t, "2024-03-01", n.Date)

	bare := out[1]
	assert.Equal(t, "TED-20240302-3", bare.OCID)
	assert.Equal(t, "EU Tender", bare.Title())
	assert.Equal(t, "EU Tender", bare.Buyer().Name)
	assert.Equal(t, "Street lighting", bare.Description())
	assert.Equal(t, fixedNow.Format(time.RFC3339), bare.Date)
	assert.Nil(t, bare.Tender.Value)
}

func TestForeign_NoticesShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notices": [{"publicationNumber": "99-2024", "titleEnglish": "Fire alarm"}]}`))
	}))
	defer srv.Close()

	out, err := newForeign(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "99-2024", out[0].OCID)
	assert.Equal(t, "Fire alarm", out[0].Title())
}

func TestForeign_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	out, err := newForeign(srv.URL).Fetch(context.Background())
	assert.Error(t, err)
	assert.Empty(t, out)
}
