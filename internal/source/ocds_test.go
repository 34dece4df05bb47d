package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/logger"
	"github.com/galois26/tender-sync/internal/model"
)

func newOCDS(baseURL string, maxPages int) *ocdsSource {
	return &ocdsSource{
		base:    base{name: "find_a_tender", log: logger.Discard()},
		http:    testDeps().HTTP,
		baseURL: baseURL,
		cfg:     config.OCDSConfig{Limit: 2, Window: 720 * time.Hour, Stages: "tender", MaxPages: maxPages},
		now:     func() time.Time { return fixedNow },
	}
}

func releases(page, n int) []model.Notice {
	out := make([]model.Notice, n)
	for i := range out {
		id := fmt.Sprintf("ocds-b5fd17-%d-%d", page, i)
		out[i] = model.Notice{OCID: id, ID: id, Date: "2024-03-01T00:00:00Z", Tender: &model.Tender{Title: "Rewire"}}
	}
	return out
}

func writePage(t *testing.T, w http.ResponseWriter, rel []model.Notice, next string) {
	t.Helper()
	body := map[string]any{"releases": rel, "links": map[string]string{"next": next}}
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestOCDS_PageCeiling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		writePage(t, w, releases(n, 2), fmt.Sprintf("https://api.test/ocdsReleasePackages?limit=2&cursor=c%d", n))
	}))
	defer srv.Close()

	out, err := newOCDS(srv.URL, 3).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 6)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOCDS_QueryAndCursor(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/ocdsReleasePackages", r.URL.Path)
		assert.Equal(t, "2", q.Get("limit"))
		assert.Equal(t, "tender", q.Get("stages"))
		assert.Equal(t, fixedNow.Add(-720*time.Hour).Format(time.RFC3339), q.Get("updatedFrom"))

		switch calls.Add(1) {
		case 1:
			assert.Empty(t, q.Get("cursor"))
			writePage(t, w, releases(1, 2), "https://api.test/ocdsReleasePackages?cursor=abc%3D&limit=2")
		default:
			assert.Equal(t, "abc=", q.Get("cursor"))
			writePage(t, w, releases(2, 1), "https://api.test/ocdsReleasePackages?cursor=def")
		}
	}))
	defer srv.Close()

	out, err := newOCDS(srv.URL, 20).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 3, "short page ends pagination")
	assert.Equal(t, int32(2), calls.Load())
}

func TestOCDS_NoCursorStops(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writePage(t, w, releases(1, 2), "")
	}))
	defer srv.Close()

	out, err := newOCDS(srv.URL, 20).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOCDS_FailureKeepsEarlierPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writePage(t, w, releases(1, 2), "https://api.test/x?cursor=next")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := newOCDS(srv.URL, 20).Fetch(context.Background())
	require.Error(t, err)
	assert.Len(t, out, 2)
}

func TestOCDS_DecodesRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
		  "releases": [{
		    "ocid": "ocds-h6vhtk-0451a1",
		    "id": "045112-2024",
		    "date": "2024-03-01T11:22:33Z",
		    "tag": ["tender"],
		    "parties": [{"id": "GB-1", "name": "NHS Lothian", "roles": ["buyer"],
		      "address": {"locality": "Edinburgh", "postalCode": "EH1 3EG"},
		      "contactPoint": {"email": "estates@example.scot"}}],
		    "tender": {"id": "t1", "title": "Emergency lighting", "value": {"amount": 120000, "currency": "GBP"},
		      "items": [{"id": "1", "classification": {"scheme": "CPV", "id": "45316000"}}],
		      "tenderPeriod": {"endDate": "2024-04-02T12:00:00Z"}}
		  }],
		  "links": {}
		}`))
	}))
	defer srv.Close()

	out, err := newOCDS(srv.URL, 20).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	n := out[0]
	assert.Equal(t, "ocds-h6vhtk-0451a1", n.OCID)
	require.NotNil(t, n.Buyer())
	assert.Equal(t, "EH1 3EG", n.Buyer().Address.PostalCode)
	assert.Equal(t, 120000.0, n.Tender.Value.Amount)
	assert.Equal(t, "45316000", n.Items()[0].Classification.ID)
}

func TestCursorFrom(t *testing.T) {
	assert.Equal(t, "xyz", cursorFrom("https://x.test/p?limit=100&cursor=xyz"))
	assert.Equal(t, "", cursorFrom("https://x.test/p?limit=100"))
	assert.Equal(t, "", cursorFrom(""))
}
