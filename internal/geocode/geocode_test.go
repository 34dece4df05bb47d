package geocode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/tender-sync/internal/fetch"
	"github.com/galois26/tender-sync/internal/logger"
)

type fakeAPI struct {
	postcodes map[string]string // path -> body
	calls     atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	body, ok := f.postcodes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"error":"Postcode not found"}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func ok(lat, lng float64) string {
	return fmt.Sprintf(`{"status":200,"result":{"latitude":%v,"longitude":%v}}`, lat, lng)
}

func newClient(srvURL string) *Client {
	f := fetch.New(fetch.Options{Timeout: time.Second, MaxRetries: 1})
	return New(srvURL, f, Options{CacheSize: 10, CacheTTL: time.Hour, Logger: logger.Discard()})
}

func TestLookup_FullPostcode(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{"/postcodes/SW1A1AA": ok(51.501, -0.141)}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ll := newClient(srv.URL).Lookup(context.Background(), "sw1a 1aa")
	require.NotNil(t, ll)
	assert.InDelta(t, 51.501, ll.Lat, 1e-9)
	assert.InDelta(t, -0.141, ll.Lng, 1e-9)
}

func TestLookup_FallsBackToOutcode(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{"/outcodes/SW1A": ok(51.5, -0.14)}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ll := newClient(srv.URL).Lookup(context.Background(), "SW1A 9ZZ")
	require.NotNil(t, ll)
	assert.InDelta(t, 51.5, ll.Lat, 1e-9)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestLookup_BothFail(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	assert.Nil(t, newClient(srv.URL).Lookup(context.Background(), "ZZ9 9ZZ"))
}

func TestLookup_NonOKBodyAndBadJSON(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{
		"/postcodes/B11AA": `{"status":200,"result":null}`,
		"/outcodes/B1":     `not json`,
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	assert.Nil(t, newClient(srv.URL).Lookup(context.Background(), "B11AA"))
}

func TestLookup_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Nil(t, newClient(url).Lookup(context.Background(), "SW1A 1AA"))
}

func TestLookup_CachesHitsAndMisses(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{"/postcodes/LS14AP": ok(53.8, -1.54)}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := newClient(srv.URL)
	ctx := context.Background()

	require.NotNil(t, c.Lookup(ctx, "LS1 4AP"))
	require.NotNil(t, c.Lookup(ctx, "ls14ap"))
	assert.Equal(t, int32(1), api.calls.Load())

	assert.Nil(t, c.Lookup(ctx, "ZZ9 9ZZ"))
	assert.Nil(t, c.Lookup(ctx, "ZZ9 9ZZ"))
	assert.Equal(t, int32(3), api.calls.Load())
}

func TestLookup_Empty(t *testing.T) {
	c := New("http://unused.invalid", nil, Options{})
	assert.Nil(t, c.Lookup(context.Background(), "  "))
}

func TestLookup_OutcodeBodyWithoutStatus(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{
		"/outcodes/SW1A": `{"result":{"latitude":51.5,"longitude":-0.14}}`,
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ll := newClient(srv.URL).Lookup(context.Background(), "SW1A 9ZZ")
	require.NotNil(t, ll)
	assert.InDelta(t, 51.5, ll.Lat, 1e-9)
	assert.InDelta(t, -0.14, ll.Lng, 1e-9)
}

func TestLookup_PostcodeNeedsStatus200(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{
		"/postcodes/LS11UR": `{"result":{"latitude":1,"longitude":2}}`,
		"/outcodes/LS1":     ok(53.79, -1.55),
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ll := newClient(srv.URL).Lookup(context.Background(), "LS1 1UR")
	require.NotNil(t, ll)
	assert.InDelta(t, 53.79, ll.Lat, 1e-9)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestLookup_MissIsLoggedOnce(t *testing.T) {
	api := &fakeAPI{postcodes: map[string]string{}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	f := fetch.New(fetch.Options{Timeout: time.Second, MaxRetries: 1})
	c := New(srv.URL, f, Options{CacheSize: 10, CacheTTL: time.Hour, Logger: log})

	assert.Nil(t, c.Lookup(context.Background(), "ZZ9 9ZZ"))
	assert.Nil(t, c.Lookup(context.Background(), "ZZ9 9ZZ"))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("geocode miss")))
	assert.Contains(t, buf.String(), "postcode=ZZ99ZZ")
}
