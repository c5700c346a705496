package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
)

const profileHTML = `<html><body>
<dl class="company-profile">
	<dt>Sector</dt><dd>Technology</dd>
	<dt>Industry</dt><dd>Consumer Electronics</dd>
	<dt>Employees</dt><dd>160,000</dd>
</dl>
</body></html>`

func testHTTPClient(t *testing.T) *httputil.Client {
	t.Helper()
	return httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/AAPL", r.URL.Path)
		fmt.Fprint(w, profileHTML)
	}))
	defer server.Close()

	scraper := NewReferenceScraper(testHTTPClient(t), &fakeSecurities{}, server.URL, logger.NewNop())

	profile, err := scraper.FetchProfile(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "Technology", profile.Sector)
	assert.Equal(t, "Consumer Electronics", profile.Industry)
}

func TestFetchProfile_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
	}))
	defer server.Close()

	scraper := NewReferenceScraper(testHTTPClient(t), &fakeSecurities{}, server.URL, logger.NewNop())

	_, err := scraper.FetchProfile(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "no classification data")
}

func TestFetchProfile_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	scraper := NewReferenceScraper(testHTTPClient(t), &fakeSecurities{}, server.URL, logger.NewNop())

	_, err := scraper.FetchProfile(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "status 404")
}
