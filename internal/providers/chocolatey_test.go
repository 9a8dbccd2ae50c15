package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/core"
)

func atomEntryXML(id, version string) string {
	return fmt.Sprintf(`<entry>
  <title type="text">%s</title>
  <m:properties>
    <d:Title>%s</d:Title>
    <d:Version>%s</d:Version>
    <d:Description>desc of %s</d:Description>
    <d:ProjectUrl>https://example.com/%s</d:ProjectUrl>
    <d:Tags>admin tools</d:Tags>
  </m:properties>
</entry>`, id, id, version, id, id)
}

func atomFeedBody(nextLink string, entries []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices" xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">`)
	for _, e := range entries {
		b.WriteString(e)
	}
	if nextLink != "" {
		fmt.Fprintf(&b, `<link rel="next" href="%s"/>`, nextLink)
	}
	b.WriteString(`</feed>`)
	return b.String()
}

// newChocoCatalogServer serves a catalog of total packages in pages of
// pageSize. Requests with $skip >= 10000 get 406, matching the community
// feed; responses carry a next-link once the offset approaches the ceiling
// and for every cursor page after that.
func newChocoCatalogServer(t *testing.T, total, pageSize int) *httptest.Server {
	t.Helper()

	page := func(start int) []string {
		var entries []string
		for i := start; i < start+pageSize && i < total; i++ {
			entries = append(entries, atomEntryXML(fmt.Sprintf("pkg%05d", i), "1.0.0"))
		}
		return entries
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var start int
		switch {
		case q.Get("$skiptoken") != "":
			start, _ = strconv.Atoi(q.Get("$skiptoken"))
		case q.Get("$skip") != "":
			start, _ = strconv.Atoi(q.Get("$skip"))
			if start >= chocoSkipCeiling {
				http.Error(w, "skip limit exceeded", http.StatusNotAcceptable)
				return
			}
		}

		next := ""
		if end := start + pageSize; end < total {
			// Past this page, offset pagination would hit the ceiling; hand
			// out a cursor instead.
			if end+pageSize > chocoSkipCeiling {
				next = fmt.Sprintf("%s/Packages?$skiptoken=%d", srv.URL, end)
			}
		}

		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeedBody(next, page(start)))
	}))
	return srv
}

func TestChocolateyFetchAllFollowsNextLinkPastSkipCeiling(t *testing.T) {
	srv := newChocoCatalogServer(t, 11000, 2500)
	defer srv.Close()

	p := NewChocolateyProvider(nil)
	p.BaseURL = srv.URL

	var got []core.PackageRecord
	err := p.FetchAll(context.Background(), func(r core.PackageRecord) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)

	// The catalog is larger than the $skip ceiling; only next-link
	// pagination reaches the tail.
	assert.Equal(t, 11000, len(got))
	assert.Equal(t, "pkg00000", got[0].PackageID)
	assert.Equal(t, "pkg10999", got[len(got)-1].PackageID)
}

func TestChocolateyFetchAllStopsAtEmptyPage(t *testing.T) {
	srv := newChocoCatalogServer(t, 250, 100)
	defer srv.Close()

	p := NewChocolateyProvider(nil)
	p.BaseURL = srv.URL

	count := 0
	err := p.FetchAll(context.Background(), func(core.PackageRecord) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}

func TestChocolateyFetchAllPropagatesEmitError(t *testing.T) {
	srv := newChocoCatalogServer(t, 500, 100)
	defer srv.Close()

	p := NewChocolateyProvider(nil)
	p.BaseURL = srv.URL

	stop := fmt.Errorf("stop")
	err := p.FetchAll(context.Background(), func(core.PackageRecord) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestChocolateyEntryMapping(t *testing.T) {
	body := atomFeedBody("", []string{atomEntryXML("git.install", "2.44.0")})

	page, err := parseAtomFeed([]byte(body))
	require.NoError(t, err)
	require.Len(t, page.entries, 1)

	rec := page.entries[0]
	assert.Equal(t, "git.install", rec.PackageID)
	assert.Equal(t, "2.44.0", rec.Version)
	assert.Equal(t, core.ManagerChocolatey, rec.Manager)
	assert.Equal(t, []string{"admin", "tools"}, rec.Tags)
	// Publisher falls back to the id prefix when Authors is absent.
	assert.Equal(t, "git", rec.Publisher)
	assert.Contains(t, rec.SearchTokens, "git.install")
}

func TestChocolateyFetchOneNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, atomFeedBody("", nil))
	}))
	defer srv.Close()

	p := NewChocolateyProvider(nil)
	p.BaseURL = srv.URL

	rec, err := p.FetchOne(context.Background(), "no-such-package")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
