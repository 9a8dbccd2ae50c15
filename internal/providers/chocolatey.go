package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// DefaultChocolateyBaseURL is the community repository OData v2 endpoint.
const DefaultChocolateyBaseURL = "https://community.chocolatey.org/api/v2"

const (
	chocoPageSize    = 100
	chocoSkipCeiling = 10000
	// The community feed rate-limits at 10 req/s.
	chocoRequestGap = 100 * time.Millisecond
)

// ChocolateyProvider consumes the community repository's NuGet v2 OData
// Atom feed.
type ChocolateyProvider struct {
	stalePolicy
	// BaseURL is overridable for tests.
	BaseURL string
	http    *httpClient
	log     *zap.Logger
}

func NewChocolateyProvider(log *zap.Logger) *ChocolateyProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChocolateyProvider{
		stalePolicy: stalePolicy{maxAge: 7 * 24 * time.Hour},
		BaseURL:     DefaultChocolateyBaseURL,
		http:        newHTTPClient(log),
		log:         log,
	}
}

func (p *ChocolateyProvider) Manager() core.Manager { return core.ManagerChocolatey }

// FetchAll pages through the feed. The feed rejects `$skip` past 10,000 with
// 406 Not Acceptable, so pagination switches to the server-supplied
// `<link rel="next">` cursor as soon as a response carries one; the offset
// loop is only a fallback for feeds that omit next-links on early pages.
func (p *ChocolateyProvider) FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error {
	next := p.pageURL(0)
	skip := 0
	total := 0
	cursorMode := false

	for next != "" {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		body, err := p.http.get(ctx, next, "application/atom+xml,application/xml")
		if err != nil {
			if isStatus(err, 406) {
				// Offset ceiling reached without a cursor to follow.
				p.log.Warn("chocolatey feed rejected offset pagination",
					zap.Int("skip", skip), zap.Int("fetched", total))
				return nil
			}
			return core.WrapError(core.KindProviderUnavailable, err, "chocolatey feed unreachable")
		}

		feed, err := parseAtomFeed(body)
		if err != nil {
			return core.WrapError(core.KindProviderParse, err, "chocolatey feed")
		}
		if len(feed.entries) == 0 {
			break
		}

		for _, rec := range feed.entries {
			if err := emit(rec); err != nil {
				return err
			}
			total++
		}

		switch {
		case feed.nextLink != "":
			// Server-driven paging from here on; a later page without a
			// next-link is the end of the feed, not a reason to fall back
			// to offsets.
			cursorMode = true
			next = feed.nextLink
		case cursorMode:
			next = ""
		case skip+len(feed.entries) >= chocoSkipCeiling:
			// No cursor and the next offset request would 406.
			next = ""
		default:
			skip += len(feed.entries)
			next = p.pageURL(skip)
		}

		select {
		case <-time.After(chocoRequestGap):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.log.Info("chocolatey catalog fetched", zap.Int("packages", total))
	return nil
}

// FetchOne queries the feed for a single package id.
func (p *ChocolateyProvider) FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error) {
	u := fmt.Sprintf("%s/Packages?%s", p.BaseURL, url.Values{
		"$filter": {fmt.Sprintf("Id eq '%s' and IsLatestVersion eq true", packageID)},
		"$top":    {"1"},
	}.Encode())

	body, err := p.http.get(ctx, u, "application/atom+xml,application/xml")
	if err != nil {
		return nil, core.WrapError(core.KindProviderUnavailable, err, "chocolatey feed unreachable")
	}
	feed, err := parseAtomFeed(body)
	if err != nil {
		return nil, core.WrapError(core.KindProviderParse, err, "chocolatey feed")
	}
	if len(feed.entries) == 0 {
		return nil, nil
	}
	rec := feed.entries[0]
	return &rec, nil
}

func (p *ChocolateyProvider) pageURL(skip int) string {
	q := url.Values{
		"$filter":  {"IsLatestVersion eq true"},
		"$orderby": {"Id"},
		"$top":     {fmt.Sprint(chocoPageSize)},
		"$skip":    {fmt.Sprint(skip)},
	}
	return fmt.Sprintf("%s/Packages?%s", p.BaseURL, q.Encode())
}

type atomFeedXML struct {
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	Title      string    `xml:"title"`
	Properties atomProps `xml:"properties"`
}

type atomProps struct {
	Title       string `xml:"Title"`
	Version     string `xml:"Version"`
	Description string `xml:"Description"`
	Authors     string `xml:"Authors"`
	ProjectURL  string `xml:"ProjectUrl"`
	LicenseURL  string `xml:"LicenseUrl"`
	Tags        string `xml:"Tags"`
}

type atomPage struct {
	entries  []core.PackageRecord
	nextLink string
}

func parseAtomFeed(body []byte) (*atomPage, error) {
	var feed atomFeedXML
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	page := &atomPage{}
	for _, link := range feed.Links {
		if link.Rel == "next" {
			page.nextLink = link.Href
			break
		}
	}

	for _, entry := range feed.Entries {
		// The package id lives in the entry title, not the properties.
		id := strings.TrimSpace(entry.Title)
		if id == "" {
			continue
		}
		props := entry.Properties

		name := props.Title
		if name == "" {
			name = id
		}
		publisher := props.Authors
		if publisher == "" {
			if head, _, ok := strings.Cut(id, "."); ok {
				publisher = head
			}
		}

		rec := core.PackageRecord{
			PackageID:   id,
			Name:        name,
			Version:     props.Version,
			Manager:     core.ManagerChocolatey,
			Description: props.Description,
			Publisher:   publisher,
			Homepage:    props.ProjectURL,
			License:     props.LicenseURL,
			Tags:        strings.Fields(props.Tags),
		}
		rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
		page.entries = append(page.entries, rec)
	}
	return page, nil
}
