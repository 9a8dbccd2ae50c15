package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// Default crates.io endpoints.
const (
	DefaultCargoIndexURL = "https://index.crates.io"
	DefaultCargoAPIURL   = "https://crates.io/api/v1"
)

// DefaultCargoKeywords drives the popular-set fetch against the crates.io
// search API.
var DefaultCargoKeywords = []string{
	"serde", "tokio", "async", "web", "http", "cli", "parser", "crypto",
	"database", "logging", "testing", "serialization", "networking", "json",
	"api", "framework", "library", "utility", "tool", "macros", "derive",
	"error", "config", "time", "random", "collections",
}

const cargoSearchPageSize = 100

// CargoProvider reads exact crate metadata from the sparse index and builds
// its popular set from the crates.io search API.
type CargoProvider struct {
	stalePolicy
	// IndexURL and APIURL are overridable for tests.
	IndexURL string
	APIURL   string
	Keywords []string
	Limit    int
	http     *httpClient
	log      *zap.Logger
}

func NewCargoProvider(log *zap.Logger) *CargoProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &CargoProvider{
		stalePolicy: stalePolicy{maxAge: 0}, // on demand only
		IndexURL:    DefaultCargoIndexURL,
		APIURL:      DefaultCargoAPIURL,
		Keywords:    DefaultCargoKeywords,
		Limit:       1000,
		http:        newHTTPClient(log),
		log:         log,
	}
}

func (p *CargoProvider) Manager() core.Manager { return core.ManagerCargo }

// cargoIndexPrefix maps a crate name to its sparse-index directory:
// length-1 names under 1/, length-2 under 2/, length-3 under 3/<first>/,
// everything else under <first2>/<next2>/.
func cargoIndexPrefix(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return fmt.Sprintf("3/%s/%s", name[:1], name)
	default:
		return fmt.Sprintf("%s/%s/%s", name[:2], name[2:4], name)
	}
}

type cargoSearchResponse struct {
	Crates []struct {
		Name          string   `json:"name"`
		MaxVersion    string   `json:"max_version"`
		NewestVersion string   `json:"newest_version"`
		Description   string   `json:"description"`
		Homepage      string   `json:"homepage"`
		Repository    string   `json:"repository"`
		Keywords      []string `json:"keywords"`
	} `json:"crates"`
}

// FetchAll builds the popular set from keyword searches, deduping on crate
// name, until Limit records have been emitted.
func (p *CargoProvider) FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error {
	seen := make(map[string]bool)
	emitted := 0

	for _, keyword := range p.Keywords {
		if emitted >= p.Limit {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		u := fmt.Sprintf("%s/crates?%s", p.APIURL, url.Values{
			"q":        {keyword},
			"per_page": {fmt.Sprint(cargoSearchPageSize)},
		}.Encode())
		body, err := p.http.get(ctx, u, "application/json")
		if err != nil {
			p.log.Warn("crates.io search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}

		var resp cargoSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return core.WrapError(core.KindProviderParse, err, "crates.io search response")
		}

		for _, crate := range resp.Crates {
			if crate.Name == "" || seen[crate.Name] {
				continue
			}
			seen[crate.Name] = true

			version := crate.MaxVersion
			if version == "" {
				version = crate.NewestVersion
			}
			homepage := crate.Homepage
			if homepage == "" {
				homepage = crate.Repository
			}
			rec := core.PackageRecord{
				PackageID:   crate.Name,
				Name:        crate.Name,
				Version:     version,
				Manager:     core.ManagerCargo,
				Description: crate.Description,
				Homepage:    homepage,
				Tags:        crate.Keywords,
			}
			rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)

			if err := emit(rec); err != nil {
				return err
			}
			emitted++
			if emitted >= p.Limit {
				break
			}
		}
	}
	return nil
}

// cargoIndexLine is one published version in an NDJSON index file.
type cargoIndexLine struct {
	Name    string `json:"name"`
	Version string `json:"vers"`
	Yanked  bool   `json:"yanked"`
}

// FetchOne reads the crate's sparse-index file. Yanked versions are
// filtered out; the highest surviving version becomes Version and the rest
// populate Versions. Returns nil, nil when the crate does not exist.
func (p *CargoProvider) FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error) {
	prefix := cargoIndexPrefix(packageID)
	if prefix == "" {
		return nil, nil
	}

	body, err := p.http.get(ctx, fmt.Sprintf("%s/%s", p.IndexURL, prefix), "")
	if err != nil {
		if isStatus(err, 404) {
			return nil, nil
		}
		return nil, core.WrapError(core.KindProviderUnavailable, err, "cargo sparse index unreachable")
	}

	var versions []string
	name := packageID
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry cargoIndexLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, core.WrapError(core.KindProviderParse, err, "cargo index line")
		}
		if entry.Yanked {
			continue
		}
		if entry.Name != "" {
			name = entry.Name
		}
		versions = append(versions, entry.Version)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.WrapError(core.KindProviderParse, err, "cargo index")
	}
	if len(versions) == 0 {
		// Every version yanked: the crate is effectively gone.
		return nil, nil
	}

	latest := versions[0]
	for _, v := range versions[1:] {
		if core.CompareVersions(v, latest) > 0 {
			latest = v
		}
	}

	rec := core.PackageRecord{
		PackageID: name,
		Name:      name,
		Version:   latest,
		Manager:   core.ManagerCargo,
		Versions:  versions,
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return &rec, nil
}
