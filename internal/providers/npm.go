package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// DefaultNPMRegistryURL is the public npm registry.
const DefaultNPMRegistryURL = "https://registry.npmjs.org"

// DefaultNPMKeywords drives the popular-set fetch. The registry has no
// "all packages" endpoint, so the catalog is a bounded sample built from
// keyword searches.
var DefaultNPMKeywords = []string{
	"framework", "library", "react", "vue", "angular", "express",
	"typescript", "webpack", "babel", "eslint", "jest", "node",
	"build", "cli", "util", "tool", "test", "http", "server",
}

const npmSearchPageSize = 250

// NPMProvider is lazy: FetchAll yields a bounded popular set and FetchOne
// hits the registry for exact metadata. The catalog is never mirrored.
type NPMProvider struct {
	stalePolicy
	// BaseURL is overridable for tests.
	BaseURL  string
	Keywords []string
	Limit    int
	http     *httpClient
	log      *zap.Logger
}

func NewNPMProvider(log *zap.Logger) *NPMProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &NPMProvider{
		stalePolicy: stalePolicy{maxAge: 0}, // on demand only
		BaseURL:     DefaultNPMRegistryURL,
		Keywords:    DefaultNPMKeywords,
		Limit:       1000,
		http:        newHTTPClient(log),
		log:         log,
	}
}

func (p *NPMProvider) Manager() core.Manager { return core.ManagerNPM }

type npmSearchResponse struct {
	Objects []struct {
		Package npmSearchPackage `json:"package"`
	} `json:"objects"`
}

type npmSearchPackage struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Publisher   struct {
		Username string `json:"username"`
	} `json:"publisher"`
	Links struct {
		Homepage string `json:"homepage"`
		NPM      string `json:"npm"`
	} `json:"links"`
}

// FetchAll issues one search per configured keyword, deduping on package
// name, until Limit records have been emitted.
func (p *NPMProvider) FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error {
	seen := make(map[string]bool)
	emitted := 0

	for _, keyword := range p.Keywords {
		if emitted >= p.Limit {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		u := fmt.Sprintf("%s/-/v1/search?%s", p.BaseURL, url.Values{
			"text": {keyword},
			"size": {fmt.Sprint(npmSearchPageSize)},
		}.Encode())
		body, err := p.http.get(ctx, u, "application/json")
		if err != nil {
			// One failed keyword is not fatal; the rest still contribute.
			p.log.Warn("npm search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}

		var resp npmSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return core.WrapError(core.KindProviderParse, err, "npm search response")
		}

		for _, obj := range resp.Objects {
			pkg := obj.Package
			if pkg.Name == "" || seen[pkg.Name] {
				continue
			}
			seen[pkg.Name] = true

			if err := emit(npmRecord(pkg)); err != nil {
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

type npmPackageDoc struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Keywords    []string          `json:"keywords"`
	License     json.RawMessage   `json:"license"`
	Homepage    string            `json:"homepage"`
	DistTags    map[string]string `json:"dist-tags"`
	Versions    map[string]struct {
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
	} `json:"versions"`
	Author struct {
		Name string `json:"name"`
	} `json:"author"`
}

// FetchOne fetches the full registry document for a package. Returns
// nil, nil on 404.
func (p *NPMProvider) FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error) {
	body, err := p.http.get(ctx, fmt.Sprintf("%s/%s", p.BaseURL, url.PathEscape(packageID)), "application/json")
	if err != nil {
		if isStatus(err, 404) {
			return nil, nil
		}
		return nil, core.WrapError(core.KindProviderUnavailable, err, "npm registry unreachable")
	}

	var doc npmPackageDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, core.WrapError(core.KindProviderParse, err, "npm package document")
	}
	if doc.Name == "" {
		return nil, nil
	}

	latest := doc.DistTags["latest"]
	desc := doc.Description
	keywords := doc.Keywords
	if v, ok := doc.Versions[latest]; ok {
		if v.Description != "" {
			desc = v.Description
		}
		if len(v.Keywords) > 0 {
			keywords = v.Keywords
		}
	}

	rec := core.PackageRecord{
		PackageID:   doc.Name,
		Name:        doc.Name,
		Version:     latest,
		Manager:     core.ManagerNPM,
		Description: desc,
		Publisher:   doc.Author.Name,
		Homepage:    doc.Homepage,
		License:     npmLicenseString(doc.License),
		Tags:        keywords,
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return &rec, nil
}

func npmRecord(pkg npmSearchPackage) core.PackageRecord {
	homepage := pkg.Links.Homepage
	if homepage == "" {
		homepage = pkg.Links.NPM
	}
	rec := core.PackageRecord{
		PackageID:   pkg.Name,
		Name:        pkg.Name,
		Version:     pkg.Version,
		Manager:     core.ManagerNPM,
		Description: pkg.Description,
		Publisher:   pkg.Publisher.Username,
		Homepage:    homepage,
		Tags:        pkg.Keywords,
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return rec
}

// npmLicenseString handles both the modern string form and the legacy
// {"type": ..., "url": ...} object form.
func npmLicenseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Type
	}
	return ""
}
