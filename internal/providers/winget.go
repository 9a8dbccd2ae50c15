package providers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/runner"
)

// wingetManifest is the subset of the manifest schema the catalog needs.
// Loose types on version, license and tags: YAML happily yields integers and
// floats for values that look numeric.
type wingetManifest struct {
	PackageIdentifier string `yaml:"PackageIdentifier"`
	PackageVersion    any    `yaml:"PackageVersion"`
	PackageName       string `yaml:"PackageName"`
	Publisher         string `yaml:"Publisher"`
	ShortDescription  string `yaml:"ShortDescription"`
	Description       string `yaml:"Description"`
	PackageURL        string `yaml:"PackageUrl"`
	License           any    `yaml:"License"`
	Tags              []any  `yaml:"Tags"`
	ManifestType      string `yaml:"ManifestType"`
}

// WinGetProvider builds the WinGet catalog from a local clone of the
// manifest repository (manifests/<letter>/<Publisher>/<Name>/<Version>/).
// On-demand lookups shell out to `winget show`.
type WinGetProvider struct {
	stalePolicy
	manifestRoot string
	run          *runner.Runner
	log          *zap.Logger
}

// NewWinGetProvider returns a provider rooted at the given manifest clone.
// run may be nil; FetchOne then reports the provider unavailable.
func NewWinGetProvider(manifestRoot string, run *runner.Runner, log *zap.Logger) *WinGetProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &WinGetProvider{
		stalePolicy:  stalePolicy{maxAge: 24 * time.Hour},
		manifestRoot: manifestRoot,
		run:          run,
		log:          log,
	}
}

func (p *WinGetProvider) Manager() core.Manager { return core.ManagerWinGet }

// FetchAll walks the manifest tree in three stages: scan (skip locale
// manifests), collapse (dedupe on package id + version, latest version
// wins), emit (one record per package id, earlier versions retained on
// Versions). A tree of several hundred thousand files collapses to roughly
// ten thousand records.
func (p *WinGetProvider) FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error {
	root := p.manifestRoot
	if root == "" {
		return core.NewError(core.KindProviderUnavailable, "winget manifest root not configured")
	}
	if _, err := os.Stat(root); err != nil {
		return core.WrapError(core.KindProviderUnavailable, err, "winget manifest root not readable")
	}

	type collected struct {
		record   core.PackageRecord
		versions map[string]bool
	}
	byID := make(map[string]*collected)

	var scanned, parseErrors int
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			// Cheap cancellation point on directory boundaries.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			return nil
		}
		// Locale manifests carry translations only.
		if strings.Contains(name, ".locale.") {
			return nil
		}
		scanned++

		m, err := p.parseManifest(path)
		if err != nil {
			parseErrors++
			return nil
		}
		if m.PackageIdentifier == "" {
			return nil
		}
		if strings.EqualFold(m.ManifestType, "installer") || strings.Contains(name, ".installer.") {
			return nil
		}

		version := coerceString(m.PackageVersion)
		c := byID[m.PackageIdentifier]
		if c == nil {
			c = &collected{versions: make(map[string]bool)}
			byID[m.PackageIdentifier] = c
		}
		if c.versions[version] {
			return nil
		}
		c.versions[version] = true

		if c.record.PackageID == "" || core.CompareVersions(version, c.record.Version) > 0 {
			c.record = manifestRecord(m, version)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	if parseErrors > 0 {
		p.log.Warn("skipped malformed winget manifests",
			zap.Int("skipped", parseErrors),
			zap.Int("scanned", scanned))
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if i%512 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		c := byID[id]
		rec := c.record
		rec.Versions = sortedVersions(c.versions)
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// FetchOne shells out to `winget show --id` and parses the "Key: Value"
// detail lines.
func (p *WinGetProvider) FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error) {
	if p.run == nil {
		return nil, core.NewError(core.KindProviderUnavailable, "winget runner not configured")
	}

	res, err := p.run.Run(ctx, runner.Spec{
		Name:    "winget",
		Args:    []string{"show", "--id", packageID, "--accept-source-agreements"},
		Timeout: runner.ListTimeout,
	})
	if err != nil {
		return nil, core.WrapError(core.KindProviderUnavailable, err, "winget show failed")
	}
	if res.Code != 0 {
		// winget exits non-zero for unknown ids.
		return nil, nil
	}

	fields := parseColonFields(res.Stdout)
	name := fields["name"]
	if name == "" {
		name = packageID
	}
	rec := core.PackageRecord{
		PackageID:   packageID,
		Name:        name,
		Version:     fields["version"],
		Manager:     core.ManagerWinGet,
		Description: fields["description"],
		Publisher:   fields["publisher"],
		Homepage:    fields["homepage"],
		License:     fields["license"],
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return &rec, nil
}

func (p *WinGetProvider) parseManifest(path string) (*wingetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m wingetManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, core.WrapError(core.KindProviderParse, err, "manifest %s", path)
	}
	return &m, nil
}

func manifestRecord(m *wingetManifest, version string) core.PackageRecord {
	name := m.PackageName
	if name == "" {
		name = m.PackageIdentifier
	}
	desc := m.Description
	if desc == "" {
		desc = m.ShortDescription
	}

	tags := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		if s := coerceString(t); s != "" {
			tags = append(tags, s)
		}
	}

	rec := core.PackageRecord{
		PackageID:   m.PackageIdentifier,
		Name:        name,
		Version:     version,
		Manager:     core.ManagerWinGet,
		Description: desc,
		Publisher:   m.Publisher,
		Homepage:    m.PackageURL,
		License:     coerceString(m.License),
		Tags:        tags,
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return rec
}

// coerceString renders scalar YAML values as strings. Versions like 1.0 or
// 2024 decode as float64/int without this.
func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func sortedVersions(set map[string]bool) []string {
	versions := make([]string, 0, len(set))
	for v := range set {
		versions = append(versions, v)
	}
	core.SortVersionsDesc(versions)
	return versions
}

// parseColonFields parses "Key: Value" CLI output into a lowercase-keyed
// map. Indented continuation lines are ignored.
func parseColonFields(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(key))
		if _, seen := fields[k]; !seen {
			fields[k] = strings.TrimSpace(value)
		}
	}
	return fields
}
