package providers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/runner"
)

// scoopManifest is one bucket JSON file. The license field may be a plain
// string or an object like {"identifier": "MIT", "url": ...}; scoopLicense
// flattens both to a string.
type scoopManifest struct {
	Version     string       `json:"version"`
	Description string       `json:"description"`
	Homepage    string       `json:"homepage"`
	License     scoopLicense `json:"license"`
}

type scoopLicense string

func (l *scoopLicense) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = scoopLicense(s)
		return nil
	}
	var obj struct {
		Identifier string `json:"identifier"`
		URL        string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unexpected shape; drop rather than fail the manifest.
		*l = ""
		return nil
	}
	if obj.Identifier != "" {
		*l = scoopLicense(obj.Identifier)
	} else {
		*l = scoopLicense(obj.URL)
	}
	return nil
}

// ScoopProvider reads local bucket manifests: one JSON file per package
// under <buckets>/<bucket>/bucket/*.json.
type ScoopProvider struct {
	stalePolicy
	bucketsDir string
	run        *runner.Runner
	log        *zap.Logger
}

// NewScoopProvider returns a provider over the given buckets directory,
// normally %USERPROFILE%\scoop\buckets. Scoop is local-only, so the catalog
// is only refreshed on explicit request.
func NewScoopProvider(bucketsDir string, run *runner.Runner, log *zap.Logger) *ScoopProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoopProvider{
		stalePolicy: stalePolicy{maxAge: 0},
		bucketsDir:  bucketsDir,
		run:         run,
		log:         log,
	}
}

func (p *ScoopProvider) Manager() core.Manager { return core.ManagerScoop }

func (p *ScoopProvider) FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error {
	buckets, err := os.ReadDir(p.bucketsDir)
	if err != nil {
		return core.WrapError(core.KindProviderUnavailable, err, "scoop buckets not readable")
	}

	var parseErrors int
	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Newer buckets keep manifests under bucket/; older ones at the root.
		dir := filepath.Join(p.bucketsDir, bucket.Name(), "bucket")
		if _, err := os.Stat(dir); err != nil {
			dir = filepath.Join(p.bucketsDir, bucket.Name())
		}

		manifests, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range manifests {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			rec, err := p.readManifest(dir, entry.Name())
			if err != nil {
				parseErrors++
				continue
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
	}

	if parseErrors > 0 {
		p.log.Warn("skipped malformed scoop manifests", zap.Int("skipped", parseErrors))
	}
	return nil
}

// FetchOne shells out to `scoop info` and parses its "Key: Value" output.
func (p *ScoopProvider) FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error) {
	if p.run == nil {
		return nil, core.NewError(core.KindProviderUnavailable, "scoop runner not configured")
	}

	res, err := p.run.Run(ctx, runner.Spec{
		Name:     "scoop",
		Args:     []string{"info", packageID},
		Timeout:  runner.ListTimeout,
		UseShell: true,
	})
	if err != nil {
		return nil, core.WrapError(core.KindProviderUnavailable, err, "scoop info failed")
	}
	if res.Code != 0 {
		return nil, nil
	}

	fields := parseColonFields(res.Stdout)
	if fields["name"] == "" {
		return nil, nil
	}
	rec := core.PackageRecord{
		PackageID:   fields["name"],
		Name:        fields["name"],
		Version:     fields["version"],
		Manager:     core.ManagerScoop,
		Description: fields["description"],
		Homepage:    fields["website"],
		License:     fields["license"],
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return &rec, nil
}

func (p *ScoopProvider) readManifest(dir, filename string) (core.PackageRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return core.PackageRecord{}, err
	}
	var m scoopManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return core.PackageRecord{}, core.WrapError(core.KindProviderParse, err, "manifest %s", filename)
	}

	id := strings.TrimSuffix(filename, ".json")
	rec := core.PackageRecord{
		PackageID:   id,
		Name:        id,
		Version:     m.Version,
		Manager:     core.ManagerScoop,
		Description: m.Description,
		Homepage:    m.Homepage,
		License:     string(m.License),
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return rec, nil
}
