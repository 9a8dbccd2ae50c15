package providers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/winreg"
)

// RegistryInventory converts the raw Uninstall-key scan into installed
// package records, attaching a best-effort manager fingerprint from path
// substrings. It is an inventory helper, not a catalog provider.
type RegistryInventory struct {
	scanner   winreg.Scanner
	extractor *winreg.Extractor
	log       *zap.Logger
}

func NewRegistryInventory(scanner winreg.Scanner, extractor *winreg.Extractor, log *zap.Logger) *RegistryInventory {
	if log == nil {
		log = zap.NewNop()
	}
	if extractor == nil {
		extractor = winreg.NewExtractor()
	}
	return &RegistryInventory{scanner: scanner, extractor: extractor, log: log}
}

// Installed returns one record per registry entry with a DisplayName. A
// machine with zero registered apps yields an empty slice without error.
func (inv *RegistryInventory) Installed() ([]core.PackageRecord, error) {
	entries, err := inv.scanner.Entries()
	if err != nil {
		return nil, core.WrapError(core.KindProviderUnavailable, err, "registry scan failed")
	}

	records := make([]core.PackageRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, inv.record(entry))
	}
	inv.log.Debug("registry inventory scanned", zap.Int("entries", len(records)))
	return records, nil
}

func (inv *RegistryInventory) record(entry winreg.RawEntry) core.PackageRecord {
	location := inv.extractor.InstallLocation(entry)
	source := FingerprintManager(entry.InstallSource, firstNonEmpty(location, entry.InstallLocation))

	rec := core.PackageRecord{
		PackageID:        entry.SubKey,
		Name:             entry.DisplayName,
		Version:          entry.DisplayVersion,
		Manager:          source,
		Publisher:        entry.Publisher,
		IsInstalled:      true,
		InstalledVersion: entry.DisplayVersion,
		InstallDate:      entry.InstallDate,
		InstallSource:    source,
		InstallLocation:  location,
		LastSeenAt:       time.Now(),
	}
	rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
	return rec
}

// FingerprintManager guesses the owning manager from registry path
// substrings. Unknown is a legitimate answer; the resolver refines it later.
func FingerprintManager(installSource, installLocation string) core.Manager {
	source := strings.ToLower(installSource)
	location := strings.ToLower(installLocation)

	switch {
	case strings.Contains(source, "winget"), strings.Contains(source, "appinstaller"):
		return core.ManagerWinGet
	case strings.Contains(source, "chocolatey"), strings.Contains(source, "choco"):
		return core.ManagerChocolatey
	case strings.Contains(location, "scoop"):
		return core.ManagerScoop
	case strings.Contains(location, "windowsapps"):
		return core.ManagerMSStore
	default:
		return core.ManagerUnknown
	}
}

// ScoopInventory reads installed Scoop apps from
// <apps>/<name>/current/manifest.json. Scoop deliberately never writes the
// Registry, so this is the only installed source for it.
type ScoopInventory struct {
	appsDir string
	log     *zap.Logger
}

// NewScoopInventory returns an inventory over the given apps directory,
// normally %USERPROFILE%\scoop\apps.
func NewScoopInventory(appsDir string, log *zap.Logger) *ScoopInventory {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoopInventory{appsDir: appsDir, log: log}
}

// Installed returns one record per app directory with a readable current
// manifest. A missing apps directory means Scoop is absent: empty, no error.
func (inv *ScoopInventory) Installed() ([]core.PackageRecord, error) {
	apps, err := os.ReadDir(inv.appsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.WrapError(core.KindProviderUnavailable, err, "scoop apps not readable")
	}

	var records []core.PackageRecord
	for _, app := range apps {
		if !app.IsDir() || app.Name() == "scoop" {
			continue
		}

		currentDir := filepath.Join(inv.appsDir, app.Name(), "current")
		data, err := os.ReadFile(filepath.Join(currentDir, "manifest.json"))
		if err != nil {
			continue
		}
		var m scoopManifest
		if err := json.Unmarshal(data, &m); err != nil {
			inv.log.Warn("malformed scoop app manifest", zap.String("app", app.Name()), zap.Error(err))
			continue
		}

		rec := core.PackageRecord{
			PackageID:        app.Name(),
			Name:             app.Name(),
			Version:          m.Version,
			Manager:          core.ManagerScoop,
			Description:      m.Description,
			Homepage:         m.Homepage,
			License:          string(m.License),
			IsInstalled:      true,
			InstalledVersion: m.Version,
			InstallSource:    core.ManagerScoop,
			InstallLocation:  currentDir,
			LastSeenAt:       time.Now(),
		}
		rec.SearchTokens = core.GenerateSearchTokens(rec.PackageID, rec.Name, rec.Description, rec.Tags)
		records = append(records, rec)
	}
	return records, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
