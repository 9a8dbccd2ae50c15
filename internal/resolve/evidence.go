package resolve

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// Verdict is an evidence source's answer about one package. Unknown means
// the source could not check (missing database, unreadable directory,
// unsupported manager) and must never be treated as a denial.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictConfirmed
	VerdictDenied
)

// Evidence answers whether a manager's own bookkeeping knows a package.
type Evidence interface {
	Installed(ctx context.Context, manager core.Manager, packageID string) Verdict
}

// evidenceChain consults sources in order and returns the first decisive
// verdict.
type evidenceChain []Evidence

func (c evidenceChain) Installed(ctx context.Context, manager core.Manager, packageID string) Verdict {
	for _, e := range c {
		if v := e.Installed(ctx, manager, packageID); v != VerdictUnknown {
			return v
		}
	}
	return VerdictUnknown
}

// ChainEvidence combines sources; earlier sources take precedence.
func ChainEvidence(sources ...Evidence) Evidence {
	return evidenceChain(sources)
}

// DefaultChocolateyEvidenceDir is where Chocolatey records one folder per
// installed package.
const DefaultChocolateyEvidenceDir = `C:\ProgramData\chocolatey\.chocolatey`

// DefaultWinGetTrackingDB locates the WinGet-owned installed.db under
// %LOCALAPPDATA%.
func DefaultWinGetTrackingDB() string {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		return ""
	}
	return filepath.Join(base,
		"Packages", "Microsoft.DesktopAppInstaller_8wekyb3d8bbwe", "LocalState", "installed.db")
}

// DiskEvidence reads manager-owned bookkeeping from its on-disk locations:
// the WinGet tracking database and the Chocolatey .chocolatey directory. A
// missing source yields VerdictUnknown.
type DiskEvidence struct {
	WinGetDBPath  string
	ChocolateyDir string
	log           *zap.Logger

	once sync.Once
	db   *sql.DB
}

func NewDiskEvidence(wingetDB, chocoDir string, log *zap.Logger) *DiskEvidence {
	if log == nil {
		log = zap.NewNop()
	}
	return &DiskEvidence{WinGetDBPath: wingetDB, ChocolateyDir: chocoDir, log: log}
}

func (e *DiskEvidence) Installed(ctx context.Context, manager core.Manager, packageID string) Verdict {
	switch manager {
	case core.ManagerWinGet:
		return e.winGetInstalled(ctx, packageID)
	case core.ManagerChocolatey:
		return e.chocolateyInstalled(packageID)
	}
	return VerdictUnknown
}

func (e *DiskEvidence) winGetInstalled(ctx context.Context, packageID string) Verdict {
	e.once.Do(e.openWinGetDB)
	if e.db == nil {
		return VerdictUnknown
	}

	var one int
	err := e.db.QueryRowContext(ctx,
		"SELECT 1 FROM ids WHERE id = ? COLLATE NOCASE LIMIT 1", packageID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return VerdictDenied
	case err != nil:
		e.log.Debug("winget tracking db query failed", zap.Error(err))
		return VerdictUnknown
	}
	return VerdictConfirmed
}

func (e *DiskEvidence) openWinGetDB() {
	if e.WinGetDBPath == "" {
		return
	}
	if _, err := os.Stat(e.WinGetDBPath); err != nil {
		return
	}

	// Read-only: this database belongs to WinGet.
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(e.WinGetDBPath)+"?mode=ro")
	if err != nil {
		e.log.Debug("failed to open winget tracking db", zap.Error(err))
		return
	}
	db.SetMaxOpenConns(1)
	e.db = db
}

// chocolateyInstalled looks for a .chocolatey folder named either the bare
// id or "<id>.<version>".
func (e *DiskEvidence) chocolateyInstalled(packageID string) Verdict {
	entries, err := os.ReadDir(e.ChocolateyDir)
	if err != nil {
		return VerdictUnknown
	}

	lower := strings.ToLower(packageID)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if name == lower || strings.HasPrefix(name, lower+".") {
			return VerdictConfirmed
		}
	}
	return VerdictDenied
}

// Close releases the tracking-database handle.
func (e *DiskEvidence) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}
