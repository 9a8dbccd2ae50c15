package resolve

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/cache"
	"github.com/blackwell-systems/winpacman/internal/core"
)

func openCacheWith(t *testing.T, records ...core.PackageRecord) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	byManager := map[core.Manager][]core.PackageRecord{}
	for _, r := range records {
		byManager[r.Manager] = append(byManager[r.Manager], r)
	}
	for manager, slice := range byManager {
		slice := slice
		_, err := c.Refresh(context.Background(), manager, func(emit func(core.PackageRecord) error) error {
			for _, r := range slice {
				if err := emit(r); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
	return c
}

func catalog(id, name string, manager core.Manager) core.PackageRecord {
	rec := core.PackageRecord{PackageID: id, Name: name, Version: "1.0", Manager: manager}
	rec.Normalize()
	return rec
}

type stubEvidence map[string]Verdict

func (s stubEvidence) Installed(ctx context.Context, manager core.Manager, id string) Verdict {
	return s[id]
}

func TestResolveRewritesUnknownFromCache(t *testing.T) {
	c := openCacheWith(t, catalog("Vim.Vim", "Vim", core.ManagerWinGet))
	r := New(c, nil, nil)

	records := []core.PackageRecord{{
		PackageID:     "Vim.Vim",
		Name:          "Vim 9.1",
		Manager:       core.ManagerUnknown,
		InstallSource: core.ManagerUnknown,
		IsInstalled:   true,
	}}

	got := r.Resolve(context.Background(), records)
	assert.Equal(t, core.ManagerWinGet, got[0].InstallSource)
	assert.Equal(t, core.ManagerWinGet, got[0].Manager)
}

func TestResolveFallsBackToDisplayName(t *testing.T) {
	c := openCacheWith(t, catalog("git", "Git for Windows", core.ManagerChocolatey))
	r := New(c, nil, nil)

	records := []core.PackageRecord{{
		PackageID:     "{9FE5-GUID}",
		Name:          "Git for Windows",
		Manager:       core.ManagerUnknown,
		InstallSource: core.ManagerUnknown,
	}}

	got := r.Resolve(context.Background(), records)
	assert.Equal(t, core.ManagerChocolatey, got[0].InstallSource)
}

func TestResolveLeavesTrueUnknowns(t *testing.T) {
	c := openCacheWith(t)
	r := New(c, nil, nil)

	records := []core.PackageRecord{{
		PackageID:     "{GUID}",
		Name:          "Bespoke Internal Tool",
		InstallSource: core.ManagerUnknown,
	}}

	got := r.Resolve(context.Background(), records)
	// Never invent an attribution.
	assert.Equal(t, core.ManagerUnknown, got[0].InstallSource)
}

func TestResolveDowngradesContradictedFingerprints(t *testing.T) {
	c := openCacheWith(t)
	ev := stubEvidence{
		"Git.Git":     VerdictConfirmed,
		"Fake.WinGet": VerdictDenied,
		"notreally":   VerdictDenied,
	}
	r := New(c, ev, nil)

	records := []core.PackageRecord{
		{PackageID: "Git.Git", Name: "Git", Manager: core.ManagerWinGet, InstallSource: core.ManagerWinGet},
		{PackageID: "Fake.WinGet", Name: "Fake", Manager: core.ManagerWinGet, InstallSource: core.ManagerWinGet},
		{PackageID: "notreally", Name: "Not Really", Manager: core.ManagerChocolatey, InstallSource: core.ManagerChocolatey},
	}

	got := r.Resolve(context.Background(), records)

	// Confirmed fingerprint stands.
	assert.Equal(t, core.ManagerWinGet, got[0].InstallSource)
	// Denied fingerprints downgrade to unknown rather than guessing.
	assert.Equal(t, core.ManagerUnknown, got[1].InstallSource)
	assert.Equal(t, core.ManagerUnknown, got[2].InstallSource)
}

func TestResolveKeepsFingerprintOnInconclusiveEvidence(t *testing.T) {
	c := openCacheWith(t)
	// No entry means VerdictUnknown: the source could not check.
	r := New(c, stubEvidence{}, nil)

	records := []core.PackageRecord{
		{PackageID: "Git.Git", Manager: core.ManagerWinGet, InstallSource: core.ManagerWinGet},
		{PackageID: "vim", Manager: core.ManagerChocolatey, InstallSource: core.ManagerChocolatey},
	}

	got := r.Resolve(context.Background(), records)
	// Absence of evidence is not contradiction.
	assert.Equal(t, core.ManagerWinGet, got[0].InstallSource)
	assert.Equal(t, core.ManagerChocolatey, got[1].InstallSource)
}

func TestResolveTrustsFingerprintsWithoutEvidence(t *testing.T) {
	c := openCacheWith(t)
	r := New(c, nil, nil)

	records := []core.PackageRecord{
		{PackageID: "Git.Git", Manager: core.ManagerWinGet, InstallSource: core.ManagerWinGet},
	}
	got := r.Resolve(context.Background(), records)
	assert.Equal(t, core.ManagerWinGet, got[0].InstallSource)
}

func TestDiskEvidenceChocolatey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "git.2.44.0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ripgrep"), 0o755))

	ctx := context.Background()
	ev := NewDiskEvidence("", dir, nil)
	assert.Equal(t, VerdictConfirmed, ev.Installed(ctx, core.ManagerChocolatey, "git"))
	assert.Equal(t, VerdictConfirmed, ev.Installed(ctx, core.ManagerChocolatey, "GIT"))
	assert.Equal(t, VerdictConfirmed, ev.Installed(ctx, core.ManagerChocolatey, "ripgrep"))
	assert.Equal(t, VerdictDenied, ev.Installed(ctx, core.ManagerChocolatey, "vim"))
	// "gi" must not match "git.2.44.0".
	assert.Equal(t, VerdictDenied, ev.Installed(ctx, core.ManagerChocolatey, "gi"))
}

func TestDiskEvidenceWinGet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "installed.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE ids (rowid INTEGER PRIMARY KEY, id TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO ids (id) VALUES ('Git.Git')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()
	ev := NewDiskEvidence(dbPath, "", nil)
	defer ev.Close()

	assert.Equal(t, VerdictConfirmed, ev.Installed(ctx, core.ManagerWinGet, "Git.Git"))
	assert.Equal(t, VerdictConfirmed, ev.Installed(ctx, core.ManagerWinGet, "git.git"))
	assert.Equal(t, VerdictDenied, ev.Installed(ctx, core.ManagerWinGet, "Vim.Vim"))
}

func TestDiskEvidenceMissingSourcesAreInconclusive(t *testing.T) {
	ctx := context.Background()
	ev := NewDiskEvidence(filepath.Join(t.TempDir(), "nope.db"), filepath.Join(t.TempDir(), "nope"), nil)

	// A source that is not there cannot deny anything.
	assert.Equal(t, VerdictUnknown, ev.Installed(ctx, core.ManagerWinGet, "Git.Git"))
	assert.Equal(t, VerdictUnknown, ev.Installed(ctx, core.ManagerChocolatey, "git"))
	assert.Equal(t, VerdictUnknown, ev.Installed(ctx, core.ManagerScoop, "ripgrep"))
}

func TestChainEvidenceFirstDecisiveVerdictWins(t *testing.T) {
	ctx := context.Background()
	chain := ChainEvidence(
		stubEvidence{"Git.Git": VerdictUnknown},
		stubEvidence{"Git.Git": VerdictConfirmed, "Fake.WinGet": VerdictDenied},
		stubEvidence{"Git.Git": VerdictDenied},
	)

	assert.Equal(t, VerdictConfirmed, chain.Installed(ctx, core.ManagerWinGet, "Git.Git"))
	assert.Equal(t, VerdictDenied, chain.Installed(ctx, core.ManagerWinGet, "Fake.WinGet"))
	assert.Equal(t, VerdictUnknown, chain.Installed(ctx, core.ManagerWinGet, "unseen"))
}
