package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/winreg"
)

func TestFingerprintManager(t *testing.T) {
	tests := []struct {
		source   string
		location string
		want     core.Manager
	}{
		{`C:\Users\x\AppData\Local\Temp\WinGet\cache`, "", core.ManagerWinGet},
		{`C:\ProgramData\AppInstaller\`, "", core.ManagerWinGet},
		{`C:\ProgramData\chocolatey\lib\git`, "", core.ManagerChocolatey},
		{`D:\choco-staging`, "", core.ManagerChocolatey},
		{"", `C:\Users\x\scoop\apps\ripgrep\current`, core.ManagerScoop},
		{"", `C:\Program Files\WindowsApps\Spotify`, core.ManagerMSStore},
		{`C:\Downloads`, `C:\Program Files\Vim`, core.ManagerUnknown},
		{"", "", core.ManagerUnknown},
	}
	for _, tt := range tests {
		got := FingerprintManager(tt.source, tt.location)
		assert.Equal(t, tt.want, got, "source=%q location=%q", tt.source, tt.location)
	}
}

type stubScanner struct {
	entries []winreg.RawEntry
}

func (s stubScanner) Entries() ([]winreg.RawEntry, error) { return s.entries, nil }

func TestRegistryInventoryInstalled(t *testing.T) {
	scanner := stubScanner{entries: []winreg.RawEntry{
		{
			SubKey:         "Git.Git",
			DisplayName:    "Git",
			DisplayVersion: "2.44.0",
			Publisher:      "The Git Development Community",
			InstallSource:  `C:\Users\x\AppData\Local\Temp\WinGet\`,
			InstallDate:    "20240301",
		},
		{
			SubKey:         "{GUID}",
			DisplayName:    "Some Tool",
			DisplayVersion: "1.0",
		},
	}}

	inv := NewRegistryInventory(scanner, &winreg.Extractor{DirExists: func(string) bool { return false }}, nil)
	records, err := inv.Installed()
	require.NoError(t, err)
	require.Len(t, records, 2)

	git := records[0]
	assert.True(t, git.IsInstalled)
	assert.Equal(t, "2.44.0", git.InstalledVersion)
	assert.Equal(t, core.ManagerWinGet, git.InstallSource)
	assert.Equal(t, "20240301", git.InstallDate)

	assert.Equal(t, core.ManagerUnknown, records[1].InstallSource)
}

func TestRegistryInventoryEmptyMachine(t *testing.T) {
	inv := NewRegistryInventory(stubScanner{}, nil, nil)
	records, err := inv.Installed()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScoopInventoryInstalled(t *testing.T) {
	apps := t.TempDir()

	current := filepath.Join(apps, "ripgrep", "current")
	require.NoError(t, os.MkdirAll(current, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(current, "manifest.json"), []byte(`{
		"version": "14.1.0",
		"description": "search tool",
		"license": "Unlicense"
	}`), 0o644))

	// The scoop app itself and apps without a manifest are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(apps, "scoop", "current"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(apps, "half-installed", "current"), 0o755))

	inv := NewScoopInventory(apps, nil)
	records, err := inv.Installed()
	require.NoError(t, err)
	require.Len(t, records, 1)

	rg := records[0]
	assert.Equal(t, "ripgrep", rg.PackageID)
	assert.True(t, rg.IsInstalled)
	assert.Equal(t, "14.1.0", rg.InstalledVersion)
	assert.Equal(t, core.ManagerScoop, rg.InstallSource)
	assert.Equal(t, current, rg.InstallLocation)
}

func TestScoopInventoryMissingDir(t *testing.T) {
	inv := NewScoopInventory(filepath.Join(t.TempDir(), "nope"), nil)
	records, err := inv.Installed()
	require.NoError(t, err)
	assert.Empty(t, records)
}
