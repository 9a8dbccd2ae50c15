//go:build windows

package winreg

import (
	"golang.org/x/sys/windows/registry"
)

const uninstallPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`
const uninstallPathWow = `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`
const uninstallPathUser = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

type windowsScanner struct{}

func newPlatformScanner() Scanner { return windowsScanner{} }

// Entries enumerates all three Uninstall hives. Inaccessible subkeys are
// skipped; a missing hive is not an error. A machine with zero registered
// apps yields an empty slice.
func (windowsScanner) Entries() ([]RawEntry, error) {
	roots := []struct {
		key  registry.Key
		path string
	}{
		{registry.LOCAL_MACHINE, uninstallPath},
		{registry.LOCAL_MACHINE, uninstallPathWow},
		{registry.CURRENT_USER, uninstallPathUser},
	}

	var entries []RawEntry
	for _, root := range roots {
		k, err := registry.OpenKey(root.key, root.path, registry.READ)
		if err != nil {
			continue
		}

		names, err := k.ReadSubKeyNames(-1)
		if err != nil {
			k.Close()
			continue
		}

		for _, name := range names {
			sub, err := registry.OpenKey(k, name, registry.QUERY_VALUE)
			if err != nil {
				continue
			}

			entry := readEntry(sub, name)
			sub.Close()

			if entry.DisplayName != "" {
				entries = append(entries, entry)
			}
		}
		k.Close()
	}

	return entries, nil
}

func readEntry(k registry.Key, subKey string) RawEntry {
	get := func(name string) string {
		v, _, err := k.GetStringValue(name)
		if err != nil {
			return ""
		}
		return v
	}

	return RawEntry{
		SubKey:          subKey,
		DisplayName:     get("DisplayName"),
		DisplayVersion:  get("DisplayVersion"),
		Publisher:       get("Publisher"),
		InstallLocation: get("InstallLocation"),
		InstallSource:   get("InstallSource"),
		InstallDate:     get("InstallDate"),
		UninstallString: get("UninstallString"),
		InstallString:   get("InstallString"),
		InstallPath:     get("InstallPath"),
	}
}
