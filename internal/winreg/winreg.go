// Package winreg enumerates the Windows Uninstall registry keys and derives
// best-effort installation paths from the raw values found there.
package winreg

// RawEntry is one application entry read from an Uninstall key. Only
// DisplayName is guaranteed non-empty; entries without one are skipped at
// scan time.
type RawEntry struct {
	// SubKey is the registry subkey name the entry was read from, often a
	// product GUID or the package id for manager-installed apps.
	SubKey string

	DisplayName     string
	DisplayVersion  string
	Publisher       string
	InstallLocation string
	InstallSource   string
	InstallDate     string
	UninstallString string
	InstallString   string
	InstallPath     string
}

// Scanner yields raw Uninstall entries. The Windows implementation reads the
// HKLM native, HKLM WOW6432Node and HKCU hives; elsewhere the scanner is
// empty so the rest of the core stays testable.
type Scanner interface {
	Entries() ([]RawEntry, error)
}

// NewScanner returns the platform scanner.
func NewScanner() Scanner { return newPlatformScanner() }
