// Package core defines the canonical package record and the shared
// result/error types used across the winpacman core.
package core

import "fmt"

// Manager identifies a package ecosystem. MSStore and Unknown appear only as
// attribution on installed records; they never supply a catalog.
type Manager string

const (
	ManagerWinGet     Manager = "winget"
	ManagerChocolatey Manager = "chocolatey"
	ManagerScoop      Manager = "scoop"
	ManagerNPM        Manager = "npm"
	ManagerCargo      Manager = "cargo"
	ManagerMSStore    Manager = "msstore"
	ManagerUnknown    Manager = "unknown"
)

// CatalogManagers are the managers that can supply a catalog slice.
var CatalogManagers = []Manager{ManagerWinGet, ManagerChocolatey, ManagerScoop, ManagerNPM, ManagerCargo}

// ParseManager converts a string to a Manager. Unrecognized values map to
// Unknown without error so registry fingerprints can be fed through directly;
// use Valid when strictness is needed.
func ParseManager(s string) Manager {
	switch Manager(s) {
	case ManagerWinGet, ManagerChocolatey, ManagerScoop, ManagerNPM, ManagerCargo, ManagerMSStore, ManagerUnknown:
		return Manager(s)
	}
	return ManagerUnknown
}

// Valid reports whether m is a member of the closed manager set.
func (m Manager) Valid() bool {
	switch m {
	case ManagerWinGet, ManagerChocolatey, ManagerScoop, ManagerNPM, ManagerCargo, ManagerMSStore, ManagerUnknown:
		return true
	}
	return false
}

func (m Manager) String() string { return string(m) }

// Binary returns the CLI executable name for a catalog manager.
func (m Manager) Binary() (string, error) {
	switch m {
	case ManagerWinGet:
		return "winget", nil
	case ManagerChocolatey:
		return "choco", nil
	case ManagerScoop:
		return "scoop", nil
	case ManagerNPM:
		return "npm", nil
	case ManagerCargo:
		return "cargo", nil
	}
	return "", fmt.Errorf("manager %s has no CLI binary", m)
}
