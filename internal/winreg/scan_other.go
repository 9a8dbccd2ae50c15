//go:build !windows

package winreg

type noopScanner struct{}

func newPlatformScanner() Scanner { return noopScanner{} }

// Entries returns an empty slice on non-Windows hosts.
func (noopScanner) Entries() ([]RawEntry, error) { return nil, nil }
