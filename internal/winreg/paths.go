package winreg

import (
	"os"
	"regexp"
	"strings"
)

// versionSubdirPattern matches final path segments that are version or
// architecture subdirectories rather than the app root: "9.1"/"v2" style
// version dirs, "bin", "app", "x64", "win32", "install", "uninstall".
var versionSubdirPattern = regexp.MustCompile(`(?i)^(v?\d+(\.\d+)*|bin|app|x\d{2,3}|win\d+|install|uninstall)$`)

// versionedNamePattern matches "vim91"/"go1.22.1" style segments: an app name
// followed by version digits. These walk up only when the parent directory
// carries the same name, so `...\Vim\vim91` resolves while an app installed
// directly as `...\Python312` stays put.
var versionedNamePattern = regexp.MustCompile(`(?i)^([a-z]+)\d[\d.]*$`)

// commandPathPattern extracts a directory from an uninstall/install command
// string: optional leading quote, a drive letter, then everything up to the
// last backslash before a trailing executable name.
var commandPathPattern = regexp.MustCompile(`(?i)^\s*"?([a-z]:\\.*\\)[^\\"]*\.exe`)

// Extractor derives an installation directory from a raw registry entry.
// Registry paths are always backslash-separated, so segment handling is done
// explicitly rather than through filepath (which is host-OS dependent).
// DirExists is swappable for tests; it defaults to an os.Stat check.
type Extractor struct {
	DirExists func(string) bool
}

// NewExtractor returns an Extractor backed by the real filesystem.
func NewExtractor() *Extractor {
	return &Extractor{DirExists: func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && info.IsDir()
	}}
}

// InstallLocation resolves the best-effort install directory for an entry:
//
//  1. InstallLocation, when the directory exists.
//  2. InstallPath, when the directory exists.
//  3. A directory parsed out of UninstallString, then InstallString.
//  4. Smart parent selection: when the extracted directory's final segment
//     looks like a version/arch subdirectory, walk up exactly one level so
//     `...\Vim\vim91` resolves to `...\Vim` without ever collapsing to
//     `C:\Program Files`.
//
// Returns "" when no candidate directory exists on disk.
func (e *Extractor) InstallLocation(entry RawEntry) string {
	for _, direct := range []string{entry.InstallLocation, entry.InstallPath} {
		dir := trimDir(direct)
		if dir != "" && e.DirExists(dir) {
			return e.smartParent(dir)
		}
	}

	for _, command := range []string{entry.UninstallString, entry.InstallString} {
		dir := parseCommandDir(command)
		if dir != "" && e.DirExists(dir) {
			return e.smartParent(dir)
		}
	}

	return ""
}

func trimDir(p string) string {
	return strings.TrimRight(strings.TrimSpace(p), `\`)
}

// parseCommandDir pulls a directory out of a command string such as
// `"C:\Program Files\Vim\vim91\uninstall.exe" /S`.
func parseCommandDir(command string) string {
	if command == "" {
		return ""
	}
	m := commandPathPattern.FindStringSubmatch(command)
	if m == nil {
		return ""
	}
	return trimDir(m[1])
}

// smartParent walks up one level when the final segment is a version or
// architecture subdirectory. One level only: that turns `...\Vim\vim91` into
// `...\Vim` but never climbs from a versioned vendor dir to `C:\Program
// Files` itself.
func (e *Extractor) smartParent(dir string) string {
	idx := strings.LastIndexByte(dir, '\\')
	if idx <= 0 {
		return dir
	}

	base := dir[idx+1:]
	parent := dir[:idx]
	if !isVersionSubdir(base, parent) {
		return dir
	}
	// Never climb above a drive root like `C:`.
	if strings.HasSuffix(parent, ":") || !strings.Contains(parent, `\`) {
		return dir
	}
	if e.DirExists != nil && !e.DirExists(parent) {
		return dir
	}
	return parent
}

func isVersionSubdir(base, parent string) bool {
	if versionSubdirPattern.MatchString(base) {
		return true
	}
	m := versionedNamePattern.FindStringSubmatch(base)
	if m == nil {
		return false
	}
	parentBase := parent[strings.LastIndexByte(parent, '\\')+1:]
	return strings.HasPrefix(strings.ToLower(parentBase), strings.ToLower(m[1]))
}
