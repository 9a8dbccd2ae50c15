package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/runner"
)

// ListInstalled asks a manager's own CLI what it has installed. Used to
// cross-check the registry-derived inventory; managers without a listing
// command here are covered elsewhere (scoop by its apps directory, cargo by
// its install list being source-builds only).
func (e *Engine) ListInstalled(ctx context.Context, manager core.Manager) ([]core.PackageRecord, error) {
	var spec runner.Spec
	switch manager {
	case core.ManagerWinGet:
		spec = runner.Spec{Args: []string{"list", "--accept-source-agreements", "--disable-interactivity"}}
	case core.ManagerChocolatey:
		spec = runner.Spec{Args: []string{"list", "-r"}}
	case core.ManagerNPM:
		spec = runner.Spec{Args: []string{"list", "-g", "--json", "--depth=0"}, UseShell: true}
	default:
		return nil, core.NewError(core.KindProviderUnavailable, "manager %q has no installed-listing command", manager)
	}
	spec.Name, _ = manager.Binary()

	res, err := e.runner.Run(ctx, spec)
	if err != nil {
		return nil, core.WrapError(core.KindProviderUnavailable, err, "%s list failed", spec.Name)
	}

	switch manager {
	case core.ManagerWinGet:
		return parseWinGetList(res.Stdout), nil
	case core.ManagerChocolatey:
		return parseChocoList(res.Stdout), nil
	default:
		return parseNPMList(res.Stdout)
	}
}

// parseWinGetList parses winget's fixed-width table. Column boundaries come
// from the header row; rows before the dashed separator are noise (progress
// spinners, source agreement text).
func parseWinGetList(stdout string) []core.PackageRecord {
	lines := strings.Split(stdout, "\n")

	headerIdx := -1
	var idStart, versionStart int
	for i, line := range lines {
		idCol := strings.Index(line, "Id")
		verCol := strings.Index(line, "Version")
		if strings.HasPrefix(strings.TrimSpace(line), "Name") && idCol > 0 && verCol > idCol {
			headerIdx, idStart, versionStart = i, idCol, verCol
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	var records []core.PackageRecord
	for _, line := range lines[headerIdx+1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "---") {
			continue
		}
		if len(line) <= idStart {
			continue
		}

		name := strings.TrimSpace(line[:idStart])
		rest := line[idStart:]
		var id, version string
		if len(line) > versionStart {
			id = strings.TrimSpace(line[idStart:versionStart])
			version = firstField(line[versionStart:])
		} else {
			id = firstField(rest)
		}
		if id == "" {
			continue
		}

		records = append(records, installedRecord(id, name, version, core.ManagerWinGet))
	}
	return records
}

// parseChocoList parses `choco list -r` limit-output: one "id|version" per
// line.
func parseChocoList(stdout string) []core.PackageRecord {
	var records []core.PackageRecord
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		id, version, ok := strings.Cut(line, "|")
		if !ok || id == "" {
			continue
		}
		records = append(records, installedRecord(id, id, version, core.ManagerChocolatey))
	}
	return records
}

// parseNPMList parses `npm list -g --json --depth=0`.
func parseNPMList(stdout string) ([]core.PackageRecord, error) {
	var doc struct {
		Dependencies map[string]struct {
			Version string `json:"version"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		return nil, core.WrapError(core.KindProviderParse, err, "unexpected npm list output")
	}

	records := make([]core.PackageRecord, 0, len(doc.Dependencies))
	for name, dep := range doc.Dependencies {
		records = append(records, installedRecord(name, name, dep.Version, core.ManagerNPM))
	}
	return records, nil
}

func installedRecord(id, name, version string, manager core.Manager) core.PackageRecord {
	return core.PackageRecord{
		PackageID:        id,
		Name:             name,
		Version:          version,
		Manager:          manager,
		IsInstalled:      true,
		InstalledVersion: version,
		InstallSource:    manager,
	}
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
