package core

import (
	"sort"
	"strings"
	"time"
)

// PackageRecord is the canonical normalized package shape stored in the
// metadata cache. (PackageID, Manager) is unique across the cache.
type PackageRecord struct {
	PackageID   string
	Name        string
	Version     string
	Manager     Manager
	Description string
	Publisher   string
	Homepage    string
	License     string
	Tags        []string

	// SearchTokens is derived; regenerated on every upsert.
	SearchTokens string

	// Versions lists all known versions beyond the latest (used by WinGet
	// install targeting). Optional; empty for most providers.
	Versions []string

	// Installed-state fields. All empty/zero when IsInstalled is false.
	IsInstalled      bool
	InstalledVersion string
	InstallDate      string
	InstallSource    Manager
	InstallLocation  string

	LastSeenAt time.Time
}

// GenerateSearchTokens derives the persisted FTS token string: the
// lowercased, delimiter-split union of id, name, description and tags.
// The lowercased id and name are always included whole so exact lookups hit.
func GenerateSearchTokens(id, name, description string, tags []string) string {
	set := make(map[string]struct{})

	add := func(field string) {
		if field == "" {
			return
		}
		lower := strings.ToLower(field)
		set[lower] = struct{}{}
		r := strings.NewReplacer(".", " ", "-", " ", "_", " ")
		for _, tok := range strings.Fields(r.Replace(lower)) {
			set[tok] = struct{}{}
		}
	}

	add(id)
	add(name)
	add(description)
	for _, t := range tags {
		add(t)
	}

	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Normalize fills derived fields and clears installed-state fields when the
// record is not installed. Called by the cache before every upsert.
func (r *PackageRecord) Normalize() {
	r.SearchTokens = GenerateSearchTokens(r.PackageID, r.Name, r.Description, r.Tags)
	if !r.IsInstalled {
		r.InstalledVersion = ""
		r.InstallDate = ""
		r.InstallSource = ""
		r.InstallLocation = ""
	}
}

// SyncStatus is the outcome recorded for a provider sync.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncMetadata tracks per-provider sync state, unique by Provider.
type SyncMetadata struct {
	Provider     Manager
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       SyncStatus
	PackageCount int
	ErrorMessage string
}

// OpType is an install/uninstall discriminator.
type OpType string

const (
	OpInstall   OpType = "install"
	OpUninstall OpType = "uninstall"
)

// OperationResult is the structured outcome of an install/uninstall run.
type OperationResult struct {
	Success  bool
	Message  string
	Stdout   string
	Stderr   string
	ExitCode int
}

// ProgressPhase labels a point in a sync or operation lifecycle.
type ProgressPhase string

const (
	PhaseStarting ProgressPhase = "starting"
	PhaseFetching ProgressPhase = "fetching"
	PhaseParsing  ProgressPhase = "parsing"
	PhaseWriting  ProgressPhase = "writing"
	PhaseRunning  ProgressPhase = "running"
	PhaseDone     ProgressPhase = "done"
	PhaseFailed   ProgressPhase = "failed"
)

// ProgressEvent is emitted by the orchestrator and the operation engine.
// Total is 0 when the upstream does not report one.
type ProgressEvent struct {
	Provider Manager
	Phase    ProgressPhase
	Current  int
	Total    int
	Message  string
}

// Freshness summarizes a provider's slice of the cache.
type Freshness struct {
	Provider     Manager
	LastSyncAt   time.Time
	PackageCount int
	Status       SyncStatus
}
