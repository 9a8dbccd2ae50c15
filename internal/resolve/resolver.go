// Package resolve attributes installed packages to the manager that owns
// them. Registry fingerprints are heuristic; the resolver refines unknowns
// through the metadata cache and cross-validates confident fingerprints
// against manager-owned evidence on disk.
package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/cache"
	"github.com/blackwell-systems/winpacman/internal/core"
)

// Resolver refines install-source attributions. It never invents one: a
// record ends up attributed only through a cache match or a fingerprint the
// evidence does not dispute.
type Resolver struct {
	cache    *cache.Cache
	evidence Evidence
	log      *zap.Logger
}

// New returns a Resolver. evidence may be nil, which disables
// cross-validation (fingerprints are then trusted as-is).
func New(c *cache.Cache, evidence Evidence, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cache: c, evidence: evidence, log: log}
}

// Resolve processes installed records in place and returns the slice:
// unknown fingerprints are looked up in the cache; winget and chocolatey
// fingerprints are checked against their manager's evidence and downgraded
// to unknown only on an affirmative denial. Absent evidence is not
// contradiction; the fingerprint stands.
func (r *Resolver) Resolve(ctx context.Context, records []core.PackageRecord) []core.PackageRecord {
	var resolved, downgraded int

	for i := range records {
		rec := &records[i]
		switch rec.InstallSource {
		case core.ManagerUnknown, "":
			manager, err := r.cache.FindManager(ctx, rec.PackageID, rec.Name)
			if err != nil {
				r.log.Warn("manager lookup failed", zap.String("package", rec.PackageID), zap.Error(err))
				continue
			}
			if manager != "" {
				rec.InstallSource = manager
				rec.Manager = manager
				resolved++
			}

		case core.ManagerWinGet, core.ManagerChocolatey:
			if r.evidence != nil &&
				r.evidence.Installed(ctx, rec.InstallSource, rec.PackageID) == VerdictDenied {
				r.downgrade(rec)
				downgraded++
			}
		}
	}

	if resolved > 0 || downgraded > 0 {
		r.log.Info("attributions refined",
			zap.Int("resolved", resolved), zap.Int("downgraded", downgraded))
	}
	return records
}

// downgrade drops a disproven fingerprint back to unknown rather than
// guessing.
func (r *Resolver) downgrade(rec *core.PackageRecord) {
	r.log.Debug("fingerprint contradicted by evidence",
		zap.String("package", rec.PackageID),
		zap.String("claimed", string(rec.InstallSource)))
	rec.InstallSource = core.ManagerUnknown
	rec.Manager = core.ManagerUnknown
}
