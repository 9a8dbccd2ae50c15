package resolve

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// cliListingTTL bounds how long one CLI listing answers for. A rescan right
// after an install must see the new package.
const cliListingTTL = time.Minute

// Lister asks a manager's own CLI for its installed set.
type Lister interface {
	ListInstalled(ctx context.Context, manager core.Manager) ([]core.PackageRecord, error)
}

// CLIEvidence cross-checks fingerprints against `winget list`, `choco list`
// and `npm list` output. One listing per manager is fetched lazily and
// reused for cliListingTTL, so a full inventory rescan costs at most one
// subprocess per manager. An unavailable CLI yields VerdictUnknown.
type CLIEvidence struct {
	log *zap.Logger

	mu       sync.Mutex
	lister   Lister
	listings map[core.Manager]*cliListing
}

type cliListing struct {
	ids     map[string]bool
	fetched time.Time
	ok      bool
}

func NewCLIEvidence(log *zap.Logger) *CLIEvidence {
	if log == nil {
		log = zap.NewNop()
	}
	return &CLIEvidence{
		log:      log,
		listings: make(map[core.Manager]*cliListing),
	}
}

// SetLister binds the command layer. Until one is set every verdict is
// Unknown, so construction order never blocks attribution.
func (e *CLIEvidence) SetLister(l Lister) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lister = l
}

func (e *CLIEvidence) Installed(ctx context.Context, manager core.Manager, packageID string) Verdict {
	switch manager {
	case core.ManagerWinGet, core.ManagerChocolatey, core.ManagerNPM:
	default:
		return VerdictUnknown
	}

	listing := e.listing(ctx, manager)
	if !listing.ok {
		return VerdictUnknown
	}
	if listing.ids[strings.ToLower(packageID)] {
		return VerdictConfirmed
	}
	return VerdictDenied
}

func (e *CLIEvidence) listing(ctx context.Context, manager core.Manager) *cliListing {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.listings[manager]; ok && time.Since(l.fetched) < cliListingTTL {
		return l
	}
	if e.lister == nil {
		// Not cached: a lister bound later should be consulted.
		return &cliListing{}
	}
	l := &cliListing{fetched: time.Now()}
	e.listings[manager] = l
	records, err := e.lister.ListInstalled(ctx, manager)
	if err != nil {
		e.log.Debug("cli listing unavailable",
			zap.String("manager", string(manager)), zap.Error(err))
		return l
	}

	l.ok = true
	l.ids = make(map[string]bool, len(records))
	for _, rec := range records {
		l.ids[strings.ToLower(rec.PackageID)] = true
	}
	return l
}
