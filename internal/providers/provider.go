// Package providers implements the catalog sources for each supported
// package ecosystem. Providers never touch the metadata cache; they emit
// records to the sync orchestrator, which owns persistence.
package providers

import (
	"context"
	"time"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// Provider is the uniform capability set every catalog source implements.
type Provider interface {
	// Manager names the ecosystem this provider covers.
	Manager() core.Manager

	// FetchAll streams the provider's catalog through emit. Returning a
	// non-nil error from emit stops the stream; the provider returns that
	// error unchanged so the orchestrator can distinguish its own
	// cancellation from provider failures.
	FetchAll(ctx context.Context, emit func(core.PackageRecord) error) error

	// FetchOne fetches a single record on demand. Returns nil, nil when the
	// package does not exist upstream.
	FetchOne(ctx context.Context, packageID string) (*core.PackageRecord, error)

	// IsStale reports whether a catalog synced at lastSync needs a refresh.
	// A zero lastSync is always stale.
	IsStale(lastSync time.Time) bool
}

// stalePolicy is the common age-based IsStale implementation. A zero maxAge
// means on-demand only: never stale unless never synced.
type stalePolicy struct {
	maxAge time.Duration
}

// SetMaxAge overrides the freshness budget, typically from the user's
// configured sync interval. Zero means on-demand only.
func (p *stalePolicy) SetMaxAge(maxAge time.Duration) { p.maxAge = maxAge }

func (p stalePolicy) IsStale(lastSync time.Time) bool {
	if lastSync.IsZero() {
		return true
	}
	if p.maxAge == 0 {
		return false
	}
	return time.Since(lastSync) > p.maxAge
}
