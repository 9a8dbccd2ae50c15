// Package syncer orchestrates catalog and inventory syncs: it drives the
// providers, batches their streams into the cache, serializes per-provider
// work, and fans progress out to subscribers.
package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/cache"
	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/providers"
)

// progressInterval caps progress emission at ~20 events/s per sync. Phase
// transitions always go through.
const progressInterval = 50 * time.Millisecond

// InventorySource yields installed records (registry scan, scoop apps).
type InventorySource interface {
	Installed() ([]core.PackageRecord, error)
}

// Attributor refines manager attributions on installed records before they
// reach the cache.
type Attributor interface {
	Resolve(ctx context.Context, records []core.PackageRecord) []core.PackageRecord
}

// Syncer coordinates provider syncs. At most one sync per provider runs at
// a time; concurrent requests for the same provider coalesce onto the one
// already in flight.
type Syncer struct {
	cache     *cache.Cache
	providers map[core.Manager]providers.Provider
	log       *zap.Logger

	// Parallel bounds RefreshAll concurrency. 1 keeps one progress line
	// honest; 2-3 trades that for speed.
	Parallel int

	inventory []InventorySource
	resolver  Attributor

	mu          sync.Mutex
	inflight    map[core.Manager]*flight
	subscribers []func(core.ProgressEvent)
	cancels     map[core.Manager]context.CancelFunc
	forceStale  map[core.Manager]bool

	bucketWatch *BucketWatcher
}

type flight struct {
	done chan struct{}
	err  error
}

func New(c *cache.Cache, provs []providers.Provider, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	byManager := make(map[core.Manager]providers.Provider, len(provs))
	for _, p := range provs {
		byManager[p.Manager()] = p
	}
	return &Syncer{
		cache:      c,
		providers:  byManager,
		log:        log,
		Parallel:   1,
		inflight:   make(map[core.Manager]*flight),
		cancels:    make(map[core.Manager]context.CancelFunc),
		forceStale: make(map[core.Manager]bool),
	}
}

// MarkStale forces the next non-forced RefreshOne for manager to sync
// regardless of the provider's freshness budget.
func (s *Syncer) MarkStale(manager core.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceStale[manager] = true
}

func (s *Syncer) consumeStale(manager core.Manager) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.forceStale[manager] {
		return false
	}
	delete(s.forceStale, manager)
	return true
}

// WatchBuckets watches the Scoop buckets tree and marks the scoop catalog
// stale when bucket manifests change, so the next refresh picks up a
// `scoop bucket update` without --force.
func (s *Syncer) WatchBuckets(bucketsDir string) error {
	bw, err := NewBucketWatcher(bucketsDir, func() {
		s.MarkStale(core.ManagerScoop)
	}, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.bucketWatch = bw
	s.mu.Unlock()
	return nil
}

// Close stops the bucket watcher, if one was started.
func (s *Syncer) Close() error {
	s.mu.Lock()
	bw := s.bucketWatch
	s.bucketWatch = nil
	s.mu.Unlock()
	if bw != nil {
		return bw.Stop()
	}
	return nil
}

// SetInventory wires the installed-inventory sources and the attribution
// resolver used by RefreshInstalled.
func (s *Syncer) SetInventory(sources []InventorySource, resolver Attributor) {
	s.inventory = sources
	s.resolver = resolver
}

// Subscribe registers a progress listener. Events arrive from sync
// goroutines; listeners must be fast or buffer on their own.
func (s *Syncer) Subscribe(fn func(core.ProgressEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Syncer) publish(ev core.ProgressEvent) {
	s.mu.Lock()
	subs := make([]func(core.ProgressEvent), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// RefreshOne syncs a single provider's catalog. With force=false a fresh
// slice is a no-op. Concurrent calls for the same provider share one sync
// and its error.
func (s *Syncer) RefreshOne(ctx context.Context, manager core.Manager, force bool) error {
	provider, ok := s.providers[manager]
	if !ok {
		return core.NewError(core.KindProviderUnavailable, "no provider for manager %q", manager)
	}

	if !force && !s.consumeStale(manager) {
		f, err := s.cache.Freshness(ctx, manager)
		if err != nil {
			return err
		}
		if !provider.IsStale(f.LastSyncAt) {
			s.log.Debug("catalog fresh, skipping sync", zap.String("provider", string(manager)))
			return nil
		}
	}

	s.mu.Lock()
	if f, running := s.inflight[manager]; running {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	s.inflight[manager] = f
	syncCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancels[manager] = cancel
	s.mu.Unlock()

	go func() {
		defer close(f.done)
		f.err = s.sync(syncCtx, provider)

		s.mu.Lock()
		delete(s.inflight, manager)
		delete(s.cancels, manager)
		s.mu.Unlock()
		cancel()
	}()

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		// The sync keeps running for any coalesced waiters; this caller
		// just stops waiting.
		return ctx.Err()
	}
}

// sync runs one provider sync end to end: power guard, stream to cache,
// sync_metadata, progress.
func (s *Syncer) sync(ctx context.Context, provider providers.Provider) error {
	manager := provider.Manager()
	started := time.Now()

	release := acquireExecutionState()
	defer release()

	s.publish(core.ProgressEvent{Provider: manager, Phase: core.PhaseStarting})

	var count int
	lastProgress := time.Now()
	n, err := s.cache.Refresh(ctx, manager, func(emit func(core.PackageRecord) error) error {
		return provider.FetchAll(ctx, func(rec core.PackageRecord) error {
			count++
			if now := time.Now(); now.Sub(lastProgress) >= progressInterval {
				lastProgress = now
				s.publish(core.ProgressEvent{
					Provider: manager,
					Phase:    core.PhaseFetching,
					Current:  count,
				})
			}
			return emit(rec)
		})
	})

	meta := core.SyncMetadata{
		Provider:     manager,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		PackageCount: n,
	}

	switch {
	case err == nil:
		meta.Status = core.SyncSuccess
	case errors.Is(err, context.Canceled):
		// Committed batches stay; the run is recorded as aborted.
		meta.Status = core.SyncFailed
		meta.ErrorMessage = "cancelled"
		err = core.WrapError(core.KindSyncAborted, err, "%s sync cancelled", manager)
	default:
		meta.Status = core.SyncFailed
		meta.ErrorMessage = err.Error()
	}

	// The status row must land even when ctx was cancelled mid-sync.
	if werr := s.cache.WriteSyncMetadata(context.WithoutCancel(ctx), meta); werr != nil && err == nil {
		err = werr
	}

	if err != nil {
		s.publish(core.ProgressEvent{
			Provider: manager, Phase: core.PhaseFailed, Current: n, Message: meta.ErrorMessage,
		})
		s.log.Warn("catalog sync failed",
			zap.String("provider", string(manager)), zap.Int("packages", n), zap.Error(err))
		return err
	}

	s.publish(core.ProgressEvent{Provider: manager, Phase: core.PhaseDone, Current: n, Total: n})
	s.log.Info("catalog sync finished",
		zap.String("provider", string(manager)),
		zap.Int("packages", n),
		zap.Duration("took", time.Since(started)))
	return nil
}

// RefreshAll syncs every registered provider, sequentially by default or
// with bounded parallelism when Parallel > 1. Individual failures don't
// stop the others; the joined error reports all of them.
func (s *Syncer) RefreshAll(ctx context.Context, force bool) error {
	managers := make([]core.Manager, 0, len(s.providers))
	for m := range s.providers {
		managers = append(managers, m)
	}
	sort.Slice(managers, func(i, j int) bool { return managers[i] < managers[j] })

	parallel := s.Parallel
	if parallel < 1 {
		parallel = 1
	}

	sem := make(chan struct{}, parallel)
	errs := make([]error, len(managers))
	var wg sync.WaitGroup

	for i, m := range managers {
		wg.Add(1)
		go func(i int, m core.Manager) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			errs[i] = s.RefreshOne(ctx, m, force)
		}(i, m)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// RefreshInstalled rebuilds the installed view: every inventory source is
// scanned, attributions are refined by the resolver, and the merged set
// replaces the cache's installed state in one transaction.
func (s *Syncer) RefreshInstalled(ctx context.Context) error {
	release := acquireExecutionState()
	defer release()

	s.publish(core.ProgressEvent{Phase: core.PhaseStarting, Message: "scanning installed packages"})

	var merged []core.PackageRecord
	for _, source := range s.inventory {
		if ctx.Err() != nil {
			return core.WrapError(core.KindSyncAborted, ctx.Err(), "installed scan cancelled")
		}
		records, err := source.Installed()
		if err != nil {
			// One unreadable source must not hide the others.
			s.log.Warn("inventory source failed", zap.Error(err))
			continue
		}
		merged = append(merged, records...)
	}

	if s.resolver != nil {
		s.publish(core.ProgressEvent{Phase: core.PhaseParsing, Current: len(merged), Message: "resolving managers"})
		merged = s.resolver.Resolve(ctx, merged)
	}

	s.publish(core.ProgressEvent{Phase: core.PhaseWriting, Current: len(merged)})
	if err := s.cache.SyncInstalled(ctx, merged); err != nil {
		s.publish(core.ProgressEvent{Phase: core.PhaseFailed, Message: err.Error()})
		return err
	}

	s.publish(core.ProgressEvent{Phase: core.PhaseDone, Current: len(merged), Total: len(merged)})
	s.log.Info("installed inventory refreshed", zap.Int("packages", len(merged)))
	return nil
}

// Cancel cooperatively cancels every in-flight sync. In-progress batches
// commit; later work stops.
func (s *Syncer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

// CancelOne cancels the in-flight sync for a single provider, if any.
func (s *Syncer) CancelOne(manager core.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[manager]; ok {
		cancel()
	}
}
