// Package api is the façade consumed by the presentation layer. Queries run
// synchronously against the cache; refreshes and package operations return
// cancellable stream handles completed on a bounded worker pool.
package api

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/cache"
	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/engine"
	"github.com/blackwell-systems/winpacman/internal/history"
	"github.com/blackwell-systems/winpacman/internal/providers"
	"github.com/blackwell-systems/winpacman/internal/syncer"
)

// defaultWorkers bounds concurrent background work across all streams.
const defaultWorkers = 4

// API wires the core components behind one surface. All methods are safe
// for concurrent use.
type API struct {
	cache     *cache.Cache
	syncer    *syncer.Syncer
	engine    *engine.Engine
	history   *history.Log
	providers map[core.Manager]providers.Provider
	log       *zap.Logger

	// Workers sizes the pool; effective once the first stream starts.
	Workers int

	semOnce sync.Once
	sem     chan struct{}

	mu      sync.Mutex
	streams map[*ProgressStream]func(core.ProgressEvent) bool
}

func New(c *cache.Cache, s *syncer.Syncer, e *engine.Engine, hist *history.Log, provs []providers.Provider, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	byManager := make(map[core.Manager]providers.Provider, len(provs))
	for _, p := range provs {
		byManager[p.Manager()] = p
	}

	a := &API{
		cache:     c,
		syncer:    s,
		engine:    e,
		history:   hist,
		providers: byManager,
		log:       log,
		Workers:   defaultWorkers,
		streams:   make(map[*ProgressStream]func(core.ProgressEvent) bool),
	}
	if s != nil {
		s.Subscribe(a.route)
	}
	return a
}

// route fans syncer progress out to the streams whose filter matches.
func (a *API) route(ev core.ProgressEvent) {
	a.mu.Lock()
	matched := make([]*ProgressStream, 0, len(a.streams))
	for s, match := range a.streams {
		if match(ev) {
			matched = append(matched, s)
		}
	}
	a.mu.Unlock()

	for _, s := range matched {
		s.publish(ev)
	}
}

func (a *API) register(s *ProgressStream, match func(core.ProgressEvent) bool) {
	a.mu.Lock()
	a.streams[s] = match
	a.mu.Unlock()
}

func (a *API) unregister(s *ProgressStream) {
	a.mu.Lock()
	delete(a.streams, s)
	a.mu.Unlock()
}

// slot acquires a worker-pool slot, honoring cancellation while queued.
func (a *API) slot(ctx context.Context) (release func(), err error) {
	a.semOnce.Do(func() {
		n := a.Workers
		if n < 1 {
			n = 1
		}
		a.sem = make(chan struct{}, n)
	})

	select {
	case a.sem <- struct{}{}:
		return func() { <-a.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Search queries the cache by relevance. An empty managers slice searches
// everything; limit <= 0 applies the cache's default cap.
func (a *API) Search(ctx context.Context, query string, managers []core.Manager, limit int) ([]core.PackageRecord, error) {
	return a.cache.Search(ctx, query, managers, limit)
}

// ListAvailable lists cached catalog records, optionally for one manager.
// It never reaches out to a provider.
func (a *API) ListAvailable(ctx context.Context, manager core.Manager) ([]core.PackageRecord, error) {
	return a.cache.ListAvailable(ctx, manager)
}

// ListInstalled lists installed records, optionally filtered by manager.
func (a *API) ListInstalled(ctx context.Context, managers []core.Manager) ([]core.PackageRecord, error) {
	return a.cache.GetInstalled(ctx, managers, "")
}

// GetDetails returns the cached record, falling back to the provider's
// detail fetch when the package is not in the cache. A nil record with a
// nil error means the package does not exist upstream either.
func (a *API) GetDetails(ctx context.Context, packageID string, manager core.Manager) (*core.PackageRecord, error) {
	rec, err := a.cache.Get(ctx, packageID, manager)
	if err != nil || rec != nil {
		return rec, err
	}

	provider, ok := a.providers[manager]
	if !ok {
		return nil, core.NewError(core.KindProviderUnavailable,
			"package %q not cached and no provider for manager %q", packageID, manager)
	}
	return provider.FetchOne(ctx, packageID)
}

// GetFreshnessSummary reports per-provider sync state.
func (a *API) GetFreshnessSummary(ctx context.Context) (map[core.Manager]core.Freshness, error) {
	return a.cache.FreshnessSummary(ctx)
}

// History returns the recorded operation log, oldest first. Returns empty
// when no history log is wired.
func (a *API) History() ([]history.Entry, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.List()
}

// Refresh syncs one provider's catalog, or every provider when manager is
// empty. The returned stream carries progress and completes with the sync
// outcome; Cancel aborts at the next batch boundary.
func (a *API) Refresh(manager core.Manager, force bool) *ProgressStream {
	ctx, cancel := context.WithCancel(context.Background())

	var abort func()
	var match func(core.ProgressEvent) bool
	if manager == "" {
		abort = a.syncer.Cancel
		match = func(ev core.ProgressEvent) bool { return ev.Provider != "" }
	} else {
		m := manager
		abort = func() { a.syncer.CancelOne(m) }
		match = func(ev core.ProgressEvent) bool { return ev.Provider == m }
	}

	s := newProgressStream(cancel, abort)
	a.register(s, match)

	go func() {
		defer a.unregister(s)
		defer cancel()

		release, err := a.slot(ctx)
		if err != nil {
			s.finish(err)
			return
		}
		defer release()

		if manager == "" {
			err = a.syncer.RefreshAll(ctx, force)
		} else {
			err = a.syncer.RefreshOne(ctx, manager, force)
		}
		s.finish(err)
	}()
	return s
}

// RefreshInstalled rescans the installed inventory (registry + scoop),
// attributes the records, and merges them into the cache.
func (a *API) RefreshInstalled() *ProgressStream {
	ctx, cancel := context.WithCancel(context.Background())

	s := newProgressStream(cancel, nil)
	// Inventory events carry no provider.
	a.register(s, func(ev core.ProgressEvent) bool { return ev.Provider == "" })

	go func() {
		defer a.unregister(s)
		defer cancel()

		release, err := a.slot(ctx)
		if err != nil {
			s.finish(err)
			return
		}
		defer release()

		s.finish(a.syncer.RefreshInstalled(ctx))
	}()
	return s
}

// Install runs the manager's install command for the package. Version
// targets a specific release where the manager supports it.
func (a *API) Install(packageID string, manager core.Manager, version string) *OperationStream {
	return a.operate(engine.Request{
		Op: core.OpInstall, PackageID: packageID, Manager: manager, Version: version,
	})
}

// Uninstall runs the manager's uninstall command. Unattributed packages are
// refused; resolve them first.
func (a *API) Uninstall(packageID string, manager core.Manager) *OperationStream {
	return a.operate(engine.Request{
		Op: core.OpUninstall, PackageID: packageID, Manager: manager,
	})
}

func (a *API) operate(req engine.Request) *OperationStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := newOperationStream(cancel)

	go func() {
		defer cancel()

		release, err := a.slot(ctx)
		if err != nil {
			s.finish(core.OperationResult{Message: err.Error()}, err)
			return
		}
		defer release()

		result, err := a.engine.Run(ctx, req, s.publish)
		s.finish(result, err)
	}()
	return s
}
