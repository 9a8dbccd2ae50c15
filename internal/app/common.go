package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blackwell-systems/winpacman/internal/api"
	"github.com/blackwell-systems/winpacman/internal/cache"
	"github.com/blackwell-systems/winpacman/internal/config"
	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/engine"
	"github.com/blackwell-systems/winpacman/internal/history"
	"github.com/blackwell-systems/winpacman/internal/providers"
	"github.com/blackwell-systems/winpacman/internal/resolve"
	"github.com/blackwell-systems/winpacman/internal/runner"
	"github.com/blackwell-systems/winpacman/internal/syncer"
	"github.com/blackwell-systems/winpacman/internal/winreg"
)

// appContext carries the wired core for one command invocation.
type appContext struct {
	API    *api.API
	Cache  *cache.Cache
	Config *config.Config
	Dirs   config.Dirs
	Log    *zap.Logger

	syncer      *syncer.Syncer
	releaseLock func()
}

// buildCore wires the full stack: directories, config, cache, providers,
// orchestrator, resolver, engine, façade. The single-instance lock is held
// until Close.
func buildCore() (*appContext, error) {
	log, err := buildLogger()
	if err != nil {
		return nil, err
	}

	dirs, err := resolveDirs()
	if err != nil {
		return nil, err
	}
	if err := dirs.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	cfg, err := config.Load(dirs.ConfigFile(), log)
	if err != nil {
		// A broken config is not fatal; the defaults are.
		log.Warn("config unusable, continuing with defaults", zap.Error(err))
	}

	release, err := acquireLock(dirs.LockFile())
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(dirs.CacheDB(), log)
	if err != nil {
		release()
		return nil, err
	}

	run := runner.New(log)
	provs := buildProviders(cfg, run, log)

	s := syncer.New(c, provs, log)
	registry := providers.NewRegistryInventory(winreg.NewScanner(), winreg.NewExtractor(), log)
	scoopApps := providers.NewScoopInventory(filepath.Join(scoopRoot(), "apps"), log)
	// Disk evidence answers first; the managers' own list commands fill in
	// where the on-disk bookkeeping cannot check.
	diskEv := resolve.NewDiskEvidence(
		resolve.DefaultWinGetTrackingDB(), resolve.DefaultChocolateyEvidenceDir, log)
	cliEv := resolve.NewCLIEvidence(log)
	resolver := resolve.New(c, resolve.ChainEvidence(diskEv, cliEv), log)
	s.SetInventory([]syncer.InventorySource{registry, scoopApps}, resolver)
	if err := s.WatchBuckets(filepath.Join(scoopRoot(), "buckets")); err != nil {
		// No scoop install, or inotify exhausted: refresh still works, it
		// just won't notice `scoop bucket update` on its own.
		log.Debug("scoop bucket watch unavailable", zap.Error(err))
	}

	hist := history.New(dirs.HistoryFile(), log)
	e := engine.New(run, hist, s, log)
	cliEv.SetLister(e)

	return &appContext{
		API:         api.New(c, s, e, hist, provs, log),
		Cache:       c,
		Config:      cfg,
		Dirs:        dirs,
		Log:         log,
		syncer:      s,
		releaseLock: release,
	}, nil
}

func (a *appContext) Close() {
	if a.syncer != nil {
		_ = a.syncer.Close()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.releaseLock != nil {
		a.releaseLock()
	}
	_ = a.Log.Sync()
}

// buildProviders constructs the catalog providers, honoring the configured
// keyword lists, manifest root and freshness budgets.
func buildProviders(cfg *config.Config, run *runner.Runner, log *zap.Logger) []providers.Provider {
	manifestRoot := cfg.Providers.WinGetManifestRoot
	if manifestRoot == "" {
		manifestRoot = defaultWinGetManifestRoot()
	}

	winget := providers.NewWinGetProvider(manifestRoot, run, log)
	choco := providers.NewChocolateyProvider(log)
	scoop := providers.NewScoopProvider(filepath.Join(scoopRoot(), "buckets"), run, log)
	npm := providers.NewNPMProvider(log)
	cargo := providers.NewCargoProvider(log)

	if len(cfg.Providers.NPMKeywords) > 0 {
		npm.Keywords = cfg.Providers.NPMKeywords
	}
	if len(cfg.Providers.CargoKeywords) > 0 {
		cargo.Keywords = cfg.Providers.CargoKeywords
	}

	winget.SetMaxAge(cfg.MaxAge(core.ManagerWinGet))
	choco.SetMaxAge(cfg.MaxAge(core.ManagerChocolatey))
	scoop.SetMaxAge(cfg.MaxAge(core.ManagerScoop))
	npm.SetMaxAge(cfg.MaxAge(core.ManagerNPM))
	cargo.SetMaxAge(cfg.MaxAge(core.ManagerCargo))

	return []providers.Provider{winget, choco, scoop, npm, cargo}
}

func buildLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if flagVerbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func resolveDirs() (config.Dirs, error) {
	if flagDataRoot != "" {
		return config.Dirs{
			Config: filepath.Join(flagDataRoot, "config"),
			Data:   filepath.Join(flagDataRoot, "data"),
			Cache:  filepath.Join(flagDataRoot, "cache"),
		}, nil
	}
	return config.DefaultDirs()
}

// scoopRoot locates the scoop install, honoring the SCOOP env override.
func scoopRoot() string {
	if root := os.Getenv("SCOOP"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "scoop"
	}
	return filepath.Join(home, "scoop")
}

// defaultWinGetManifestRoot points at a local clone of the winget-pkgs
// manifest tree under the data dir, matching what the sync step maintains.
func defaultWinGetManifestRoot() string {
	dirs, err := config.DefaultDirs()
	if err != nil {
		return ""
	}
	return filepath.Join(dirs.Cache, "winget-pkgs", "manifests")
}

// parseManagerFlag converts a --manager value, rejecting non-catalog names.
func parseManagerFlag(value string) (core.Manager, error) {
	if value == "" {
		return "", nil
	}
	m := core.ParseManager(value)
	if m == core.ManagerUnknown {
		return "", fmt.Errorf("unknown manager %q (expected one of winget, chocolatey, scoop, npm, cargo)", value)
	}
	return m, nil
}
