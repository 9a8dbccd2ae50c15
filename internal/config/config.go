// Package config provides the typed user configuration and the on-disk
// directory layout for winpacman.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

// SyncInterval is a recognized per-manager refresh cadence.
type SyncInterval string

const (
	IntervalDaily    SyncInterval = "daily"
	IntervalWeekly   SyncInterval = "weekly"
	IntervalOnDemand SyncInterval = "on_demand"
)

// Duration converts the cadence to a freshness budget. on_demand means never
// auto-refresh.
func (s SyncInterval) Duration() time.Duration {
	switch s {
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

func (s SyncInterval) valid() bool {
	switch s {
	case IntervalDaily, IntervalWeekly, IntervalOnDemand:
		return true
	}
	return false
}

// WindowState is persisted for the GUI and restored verbatim.
type WindowState struct {
	Width     int  `mapstructure:"width" json:"width"`
	Height    int  `mapstructure:"height" json:"height"`
	X         int  `mapstructure:"x" json:"x"`
	Y         int  `mapstructure:"y" json:"y"`
	Maximized bool `mapstructure:"maximized" json:"maximized"`
}

// UIConfig groups presentation settings.
type UIConfig struct {
	WindowState WindowState `mapstructure:"window_state" json:"window_state"`
}

// SyncConfig groups catalog-refresh settings.
type SyncConfig struct {
	Intervals  map[string]SyncInterval `mapstructure:"intervals" json:"intervals"`
	MaxAgeDays int                     `mapstructure:"max_age_days" json:"max_age_days"`
}

// ProviderConfig holds per-provider knobs the original hard-coded.
type ProviderConfig struct {
	WinGetManifestRoot string   `mapstructure:"winget_manifest_root" json:"winget_manifest_root"`
	NPMKeywords        []string `mapstructure:"npm_keywords" json:"npm_keywords"`
	CargoKeywords      []string `mapstructure:"cargo_keywords" json:"cargo_keywords"`
}

// Config is the closed set of recognized options. Unknown keys in the file
// are ignored on load; writes always emit exactly this shape.
type Config struct {
	UI            UIConfig       `mapstructure:"ui" json:"ui"`
	Sync          SyncConfig     `mapstructure:"sync" json:"sync"`
	Providers     ProviderConfig `mapstructure:"providers" json:"providers"`
	VerboseOutput bool           `mapstructure:"verbose_output" json:"verbose_output"`
}

// Default returns the configuration used when no file exists or a value is
// out of range.
func Default() *Config {
	// WinGet churns fast and syncs cheaply from local manifests; the full
	// Chocolatey OData walk is expensive, so once a week. Scoop re-reads
	// local buckets only when asked, and the npm/cargo keyword sets are
	// network-heavy: explicit refresh only.
	intervals := map[string]SyncInterval{
		string(core.ManagerWinGet):     IntervalDaily,
		string(core.ManagerChocolatey): IntervalWeekly,
		string(core.ManagerScoop):      IntervalOnDemand,
		string(core.ManagerNPM):        IntervalOnDemand,
		string(core.ManagerCargo):      IntervalOnDemand,
	}

	return &Config{
		UI: UIConfig{WindowState: WindowState{Width: 1200, Height: 800}},
		Sync: SyncConfig{
			Intervals:  intervals,
			MaxAgeDays: 1,
		},
	}
}

// MaxAge returns the freshness budget for a manager: its configured interval,
// or sync.max_age_days when no interval is set. Zero means on-demand only.
func (c *Config) MaxAge(manager core.Manager) time.Duration {
	if interval, ok := c.Sync.Intervals[string(manager)]; ok {
		return interval.Duration()
	}
	return time.Duration(c.Sync.MaxAgeDays) * 24 * time.Hour
}

// Load reads config.json at path. A missing file yields the defaults. A
// recognized option with an out-of-range value falls back to its default
// with a logged warning; only unreadable or unparseable files are errors.
func Load(path string, log *zap.Logger) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Default(), core.WrapError(core.KindConfigInvalid, err, "cannot read config %s", path)
	}

	if err := v.Unmarshal(cfg); err != nil {
		log.Warn("config has unusable structure, using defaults",
			zap.String("path", path), zap.Error(err))
		return Default(), nil
	}

	sanitize(cfg, log)
	return cfg, nil
}

// sanitize replaces out-of-range values with defaults, warning per field.
func sanitize(cfg *Config, log *zap.Logger) {
	def := Default()

	if cfg.UI.WindowState.Width <= 0 || cfg.UI.WindowState.Height <= 0 {
		log.Warn("invalid window_state dimensions, using defaults",
			zap.Int("width", cfg.UI.WindowState.Width),
			zap.Int("height", cfg.UI.WindowState.Height))
		cfg.UI.WindowState.Width = def.UI.WindowState.Width
		cfg.UI.WindowState.Height = def.UI.WindowState.Height
	}

	if cfg.Sync.MaxAgeDays < 0 {
		log.Warn("negative sync.max_age_days, using default",
			zap.Int("value", cfg.Sync.MaxAgeDays))
		cfg.Sync.MaxAgeDays = def.Sync.MaxAgeDays
	}

	if cfg.Sync.Intervals == nil {
		cfg.Sync.Intervals = def.Sync.Intervals
	}
	for manager, interval := range cfg.Sync.Intervals {
		if core.ParseManager(manager) == core.ManagerUnknown {
			log.Warn("sync interval for unrecognized manager ignored", zap.String("manager", manager))
			delete(cfg.Sync.Intervals, manager)
			continue
		}
		if !interval.valid() {
			log.Warn("invalid sync interval, using default",
				zap.String("manager", manager), zap.String("value", string(interval)))
			cfg.Sync.Intervals[manager] = def.Sync.Intervals[manager]
		}
	}
}

// Save writes the typed configuration as indented JSON. Only recognized
// options are emitted; anything else a previous tool left in the file is
// dropped.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}
