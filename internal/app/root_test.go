package app

import (
	"context"
	"testing"

	"github.com/blackwell-systems/winpacman/internal/core"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{
		"search", "list", "installed", "refresh",
		"install", "uninstall", "status", "history", "rebuild",
	}

	registered := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestParseManagerFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    core.Manager
		wantErr bool
	}{
		{"", "", false},
		{"winget", core.ManagerWinGet, false},
		{"cargo", core.ManagerCargo, false},
		{"apt", "", true},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		got, err := parseManagerFlag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseManagerFlag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseManagerFlag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildCoreWiresTheStack(t *testing.T) {
	flagDataRoot = t.TempDir()
	t.Cleanup(func() { flagDataRoot = "" })

	app, err := buildCore()
	if err != nil {
		t.Fatalf("buildCore() error = %v", err)
	}
	defer app.Close()

	if app.API == nil || app.Cache == nil || app.Config == nil {
		t.Fatal("buildCore() left components unwired")
	}

	// The cache schema must be usable immediately: every catalog manager
	// reports a never-synced entry.
	summary, err := app.API.GetFreshnessSummary(context.Background())
	if err != nil {
		t.Fatalf("GetFreshnessSummary() error = %v", err)
	}
	if len(summary) != len(core.CatalogManagers) {
		t.Fatalf("summary has %d entries, want %d", len(summary), len(core.CatalogManagers))
	}
	for _, m := range core.CatalogManagers {
		f, ok := summary[m]
		if !ok {
			t.Errorf("summary missing %s", m)
			continue
		}
		if !f.LastSyncAt.IsZero() || f.PackageCount != 0 {
			t.Errorf("%s should report never-synced, got %+v", m, f)
		}
	}
}
