package app

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/winpacman/internal/api"
	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/output"
)

var (
	refreshForce     bool
	refreshInstalled bool

	refreshCmd = &cobra.Command{
		Use:   "refresh [manager]",
		Short: "Sync package catalogs into the local cache",
		Long: `Sync provider catalogs into the local cache. Without an argument every
provider is synced; naming one syncs just that catalog. Fresh catalogs are
skipped unless --force is given.

With --installed the installed inventory is rescanned instead: the Windows
registry and scoop's apps directory are read, and each entry is attributed
to the manager that owns it.

Ctrl-C cancels cleanly; batches already committed stay in the cache.`,
		Example: `  # Sync everything that is stale
  winpacman refresh

  # Force just chocolatey (slow: full OData walk)
  winpacman refresh chocolatey --force

  # Rescan installed software
  winpacman refresh --installed`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRefresh,
	}
)

func init() {
	refreshCmd.Flags().BoolVarP(&refreshForce, "force", "f", false,
		"sync even when the catalog is fresh")
	refreshCmd.Flags().BoolVar(&refreshInstalled, "installed", false,
		"rescan the installed inventory instead of catalogs")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	var manager core.Manager
	if len(args) == 1 {
		m, err := parseManagerFlag(args[0])
		if err != nil {
			return err
		}
		manager = m
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	var stream *api.ProgressStream
	if refreshInstalled {
		stream = app.API.RefreshInstalled()
	} else {
		stream = app.API.Refresh(manager, refreshForce)
	}

	// Ctrl-C cancels the stream; committed batches survive.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		if _, ok := <-interrupt; ok {
			fmt.Fprintln(os.Stderr, "\ninterrupted, stopping at next batch boundary...")
			stream.Cancel()
		}
	}()

	renderProgress(stream)

	if err := stream.Wait(); err != nil {
		return err
	}
	fmt.Println("Done.")
	return nil
}

// renderProgress drains the stream to the terminal: one spinner per
// in-flight provider phase, counts when the provider reports them.
func renderProgress(stream *api.ProgressStream) {
	spinners := make(map[core.Manager]*output.Spinner)

	stopAll := func() {
		for _, sp := range spinners {
			sp.Stop()
		}
	}
	defer stopAll()

	for ev := range stream.Events {
		label := "installed inventory"
		if ev.Provider != "" {
			label = string(ev.Provider)
		}

		switch ev.Phase {
		case core.PhaseStarting:
			sp := output.NewSpinner(fmt.Sprintf("Syncing %s", label))
			sp.Start()
			spinners[ev.Provider] = sp

		case core.PhaseFetching, core.PhaseParsing, core.PhaseWriting:
			if sp, ok := spinners[ev.Provider]; ok && ev.Current > 0 {
				sp.UpdateMessage(fmt.Sprintf("Syncing %s (%d packages)", label, ev.Current))
			}

		case core.PhaseDone:
			if sp, ok := spinners[ev.Provider]; ok {
				sp.StopWithMessage(fmt.Sprintf("✓ %s: %d packages", label, ev.Current))
				delete(spinners, ev.Provider)
			}

		case core.PhaseFailed:
			if sp, ok := spinners[ev.Provider]; ok {
				sp.StopWithMessage(fmt.Sprintf("✗ %s: %s", label, ev.Message))
				delete(spinners, ev.Provider)
			}
		}
	}
}
