package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/winpacman/internal/output"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show catalog freshness per provider",
		Long: `Display per-provider sync state: how many packages each catalog holds,
when it last synced, and whether that sync succeeded.`,
		Example: `  winpacman status`,
		RunE:    runStatus,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent install/uninstall operations",
		Long: `Display the operation log: the last 100 installs and uninstalls with
their outcomes, newest first.`,
		Example: `  winpacman history`,
		RunE:    runHistory,
	}

	rebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Drop and recreate the metadata cache",
		Long: `Drop every cache table and recreate the schema from scratch. Use this
when the cache reports corruption. All catalogs must be re-synced
afterwards; config and history are untouched.`,
		Example: `  winpacman rebuild`,
		RunE:    runRebuild,
	}
)

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.API.GetFreshnessSummary(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Print(output.RenderFreshnessTable(summary))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	entries, err := app.API.History()
	if err != nil {
		return err
	}

	fmt.Print(output.RenderHistoryTable(entries))
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Cache.Rebuild(); err != nil {
		return err
	}

	fmt.Println("Cache rebuilt. Run 'winpacman refresh' to re-sync catalogs.")
	return nil
}
