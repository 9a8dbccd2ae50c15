package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/output"
)

var (
	listManager string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List cached catalog packages",
		Long: `List every package the cache knows about, optionally restricted to one
manager. This reads the local cache only; it never contacts a provider.`,
		Example: `  # Everything
  winpacman list

  # Only the scoop catalog
  winpacman list --manager scoop`,
		RunE: runList,
	}

	installedManager string

	installedCmd = &cobra.Command{
		Use:   "installed",
		Short: "List installed packages with their manager attribution",
		Long: `List the installed inventory: registry-discovered applications and scoop
apps, attributed to the manager that owns them. Packages no manager claims
show as unknown.

Run 'winpacman refresh --installed' to rescan before listing.`,
		Example: `  # Everything installed
  winpacman installed

  # Only what chocolatey owns
  winpacman installed --manager chocolatey`,
		RunE: runInstalled,
	}
)

func init() {
	listCmd.Flags().StringVarP(&listManager, "manager", "m", "", "restrict to a manager")
	installedCmd.Flags().StringVarP(&installedManager, "manager", "m", "", "restrict to a manager")
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := parseManagerFlag(listManager)
	if err != nil {
		return err
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	records, err := app.API.ListAvailable(cmd.Context(), manager)
	if err != nil {
		return err
	}

	fmt.Print(output.RenderPackageTable(records))
	return nil
}

func runInstalled(cmd *cobra.Command, args []string) error {
	var managers []core.Manager
	if installedManager != "" {
		m, err := parseManagerFlag(installedManager)
		if err != nil {
			return err
		}
		managers = []core.Manager{m}
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	records, err := app.API.ListInstalled(cmd.Context(), managers)
	if err != nil {
		return err
	}

	fmt.Print(output.RenderInstalledTable(records))
	return nil
}
