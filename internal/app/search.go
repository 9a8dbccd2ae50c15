package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/output"
)

var (
	searchManagers []string
	searchLimit    int

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Search the cached catalogs",
		Long: `Search across every synced catalog by package id, name, description and
tags, ranked by relevance. Results come from the local cache; run
'winpacman refresh' first if the catalogs are empty or stale.`,
		Example: `  # Search everywhere
  winpacman search ripgrep

  # Only winget and scoop, top 10
  winpacman search "visual studio code" --manager winget --manager scoop --limit 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}
)

func init() {
	searchCmd.Flags().StringArrayVarP(&searchManagers, "manager", "m", nil,
		"restrict to a manager (repeatable)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0,
		"maximum results (default 100)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	managers, err := parseManagerList(searchManagers)
	if err != nil {
		return err
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	query := strings.Join(args, " ")
	records, err := app.API.Search(cmd.Context(), query, managers, searchLimit)
	if err != nil {
		return err
	}

	fmt.Print(output.RenderPackageTable(records))
	return nil
}

func parseManagerList(values []string) ([]core.Manager, error) {
	var managers []core.Manager
	for _, v := range values {
		m, err := parseManagerFlag(v)
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, nil
}
