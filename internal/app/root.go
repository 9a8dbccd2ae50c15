package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagDataRoot string
	flagVerbose  bool

	// RootCmd is the root command for winpacman
	RootCmd = &cobra.Command{
		Use:   "winpacman",
		Short: "Unified package management across Windows ecosystems",
		Long: `winpacman aggregates WinGet, Chocolatey, Scoop, NPM and Cargo behind one
searchable catalog, attributes installed software to the manager that owns
it, and drives installs and uninstalls through each manager's own CLI.

Catalogs are synced into a local SQLite cache with full-text search; the
installed view comes from the Windows registry and Scoop's apps directory,
cross-checked against manager-owned records.

Quick Start:
  1. winpacman refresh              # sync all catalogs
  2. winpacman refresh --installed  # scan what's installed
  3. winpacman search <term>
  4. winpacman install <id> --manager winget

Examples:
  # Search everything for ripgrep
  winpacman search ripgrep

  # List what chocolatey has installed
  winpacman installed --manager chocolatey

  # Sync only the scoop catalog, even if fresh
  winpacman refresh scoop --force

  # Check catalog freshness
  winpacman status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("winpacman: unified package management across Windows ecosystems")
			fmt.Println()
			fmt.Println("Run 'winpacman status' to check catalog freshness.")
			fmt.Println("Run 'winpacman search <term>' to find packages.")
			fmt.Println("Run 'winpacman --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagDataRoot, "data-root", "",
		"application data root (default: %LOCALAPPDATA%\\winpacman)")
	RootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(installedCmd)
	RootCmd.AddCommand(refreshCmd)
	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(rebuildCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
