package app

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/winpacman/internal/api"
	"github.com/blackwell-systems/winpacman/internal/core"
)

var (
	installManager string
	installVersion string

	installCmd = &cobra.Command{
		Use:   "install <package-id>",
		Short: "Install a package through its manager",
		Long: `Install a package by delegating to the owning manager's CLI with the
right arguments. The manager must be named explicitly; winpacman never
guesses which ecosystem should provide a package.

After a successful install the installed inventory is rescanned so the
change shows up immediately.`,
		Example: `  # winget, current version
  winpacman install Git.Git --manager winget

  # winget, specific version
  winpacman install Git.Git --manager winget --version 2.44.0

  # global npm package
  winpacman install typescript --manager npm`,
		Args: cobra.ExactArgs(1),
		RunE: runInstall,
	}

	uninstallManager string

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <package-id>",
		Short: "Uninstall a package through its manager",
		Long: `Uninstall a package by delegating to the owning manager's CLI. Packages
whose manager is unknown are refused: attribute them first with
'winpacman refresh --installed', or name the manager with --manager.`,
		Example: `  winpacman uninstall Git.Git --manager winget
  winpacman uninstall ripgrep --manager scoop`,
		Args: cobra.ExactArgs(1),
		RunE: runUninstall,
	}
)

func init() {
	installCmd.Flags().StringVarP(&installManager, "manager", "m", "", "manager to install through (required)")
	installCmd.Flags().StringVar(&installVersion, "version", "", "specific version (winget only)")
	_ = installCmd.MarkFlagRequired("manager")

	uninstallCmd.Flags().StringVarP(&uninstallManager, "manager", "m", "", "manager that owns the package (required)")
	_ = uninstallCmd.MarkFlagRequired("manager")
}

func runInstall(cmd *cobra.Command, args []string) error {
	manager, err := parseManagerFlag(installManager)
	if err != nil {
		return err
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	stream := app.API.Install(args[0], manager, installVersion)
	return drainOperation(app, stream)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	manager, err := parseManagerFlag(uninstallManager)
	if err != nil {
		return err
	}

	app, err := buildCore()
	if err != nil {
		return err
	}
	defer app.Close()

	stream := app.API.Uninstall(args[0], manager)
	return drainOperation(app, stream)
}

// drainOperation echoes the child's output lines and reports the outcome.
func drainOperation(app *appContext, stream *api.OperationStream) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		if _, ok := <-interrupt; ok {
			fmt.Fprintln(os.Stderr, "\ninterrupted, terminating...")
			stream.Cancel()
		}
	}()

	verbose := flagVerbose || app.Config.VerboseOutput
	for ev := range stream.Events {
		if ev.Phase == core.PhaseRunning && verbose {
			fmt.Println(ev.Message)
		}
	}

	result, err := stream.Wait()
	if err != nil {
		if result.Stderr != "" && verbose {
			fmt.Fprintln(os.Stderr, result.Stderr)
		}
		return err
	}

	fmt.Println(result.Message)
	return nil
}
