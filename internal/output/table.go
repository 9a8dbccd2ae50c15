// Package output provides terminal output utilities for winpacman.
//
// This package includes:
//   - Table rendering for package records, installed inventory, catalog
//     freshness and operation history
//   - Progress bars for long-running syncs
//   - Spinners for indeterminate operations
//
// All table rendering uses ASCII characters and ANSI color codes for
// terminal output. Progress indicators are thread-safe.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/winpacman/internal/core"
	"github.com/blackwell-systems/winpacman/internal/history"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderPackageTable renders search results and catalog listings.
func RenderPackageTable(records []core.PackageRecord) string {
	if len(records) == 0 {
		return "No packages found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-28s %-14s %-11s %s\n",
		"Id", "Name", "Version", "Manager", "Description"))
	sb.WriteString(strings.Repeat("─", 110))
	sb.WriteString("\n")

	for _, rec := range records {
		version := rec.Version
		if rec.IsInstalled && rec.InstalledVersion != "" {
			version = rec.InstalledVersion
		}

		sb.WriteString(fmt.Sprintf("%-32s %-28s %-14s %-11s %s\n",
			truncate(rec.PackageID, 32),
			truncate(rec.Name, 28),
			truncate(version, 14),
			rec.Manager,
			truncate(rec.Description, 40)))
	}

	return sb.String()
}

// RenderInstalledTable renders the installed inventory with attribution.
func RenderInstalledTable(records []core.PackageRecord) string {
	if len(records) == 0 {
		return "No installed packages recorded. Run 'winpacman refresh --installed' first.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-28s %-14s %-11s %s\n",
		"Id", "Name", "Version", "Source", "Location"))
	sb.WriteString(strings.Repeat("─", 110))
	sb.WriteString("\n")

	for _, rec := range records {
		source := string(rec.InstallSource)
		if rec.InstallSource == core.ManagerUnknown || rec.InstallSource == "" {
			source = colorize(colorGray, "unknown")
		}

		sb.WriteString(fmt.Sprintf("%-32s %-28s %-14s %-11s %s\n",
			truncate(rec.PackageID, 32),
			truncate(rec.Name, 28),
			truncate(rec.InstalledVersion, 14),
			source,
			truncate(rec.InstallLocation, 40)))
	}

	return sb.String()
}

// RenderFreshnessTable renders per-provider sync state, sorted by manager.
func RenderFreshnessTable(summary map[core.Manager]core.Freshness) string {
	if len(summary) == 0 {
		return "No catalogs synced yet. Run 'winpacman refresh' first.\n"
	}

	managers := make([]core.Manager, 0, len(summary))
	for m := range summary {
		managers = append(managers, m)
	}
	sort.Slice(managers, func(i, j int) bool { return managers[i] < managers[j] })

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-12s %-10s %-13s %s\n",
		"Manager", "Packages", "Last Sync", "Status"))
	sb.WriteString(strings.Repeat("─", 56))
	sb.WriteString("\n")

	for _, m := range managers {
		f := summary[m]
		sb.WriteString(fmt.Sprintf("%-12s %-10d %-13s %s\n",
			m,
			f.PackageCount,
			formatRelativeTime(f.LastSyncAt),
			formatSyncStatus(f.Status)))
	}

	return sb.String()
}

// RenderHistoryTable renders the operation log, newest first.
func RenderHistoryTable(entries []history.Entry) string {
	if len(entries) == 0 {
		return "No operations recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-11s %-32s %-11s %-8s %-13s %s\n",
		"Op", "Package", "Manager", "Result", "When", "Message"))
	sb.WriteString(strings.Repeat("─", 110))
	sb.WriteString("\n")

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		result := colorize(colorGreen, "ok")
		if !e.Success {
			result = colorize(colorRed, "failed")
		}

		sb.WriteString(fmt.Sprintf("%-11s %-32s %-11s %-8s %-13s %s\n",
			e.Op,
			truncate(e.PackageID, 32),
			e.Manager,
			result,
			formatRelativeTime(e.Timestamp),
			truncate(e.Message, 40)))
	}

	return sb.String()
}

// formatSyncStatus colors a sync outcome.
func formatSyncStatus(status core.SyncStatus) string {
	switch status {
	case core.SyncSuccess:
		return colorize(colorGreen, "success")
	case core.SyncPartial:
		return colorize(colorYellow, "partial")
	case core.SyncFailed:
		return colorize(colorRed, "failed")
	}
	return colorize(colorGray, "never")
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
