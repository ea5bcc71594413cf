// package formatter renders CLI output for the sync and verify commands.
package formatter

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/ours334/player/internal/tasks"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).MarginBottom(1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// RenderSyncResults formats the per-table outcome of a migration run.
func RenderSyncResults(results []tasks.TableResult, dryRun bool) string {
	var buf bytes.Buffer

	title := "Sync complete"
	if dryRun {
		title = "Sync (dry run)"
	}
	buf.WriteString(titleStyle.Render(title))
	buf.WriteString("\n")

	var total int64
	for _, result := range results {
		if result.Skipped {
			buf.WriteString(fmt.Sprintf("  %-16s %s\n", result.Table, warnStyle.Render("skipped: "+result.Reason)))
			continue
		}
		total += result.Rows
		buf.WriteString(fmt.Sprintf("  %-16s %s\n", result.Table,
			okStyle.Render(fmt.Sprintf("%d rows", result.Rows))+dimStyle.Render(fmt.Sprintf(" (%d batches)", result.Batches))))
	}
	buf.WriteString(fmt.Sprintf("\n  %s\n", dimStyle.Render(fmt.Sprintf("%d rows total", total))))
	return buf.String()
}

// RenderVerifyResults formats the per-table count comparison.
func RenderVerifyResults(results []tasks.VerifyResult) string {
	var buf bytes.Buffer
	buf.WriteString(titleStyle.Render("Verification"))
	buf.WriteString("\n")

	clean := true
	for _, result := range results {
		status := okStyle.Render(result.Status)
		if result.Status != tasks.StatusOK {
			status = errStyle.Render(result.Status)
			clean = false
		}
		buf.WriteString(fmt.Sprintf("  %-16s local=%-8d remote=%-8d %s\n", result.Table, result.Local, result.Remote, status))
	}

	if clean {
		buf.WriteString("\n  " + okStyle.Render("all tables verified") + "\n")
	} else {
		buf.WriteString("\n  " + errStyle.Render("mismatches found, re-run sync") + "\n")
	}
	return buf.String()
}

// RenderClaimResult formats the outcome of claiming anonymous playback rows.
func RenderClaimResult(result *tasks.ClaimResult) string {
	var buf bytes.Buffer
	buf.WriteString(titleStyle.Render("Claim anonymous playback"))
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("  account: %s (id %d)\n", result.Account, result.UserID))
	buf.WriteString(fmt.Sprintf("  local:   %s, %d left\n", okStyle.Render(fmt.Sprintf("%d claimed", result.LocalMigrated)), result.LocalRemaining))
	if result.RemoteAttempted {
		buf.WriteString(fmt.Sprintf("  remote:  %s\n", okStyle.Render(fmt.Sprintf("%d claimed", result.RemoteMigrated))))
	} else {
		buf.WriteString("  remote:  " + warnStyle.Render("not attempted") + "\n")
	}
	return buf.String()
}
