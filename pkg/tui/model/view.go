package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/cronium/pkg/cmdparse"
	"github.com/modoterra/cronium/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	statusOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusIdleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusFailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	activePaneStyle = paneStyle.
			BorderForeground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "loading..."
	}

	// Editor overlay
	if a.mode == ModeEditor && a.editor != nil {
		editorView := a.editor.View(a.width - 4)
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(editorView)
	}

	statusBarH := 2
	logPaneH := max(a.height/4, 5)
	mainH := a.height - logPaneH - statusBarH - 2
	listW := a.width*2/5 - 2
	detailW := a.width - listW - 4

	// List pane
	list := a.renderList(listW, mainH)
	listPane := a.paneBox(PaneList, " Jobs ", list, listW, mainH)

	// Detail pane
	detail := a.renderDetail(detailW, mainH)
	detailPane := a.paneBox(PaneDetail, " Detail ", detail, detailW, mainH)

	// Top row
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)

	// Log pane
	logs := a.renderLogs(a.width-4, logPaneH)
	logPane := a.paneBox(PaneLogs, a.logTitle(), logs, a.width-4, logPaneH)

	// Status bar
	statusBar := a.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, topRow, logPane, statusBar)
}

func (a App) paneBox(pane Pane, title, content string, w, h int) string {
	style := paneStyle
	if a.activePane == pane {
		style = activePaneStyle
	}
	return style.Width(w).Height(h).Render(
		titleStyle.Render(title) + "\n" + content,
	)
}

func (a App) renderList(w, h int) string {
	jobs := a.filteredJobs()
	if len(jobs) == 0 {
		return dimStyle.Render("no jobs")
	}

	var b strings.Builder
	maxVisible := h - 2
	start := 0
	if a.selectedIdx >= maxVisible {
		start = a.selectedIdx - maxVisible + 1
	}

	for i := start; i < len(jobs) && i-start < maxVisible; i++ {
		job := jobs[i]
		indicator := statusIndicator(job)
		name := truncate(job.Name, w-6)
		line := fmt.Sprintf(" %s %-*s", indicator, w-6, name)

		if i == a.selectedIdx {
			line = selectedStyle.Width(w).Render(line)
		}
		b.WriteString(line + "\n")
	}

	if a.mode == ModeSearch {
		b.WriteString("\n" + a.search.View())
	}

	return b.String()
}

func (a App) renderDetail(w, h int) string {
	job := a.selectedJob()
	if job == nil {
		return dimStyle.Render("select a job")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name:      %s\n", job.Name)
	fmt.Fprintf(&b, "Schedule:  %s\n", job.Schedule)
	fmt.Fprintf(&b, "Command:   %s\n", truncate(job.Command, w-11))
	fmt.Fprintf(&b, "Status:    %s\n", colorStatus(*job))

	if script, ok := cmdparse.ScriptPath(job.Command); ok {
		fmt.Fprintf(&b, "Script:    %s\n", dimStyle.Render(script))
	}
	if lf := detailLogFile(job.Job); lf != "" {
		fmt.Fprintf(&b, "Log file:  %s\n", dimStyle.Render(lf))
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "About:     %s\n", job.Description)
	}
	if job.Dir != "" {
		fmt.Fprintf(&b, "Dir:       %s\n", job.Dir)
	}
	if job.Run.StartedAt != nil {
		fmt.Fprintf(&b, "Last run:  %s\n", formatRelTime(*job.Run.StartedAt))
	}
	if job.Run.Status == core.StatusFailed {
		fmt.Fprintf(&b, "Exit code: %d\n", job.Run.ExitCode)
		if job.Run.Error != "" {
			fmt.Fprintf(&b, "Error:     %s\n", statusFailedStyle.Render(job.Run.Error))
		}
	}
	if job.Run.NextRun != nil {
		fmt.Fprintf(&b, "Next run:  %s\n", formatRelTime(*job.Run.NextRun))
	}
	if job.Disabled {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render("disabled (t to enable)"))
	}

	return b.String()
}

// detailLogFile prefers the job's stored log file and falls back to the
// first log target found in its command line.
func detailLogFile(job core.Job) string {
	if job.LogFile != "" {
		return job.LogFile
	}
	if files := cmdparse.LogFiles(job.Command); len(files) > 0 {
		return files[0]
	}
	return ""
}

func (a App) renderLogs(w, h int) string {
	if len(a.logLines) == 0 {
		return dimStyle.Render("no log output (l to tail the selected job)")
	}

	start := 0
	if len(a.logLines) > h-1 {
		start = len(a.logLines) - h + 1
	}

	var b strings.Builder
	for i := start; i < len(a.logLines); i++ {
		rl := a.logLines[i]
		ts := time.UnixMilli(rl.TsUnixMs).Format("15:04:05")
		line := truncate(rl.Line, w-10)
		b.WriteString(dimStyle.Render(ts) + " " + line + "\n")
	}
	return b.String()
}

func (a App) logTitle() string {
	title := " Logs "
	if a.logJob != "" {
		title = " Logs: " + a.logJob + " "
	}
	if a.logPaused {
		title += dimStyle.Render("[PAUSED]") + " "
	}
	return title
}

func (a App) renderStatusBar() string {
	left := a.statusMsg
	right := "j/k:nav tab:pane /:search r:run t:toggle e:edit a:add d:delete S:sync l:logs q:quit"
	if a.mode == ModeSearch {
		right = "enter:apply esc:cancel"
	}
	if a.mode == ModeEditor {
		right = "tab:next field enter:save esc:cancel"
	}

	gap := a.width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return helpStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func statusIndicator(job core.JobView) string {
	if job.Disabled {
		return dimStyle.Render("‐")
	}
	switch job.Run.Status {
	case core.StatusRunning:
		return statusRunningStyle.Render("●")
	case core.StatusOK:
		return statusOKStyle.Render("●")
	case core.StatusFailed:
		return statusFailedStyle.Render("✖")
	case core.StatusIdle:
		return statusIdleStyle.Render("○")
	default:
		return dimStyle.Render("?")
	}
}

func colorStatus(job core.JobView) string {
	status := string(job.Run.Status)
	if job.Disabled {
		return dimStyle.Render("disabled")
	}
	switch job.Run.Status {
	case core.StatusRunning:
		return statusRunningStyle.Render(status)
	case core.StatusOK:
		return statusOKStyle.Render(status)
	case core.StatusFailed:
		return statusFailedStyle.Render(status)
	default:
		return dimStyle.Render(status)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatRelTime renders a timestamp relative to now ("3m ago", "in 2h").
func formatRelTime(t time.Time) string {
	d := time.Until(t)
	past := d < 0
	if past {
		d = -d
	}

	var s string
	switch {
	case d < time.Minute:
		s = fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		s = fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		s = fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return t.Format("2006-01-02 15:04")
	}

	if past {
		return s + " ago"
	}
	return "in " + s
}
