package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderView renders the dashboard.
func (m Model) renderView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderLineStats(),
	}

	if m.done {
		if m.err != nil {
			sections = append(sections, m.renderFailure())
		} else if m.result != nil {
			sections = append(sections, m.renderTopURLs())
		}
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	var status string
	switch {
	case m.done && m.err != nil:
		status = statusError.Render("● Failed")
	case m.done:
		status = statusOK.Render("● Done")
	default:
		status = GetBudgetLabel(m.BadPercent(), m.errorLimitPercent)
	}

	header := fmt.Sprintf(
		" log-analyzer │ %s │ Elapsed: %s ",
		status,
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(m.FileProgress(), barWidth)

	var status string
	if m.done {
		status = statusOK.Render("✓ Log consumed")
	} else {
		status = statusInfo.Render(fmt.Sprintf("Reading... %s / %s",
			formatBytes(m.bytesRead), formatBytes(m.bytesTotal)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		mutedStyle.Render(stats.TruncateURL(m.logPath, m.width-6)),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Line Statistics
// =============================================================================

func (m Model) renderLineStats() string {
	p := m.progress
	rates := m.lineRate.Rates()

	badPercent := m.BadPercent()
	badStyle := GetBudgetStyle(GetBudgetStatus(badPercent, m.errorLimitPercent))
	badValue := lipgloss.JoinHorizontal(lipgloss.Left,
		badStyle.Render(fmt.Sprintf("%s (%.3f%%)", formatNumberWithCommas(int64(p.BadLines)), badPercent)),
		mutedStyle.Render(fmt.Sprintf(" limit %g%%", m.errorLimitPercent)),
	)

	rows := []string{
		RenderKeyValueWide("Lines", formatNumberWithCommas(int64(p.TotalLines))),
		lipgloss.JoinHorizontal(lipgloss.Left, labelWideStyle.Render("Unparsable:"), badValue),
		RenderKeyValueWide("Lines/sec", fmt.Sprintf("%s (avg %s)", formatRate(rates.Avg10s), formatRate(rates.AvgOverall))),
		RenderKeyValueWide("Distinct URLs", formatNumberWithCommas(int64(p.URLs))),
		RenderKeyValueWide("Request Time Total", stats.FormatSeconds(p.TimeSumAll)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Lines")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Final Result
// =============================================================================

func (m Model) renderTopURLs() string {
	top := stats.Top(m.result.Stats, m.topN)
	if m.topN <= 0 || len(top) == 0 {
		return ""
	}

	urlWidth := m.width - 50
	if urlWidth < 20 {
		urlWidth = 20
	}

	rows := make([][]string, 0, len(top))
	for _, s := range top {
		rows = append(rows, []string{
			stats.TruncateURL(s.URL, urlWidth),
			formatNumberWithCommas(int64(s.Count)),
			fmt.Sprintf("%.3f", s.TimeSum),
			fmt.Sprintf("%.3f", s.TimeMed),
			fmt.Sprintf("%.2f%%", s.TimePerc),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("URL", "Count", "Sum (s)", "Med (s)", "Time%").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case row%2 == 0:
				return tableRowEvenStyle
			default:
				return tableRowOddStyle
			}
		})

	title := fmt.Sprintf("Top %d URLs by Total Time", len(top))
	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render(title),
		t.Render(),
	)
	if m.reportPath != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, dimStyle.Render("Report: "+m.reportPath))
	}

	return boxStyle.Width(m.width - 2).Render(content)
}

func (m Model) renderFailure() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Run Failed"),
		statusError.Render(m.err.Error()),
		dimStyle.Render("No report was written."),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{"q: quit"}
	if m.metricsAddr != "" {
		shortcuts = append(shortcuts, "metrics: http://"+m.metricsAddr+"/metrics")
	}
	return footerStyle.Render(dimStyle.Render(strings.Join(shortcuts, " │ ")))
}
