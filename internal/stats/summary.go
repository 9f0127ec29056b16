package stats

import (
	"fmt"
	"strings"
	"time"
)

const (
	summaryRule    = "═══════════════════════════════════════════════════════════════════════════════\n"
	summarySection = "───────────────────────────────────────────────────────────────────────────────\n"

	// maxURLWidth is where long request targets are cut in the summary table.
	maxURLWidth = 48
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// LogPath is the access log that was analyzed
	LogPath string

	// ReportPath is where the HTML report was written (empty on failure)
	ReportPath string

	// Duration is the total run duration
	Duration time.Duration

	// ErrorLimitPercent is the configured bad-line budget
	ErrorLimitPercent float64

	// TopN is the number of URLs listed (0 = none)
	TopN int
}

// FormatExitSummary formats a successful aggregation for display at exit.
func FormatExitSummary(r *Result, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(summaryRule)
	b.WriteString("                         log-analyzer Exit Summary\n")
	b.WriteString(summaryRule + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Log:                    %s\n", cfg.LogPath)
	if cfg.ReportPath != "" {
		fmt.Fprintf(&b, "Report:                 %s\n", cfg.ReportPath)
	}
	b.WriteString("\n")

	if r == nil {
		b.WriteString("(No statistics: the run failed before aggregation completed)\n")
		b.WriteString(summaryRule)
		return b.String()
	}

	b.WriteString(summarySection)
	b.WriteString("                                  Lines\n")
	b.WriteString(summarySection + "\n")

	fmt.Fprintf(&b, "  Total Lines:          %s\n", FormatNumber(int64(r.TotalLines)))
	fmt.Fprintf(&b, "  Parsed:               %s\n", FormatNumber(int64(r.TotalLines-r.BadLines)))
	fmt.Fprintf(&b, "  Unparsable:           %s (%.3f%%, limit %g%%)\n",
		FormatNumber(int64(r.BadLines)), r.BadPercent(), cfg.ErrorLimitPercent)
	fmt.Fprintf(&b, "  Distinct URLs:        %s\n\n", FormatNumber(int64(len(r.Stats))))

	b.WriteString(summarySection)
	b.WriteString("                               Request Time\n")
	b.WriteString(summarySection + "\n")

	fmt.Fprintf(&b, "  Total:                %s\n", FormatSeconds(r.TimeSumAll))
	fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatSeconds(r.P50))
	fmt.Fprintf(&b, "  P95:                  %s\n", FormatSeconds(r.P95))
	fmt.Fprintf(&b, "  P99:                  %s\n\n", FormatSeconds(r.P99))

	top := Top(r.Stats, cfg.TopN)
	if cfg.TopN > 0 && len(top) > 0 {
		b.WriteString(summarySection)
		fmt.Fprintf(&b, "                          Top %d URLs by Total Time\n", len(top))
		b.WriteString(summarySection + "\n")

		fmt.Fprintf(&b, "  %-*s %8s %10s %8s %8s\n", maxURLWidth, "URL", "Count", "Sum (s)", "Med", "Time%")
		b.WriteString("  " + strings.Repeat("─", maxURLWidth+39) + "\n")
		for _, s := range top {
			fmt.Fprintf(&b, "  %-*s %8d %10.3f %8.3f %7.2f%%\n",
				maxURLWidth, TruncateURL(s.URL, maxURLWidth), s.Count, s.TimeSum, s.TimeMed, s.TimePerc)
		}
		b.WriteString("\n")
	}

	b.WriteString(summaryRule)

	return b.String()
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatSeconds formats a request time in seconds, switching to ms below 1s.
func FormatSeconds(sec float64) string {
	if sec > 0 && sec < 1 {
		return fmt.Sprintf("%.0f ms", sec*1000)
	}
	return fmt.Sprintf("%.3f s", sec)
}

// TruncateURL shortens url to at most width runes, marking the cut with "…".
func TruncateURL(url string, width int) string {
	r := []rune(url)
	if width <= 1 || len(r) <= width {
		return url
	}
	return string(r[:width-1]) + "…"
}
