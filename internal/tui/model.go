package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/timeseries"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ProgressMsg carries the counters of the running aggregation.
type ProgressMsg struct {
	Progress stats.Progress

	// BytesRead is the number of bytes consumed from the log file on disk
	// (compressed bytes for .gz and .zst logs).
	BytesRead int64

	// BytesTotal is the size of the log file on disk.
	BytesTotal int64
}

// DoneMsg signals the end of the run.
type DoneMsg struct {
	Result     *stats.Result
	ReportPath string
	Err        error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	logPath           string
	errorLimitPercent float64
	topN              int
	metricsAddr       string

	// Current state
	progress   stats.Progress
	bytesRead  int64
	bytesTotal int64
	startTime  time.Time
	lastUpdate time.Time
	lineRate   *timeseries.RateTracker

	// Final state
	done       bool
	result     *stats.Result
	reportPath string
	err        error

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	LogPath           string
	ErrorLimitPercent float64
	TopN              int
	MetricsAddr       string
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		logPath:           cfg.LogPath,
		errorLimitPercent: cfg.ErrorLimitPercent,
		topN:              cfg.TopN,
		metricsAddr:       cfg.MetricsAddr,
		startTime:         time.Now(),
		lastUpdate:        time.Now(),
		lineRate:          timeseries.NewRateTracker(),
		width:             80,
		height:            24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		m.lineRate.RecordSample()
		return m, tickCmd()

	case ProgressMsg:
		m.progress = msg.Progress
		m.bytesRead = msg.BytesRead
		m.bytesTotal = msg.BytesTotal
		m.lineRate.Set(int64(msg.Progress.TotalLines))
		m.lastUpdate = time.Now()
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.reportPath = msg.ReportPath
		m.err = msg.Err
		if msg.Result != nil {
			m.progress = stats.Progress{
				TotalLines: msg.Result.TotalLines,
				BadLines:   msg.Result.BadLines,
				URLs:       len(msg.Result.Stats),
				TimeSumAll: msg.Result.TimeSumAll,
			}
			m.bytesRead = m.bytesTotal
		}
		m.lastUpdate = time.Now()
		return m, tea.Quit

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting && !m.done {
		return ""
	}
	return m.renderView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Done reports whether the run has finished.
func (m Model) Done() bool {
	return m.done
}

// Interrupted reports whether the user quit before the run finished.
func (m Model) Interrupted() bool {
	return m.quitting && !m.done
}

// FileProgress returns the share of the log file consumed (0.0 to 1.0).
func (m Model) FileProgress() float64 {
	if m.bytesTotal <= 0 {
		return 0
	}
	p := float64(m.bytesRead) / float64(m.bytesTotal)
	if p > 1 {
		p = 1
	}
	return p
}

// BadPercent returns the current share of unparsable lines in percent.
func (m Model) BadPercent() float64 {
	if m.progress.TotalLines == 0 {
		return 0
	}
	return float64(m.progress.BadLines) / float64(m.progress.TotalLines) * 100
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendProgress sends a progress update to the TUI.
func SendProgress(p *tea.Program, msg ProgressMsg) {
	if p != nil {
		p.Send(msg)
	}
}

// SendDone sends the final outcome to the TUI.
func SendDone(p *tea.Program, msg DoneMsg) {
	if p != nil {
		p.Send(msg)
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatBytes formats bytes with KB/MB/GB suffixes.
func formatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// formatRate formats a rate with appropriate precision.
func formatRate(rate float64) string {
	if rate >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", rate/1_000_000)
	}
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// formatNumberWithCommas formats a number with thousand separators.
func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "0" // Handle negative as 0 for display
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
