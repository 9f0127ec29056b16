// Package orchestrator runs one analyzer pass: find the newest access log,
// aggregate it, and write the HTML report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/config"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/logging"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/logsource"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/metrics"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/preflight"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/report"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/tui"
)

const (
	// badLineSamples is how many recent unparsable lines are kept for
	// diagnostics when the error limit is exceeded.
	badLineSamples = 5

	// tuiProgressEvery is the progress interval while the dashboard runs.
	tuiProgressEvery = 1_000
)

var (
	// ErrNothingToDo means the run ended early without error: there is no
	// log to analyze, or its report already exists.
	ErrNothingToDo = errors.New("nothing to do")

	// ErrPreflightFailed is returned when a required preflight check fails.
	ErrPreflightFailed = errors.New("preflight checks failed (use --skip-preflight to override)")

	// ErrReport wraps failures to render or write the report.
	ErrReport = errors.New("report failed")
)

// Orchestrator coordinates all components for one analyzer run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server

	badLines *logging.LineBuffer
	program  *tea.Program
	out      io.Writer

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	registry := prometheus.NewRegistry()

	return &Orchestrator{
		config:   cfg,
		logger:   logger,
		version:  version,
		registry: registry,
		metrics: metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
			Version:           version,
			ErrorLimitPercent: cfg.ErrorsLimitPerc,
		}, registry),
		badLines: logging.NewLineBuffer(badLineSamples),
		out:      os.Stdout,
	}
}

// SetOutput redirects the exit summary. Defaults to stdout.
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// Run executes one analyzer pass. It returns ErrNothingToDo (possibly
// wrapped) when there was nothing to analyze, and any other error when the
// run failed. A failed run never leaves a report behind.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	o.startTime = time.Now()

	o.logger.Info("analyzer_started",
		"version", o.version,
		"log_dir", o.config.LogDir,
		"report_dir", o.config.ReportDir,
		"errors_limit_perc", o.config.ErrorsLimitPerc,
		"sample_limit", o.config.SampleLimit,
	)
	defer func() {
		elapsed := time.Since(o.startTime)
		o.logger.Debug("elapsed", "duration", elapsed.String())
		o.logger.Info("analyzer_finished", "outcome", outcome(err))
	}()

	if !o.config.SkipPreflight {
		if err := o.runPreflight(); err != nil {
			return err
		}
	}

	lf, err := logsource.FindLatest(o.config.LogDir, o.config.LogPrefix)
	if err != nil {
		if errors.Is(err, logsource.ErrNoLog) || errors.Is(err, logsource.ErrNoLogDir) {
			o.logger.Info("no_log_found", "log_dir", o.config.LogDir, "reason", err.Error())
			return fmt.Errorf("%w: %w", ErrNothingToDo, err)
		}
		return fmt.Errorf("find log: %w", err)
	}
	o.logger.Info("log_found", "path", lf.Path, "date", lf.Date.Format("2006-01-02"), "ext", lf.Ext)

	reportPath := report.Path(o.config.ReportDir, lf.Date)
	exists, err := report.Exists(reportPath)
	if err != nil {
		return fmt.Errorf("check report: %w", err)
	}
	if exists {
		o.logger.Info("report_exists", "path", reportPath)
		return fmt.Errorf("%w: report %s already exists", ErrNothingToDo, reportPath)
	}

	if err := o.startMetrics(); err != nil {
		return err
	}
	defer o.stopMetrics()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tuiDone := o.startTUI(ctx, cancel, lf)

	result, err := o.analyze(ctx, lf)
	if err == nil {
		err = o.writeReport(reportPath, result)
	}

	finishedAt := time.Now()
	duration := finishedAt.Sub(o.startTime)
	if err != nil {
		o.metrics.RecordFailure(failureReason(err), duration, finishedAt)
		reportPath = ""
		result = nil
	} else {
		o.metrics.RecordRun(metrics.RunSummary{
			LogPath:      lf.Path,
			Result:       result,
			ReportedURLs: len(stats.Top(result.Stats, o.config.ReportSize)),
			Duration:     duration,
			FinishedAt:   finishedAt,
		})
	}

	if tuiDone != nil {
		tui.SendDone(o.program, tui.DoneMsg{Result: result, ReportPath: reportPath, Err: err})
		<-tuiDone
	}

	fmt.Fprint(o.out, stats.FormatExitSummary(result, stats.SummaryConfig{
		LogPath:           lf.Path,
		ReportPath:        reportPath,
		Duration:          duration,
		ErrorLimitPercent: o.config.ErrorsLimitPerc,
		TopN:              o.config.SummaryTopN,
	}))

	o.writeTextfile()

	return err
}

// runPreflight runs the startup checks and logs their outcome.
func (o *Orchestrator) runPreflight() error {
	result := preflight.RunAll(o.config)
	for _, c := range result.Checks {
		switch {
		case !c.Passed:
			o.logger.Error("preflight_failed", "check", c.Name, "message", c.Message)
		case c.Warning:
			o.logger.Warn("preflight_warning", "check", c.Name, "message", c.Message)
		default:
			o.logger.Debug("preflight_passed", "check", c.Name, "message", c.Message)
		}
	}
	if !result.Passed {
		preflight.FprintResults(os.Stderr, result)
		return ErrPreflightFailed
	}
	return nil
}

// analyze aggregates the log file lf.
func (o *Orchestrator) analyze(ctx context.Context, lf *logsource.LogFile) (*stats.Result, error) {
	src, err := logsource.Open(lf)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	progressEvery := stats.DefaultProgressEvery
	if o.program != nil {
		progressEvery = tuiProgressEvery
	}

	result, err := stats.AggregateContext(ctx, src, stats.Config{
		ErrorLimitPercent: o.config.ErrorsLimitPerc,
		SampleLimit:       o.config.SampleLimit,
		Logger:            o.logger,
		OnBadLine: func(_ int, line []byte) {
			o.badLines.Add(string(line))
		},
		OnProgress:    o.onProgress(src),
		ProgressEvery: progressEvery,
	})
	if err != nil {
		var limitErr *stats.ErrorLimitError
		if errors.As(err, &limitErr) {
			o.logger.Error("error_limit_exceeded",
				"bad_lines", limitErr.BadLines,
				"total_lines", limitErr.TotalLines,
				"bad_percent", limitErr.Percent(),
				"limit", limitErr.Limit,
				"recent_bad_lines", o.badLines.Recent(badLineSamples),
			)
		}
		return nil, fmt.Errorf("analyze %s: %w", lf.Path, err)
	}

	o.logger.Info("log_analyzed",
		"lines", result.TotalLines,
		"bad_lines", result.BadLines,
		"urls", len(result.Stats),
		"request_time_sum", result.TimeSumAll,
	)
	return result, nil
}

// onProgress fans progress out to metrics and the dashboard (or debug log).
func (o *Orchestrator) onProgress(src *logsource.Reader) func(stats.Progress) {
	return func(p stats.Progress) {
		o.metrics.SetProgress(p)

		if o.program != nil {
			tui.SendProgress(o.program, tui.ProgressMsg{
				Progress:   p,
				BytesRead:  src.CompressedRead(),
				BytesTotal: src.Size(),
			})
			return
		}

		o.logger.Debug("aggregation_progress",
			"lines", p.TotalLines,
			"bad_lines", p.BadLines,
			"urls", p.URLs,
			"bytes_read", src.CompressedRead(),
			"bytes_total", src.Size(),
		)
	}
}

// writeReport renders the top ReportSize entries into the report.
func (o *Orchestrator) writeReport(path string, result *stats.Result) error {
	if err := report.Write(path, o.config.TemplatePath, result.Stats, o.config.ReportSize); err != nil {
		return fmt.Errorf("%w: %w", ErrReport, err)
	}
	o.logger.Info("report_written",
		"path", path,
		"rows", len(stats.Top(result.Stats, o.config.ReportSize)),
	)
	return nil
}

// startTUI launches the dashboard when enabled. The returned channel is
// closed when the program exits; it is nil when the TUI is off. Quitting
// the dashboard early cancels the run.
func (o *Orchestrator) startTUI(ctx context.Context, cancel context.CancelFunc, lf *logsource.LogFile) <-chan struct{} {
	if !o.config.TUIEnabled {
		return nil
	}

	model := tui.New(tui.Config{
		LogPath:           lf.Path,
		ErrorLimitPercent: o.config.ErrorsLimitPerc,
		TopN:              o.config.SummaryTopN,
		MetricsAddr:       o.config.MetricsAddr,
	})
	o.program = tea.NewProgram(model, tea.WithContext(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		final, err := o.program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			o.logger.Warn("tui_error", "error", err)
		}
		if m, ok := final.(tui.Model); ok && m.Interrupted() {
			o.logger.Info("tui_quit", "reason", "user")
			cancel()
		}
	}()
	return done
}

// startMetrics restores state from a previous textfile and starts the
// HTTP endpoint when configured.
func (o *Orchestrator) startMetrics() error {
	if path := o.config.MetricsTextfile; path != "" {
		families, err := metrics.ReadTextfile(path)
		if err != nil {
			o.logger.Warn("metrics_textfile_unreadable", "path", path, "error", err)
		} else {
			o.metrics.Restore(families)
		}
	}

	if o.config.MetricsAddr == "" {
		return nil
	}

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, o.registry}
	o.metricsServer = metrics.NewServer(o.config.MetricsAddr, gatherers, o.logger)
	if err := o.metricsServer.Start(); err != nil {
		o.metricsServer = nil
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// stopMetrics shuts the metrics server down.
func (o *Orchestrator) stopMetrics() {
	if o.metricsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// writeTextfile exports the run's metrics for node_exporter.
func (o *Orchestrator) writeTextfile() {
	path := o.config.MetricsTextfile
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, o.registry); err != nil {
		o.logger.Error("metrics_textfile_failed", "path", path, "error", err)
		return
	}
	o.logger.Debug("metrics_textfile_written", "path", path)
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Registry returns the registry holding the run's metrics.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// failureReason maps a run error to the reason label of
// log_analyzer_run_failures_total.
func failureReason(err error) string {
	switch {
	case errors.Is(err, stats.ErrErrorLimit):
		return "error_limit"
	case errors.Is(err, stats.ErrEmptyLog):
		return "empty_log"
	case errors.Is(err, stats.ErrDecode):
		return "decode"
	case errors.Is(err, stats.ErrParseTime):
		return "parse_time"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrReport):
		return "report"
	default:
		return "io"
	}
}

// outcome labels the analyzer_finished log line.
func outcome(err error) string {
	switch {
	case err == nil:
		return "report_written"
	case errors.Is(err, ErrNothingToDo):
		return "nothing_to_do"
	default:
		return "failed"
	}
}
