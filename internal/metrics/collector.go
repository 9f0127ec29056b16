// Package metrics provides Prometheus metrics for log-analyzer.
//
// A run exposes its metrics two ways: a /metrics endpoint while the run is in
// progress (optional, --metrics), and a node_exporter textfile written when the
// run ends (optional, --metrics-textfile).
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
)

const namespace = "log_analyzer"

// Metric names read back from a previous textfile.
const (
	lastSuccessMetric = namespace + "_last_success_timestamp_seconds"
)

// Collector holds the metrics of one analyzer run.
type Collector struct {
	info              *prometheus.GaugeVec
	errorLimitPercent prometheus.Gauge

	// Progress
	linesProcessed prometheus.Gauge
	badLines       prometheus.Gauge
	urls           prometheus.Gauge

	// Result
	badLinePercent      prometheus.Gauge
	requestTimeSum      prometheus.Gauge
	requestTimeQuantile *prometheus.GaugeVec
	reportedURLs        prometheus.Gauge

	// Outcome
	runDuration      prometheus.Gauge
	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
	lastSuccess      prometheus.Gauge
	runFailures      *prometheus.CounterVec

	mu              sync.Mutex
	lastSuccessTime time.Time
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version           string
	ErrorLimitPercent float64
}

// RunSummary describes a successful run.
type RunSummary struct {
	LogPath      string
	Result       *stats.Result
	ReportedURLs int
	Duration     time.Duration
	FinishedAt   time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the analyzer (value always 1)",
		}, []string{"version"}),
		errorLimitPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "error_limit_percent",
			Help:      "Configured unparsable-line budget in percent",
		}),

		linesProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lines_processed",
			Help:      "Lines consumed by the current run",
		}),
		badLines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bad_lines",
			Help:      "Unparsable lines seen by the current run",
		}),
		urls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "urls",
			Help:      "Distinct request targets seen by the current run",
		}),

		badLinePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bad_line_percent",
			Help:      "Share of unparsable lines in the last successful run",
		}),
		requestTimeSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_time_seconds_sum",
			Help:      "Total request time of all parsed lines",
		}),
		requestTimeQuantile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "request_time_seconds",
			Help:      "Estimated request time quantiles over all parsed lines",
		}, []string{"quantile"}),
		reportedURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_urls",
			Help:      "Rows written to the last report",
		}),

		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run produced a report, 0 otherwise",
		}),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: lastSuccessMetric,
			Help: "Unix time of the last run that produced a report",
		}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Failed runs by reason",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		c.info,
		c.errorLimitPercent,
		c.linesProcessed,
		c.badLines,
		c.urls,
		c.badLinePercent,
		c.requestTimeSum,
		c.requestTimeQuantile,
		c.reportedURLs,
		c.runDuration,
		c.lastRunSuccess,
		c.lastRunTimestamp,
		c.lastSuccess,
		c.runFailures,
	)

	c.info.WithLabelValues(cfg.Version).Set(1)
	c.errorLimitPercent.Set(cfg.ErrorLimitPercent)

	return c
}

// SetProgress publishes the counters of a running aggregation.
func (c *Collector) SetProgress(p stats.Progress) {
	c.linesProcessed.Set(float64(p.TotalLines))
	c.badLines.Set(float64(p.BadLines))
	c.urls.Set(float64(p.URLs))
}

// RecordRun records a run that produced a report.
func (c *Collector) RecordRun(s RunSummary) {
	r := s.Result
	if r != nil {
		c.SetProgress(stats.Progress{
			TotalLines: r.TotalLines,
			BadLines:   r.BadLines,
			URLs:       len(r.Stats),
			TimeSumAll: r.TimeSumAll,
		})
		c.badLinePercent.Set(r.BadPercent())
		c.requestTimeSum.Set(r.TimeSumAll)
		c.requestTimeQuantile.WithLabelValues("0.5").Set(r.P50)
		c.requestTimeQuantile.WithLabelValues("0.95").Set(r.P95)
		c.requestTimeQuantile.WithLabelValues("0.99").Set(r.P99)
	}
	c.reportedURLs.Set(float64(s.ReportedURLs))

	c.runDuration.Set(s.Duration.Seconds())
	c.lastRunSuccess.Set(1)
	c.lastRunTimestamp.Set(float64(s.FinishedAt.Unix()))

	c.mu.Lock()
	c.lastSuccessTime = s.FinishedAt
	c.mu.Unlock()
	c.lastSuccess.Set(float64(s.FinishedAt.Unix()))
}

// RecordFailure records a run that ended without a report.
func (c *Collector) RecordFailure(reason string, d time.Duration, finishedAt time.Time) {
	c.runFailures.WithLabelValues(reason).Inc()
	c.runDuration.Set(d.Seconds())
	c.lastRunSuccess.Set(0)
	c.lastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// Restore carries state over from a previous run's textfile, so a failing
// run does not reset the time of the last successful one.
func (c *Collector) Restore(families map[string]*dto.MetricFamily) {
	mf, ok := families[lastSuccessMetric]
	if !ok || len(mf.GetMetric()) == 0 {
		return
	}

	ts := mf.GetMetric()[0].GetGauge().GetValue()
	if ts <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastSuccessTime.IsZero() {
		return
	}
	c.lastSuccessTime = time.Unix(int64(ts), 0)
	c.lastSuccess.Set(ts)
}

// LastSuccess returns the time of the last successful run, if known.
func (c *Collector) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccessTime
}
