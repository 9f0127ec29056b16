package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with an isolated registry.
func newTestCollector(cfg CollectorConfig) (*Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(cfg, registry)
	return c, registry
}

// gather returns the registry's families keyed by name.
func gather(t *testing.T, g prometheus.Gatherer) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	m := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		m[mf.GetName()] = mf
	}
	return m
}

// value returns the gauge or counter value of the series matching labels.
func value(t *testing.T, families map[string]*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf, ok := families[name]
	if !ok {
		t.Fatalf("metric %s not found", name)
	}
	for _, m := range mf.GetMetric() {
		if !labelsMatch(m.GetLabel(), labels) {
			continue
		}
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func sampleResult() *stats.Result {
	return &stats.Result{
		Stats: []stats.URLStat{
			{URL: "/a", Count: 3, TimeSum: 1.2},
			{URL: "/b", Count: 1, TimeSum: 0.3},
		},
		TotalLines: 5,
		BadLines:   1,
		TimeSumAll: 1.5,
		P50:        0.3,
		P95:        0.9,
		P99:        0.95,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestNewCollector_StaticMetrics(t *testing.T) {
	_, reg := newTestCollector(CollectorConfig{Version: "1.2.3", ErrorLimitPercent: 5})
	families := gather(t, reg)

	if got := value(t, families, "log_analyzer_info", map[string]string{"version": "1.2.3"}); got != 1 {
		t.Errorf("info = %v, want 1", got)
	}
	if got := value(t, families, "log_analyzer_error_limit_percent", nil); got != 5 {
		t.Errorf("error_limit_percent = %v, want 5", got)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollectorWithRegistry(CollectorConfig{}, reg)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry should panic")
		}
	}()
	NewCollectorWithRegistry(CollectorConfig{}, reg)
}

func TestCollector_SetProgress(t *testing.T) {
	c, reg := newTestCollector(CollectorConfig{})
	c.SetProgress(stats.Progress{TotalLines: 100, BadLines: 3, URLs: 7})

	families := gather(t, reg)
	testCases := []struct {
		name     string
		expected float64
	}{
		{"log_analyzer_lines_processed", 100},
		{"log_analyzer_bad_lines", 3},
		{"log_analyzer_urls", 7},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := value(t, families, tc.name, nil); got != tc.expected {
				t.Errorf("%s = %v, want %v", tc.name, got, tc.expected)
			}
		})
	}
}

func TestCollector_RecordRun(t *testing.T) {
	c, reg := newTestCollector(CollectorConfig{})
	finished := time.Unix(1_700_000_000, 0)

	c.RecordRun(RunSummary{
		LogPath:      "/var/log/nginx/nginx-access-ui.log-20170630.gz",
		Result:       sampleResult(),
		ReportedURLs: 2,
		Duration:     1500 * time.Millisecond,
		FinishedAt:   finished,
	})

	families := gather(t, reg)
	testCases := []struct {
		name     string
		labels   map[string]string
		expected float64
	}{
		{"log_analyzer_lines_processed", nil, 5},
		{"log_analyzer_bad_lines", nil, 1},
		{"log_analyzer_urls", nil, 2},
		{"log_analyzer_bad_line_percent", nil, 20},
		{"log_analyzer_request_time_seconds_sum", nil, 1.5},
		{"log_analyzer_request_time_seconds", map[string]string{"quantile": "0.5"}, 0.3},
		{"log_analyzer_request_time_seconds", map[string]string{"quantile": "0.95"}, 0.9},
		{"log_analyzer_request_time_seconds", map[string]string{"quantile": "0.99"}, 0.95},
		{"log_analyzer_report_urls", nil, 2},
		{"log_analyzer_run_duration_seconds", nil, 1.5},
		{"log_analyzer_last_run_success", nil, 1},
		{"log_analyzer_last_run_timestamp_seconds", nil, 1_700_000_000},
		{"log_analyzer_last_success_timestamp_seconds", nil, 1_700_000_000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := value(t, families, tc.name, tc.labels); got != tc.expected {
				t.Errorf("%s%v = %v, want %v", tc.name, tc.labels, got, tc.expected)
			}
		})
	}

	if !c.LastSuccess().Equal(finished) {
		t.Errorf("LastSuccess() = %v, want %v", c.LastSuccess(), finished)
	}
}

func TestCollector_RecordFailure(t *testing.T) {
	c, reg := newTestCollector(CollectorConfig{})
	finished := time.Unix(1_700_000_100, 0)

	c.RecordFailure("error_limit", 2*time.Second, finished)
	c.RecordFailure("error_limit", time.Second, finished)
	c.RecordFailure("decode", time.Second, finished)

	families := gather(t, reg)
	if got := value(t, families, "log_analyzer_run_failures_total", map[string]string{"reason": "error_limit"}); got != 2 {
		t.Errorf("failures{error_limit} = %v, want 2", got)
	}
	if got := value(t, families, "log_analyzer_run_failures_total", map[string]string{"reason": "decode"}); got != 1 {
		t.Errorf("failures{decode} = %v, want 1", got)
	}
	if got := value(t, families, "log_analyzer_last_run_success", nil); got != 0 {
		t.Errorf("last_run_success = %v, want 0", got)
	}
	if got := value(t, families, "log_analyzer_run_duration_seconds", nil); got != 1 {
		t.Errorf("run_duration_seconds = %v, want 1", got)
	}
	if !c.LastSuccess().IsZero() {
		t.Errorf("LastSuccess() = %v, want zero", c.LastSuccess())
	}
}

func TestCollector_Restore(t *testing.T) {
	previous, prevReg := newTestCollector(CollectorConfig{})
	previous.RecordRun(RunSummary{Result: sampleResult(), FinishedAt: time.Unix(1_600_000_000, 0)})
	families := gather(t, prevReg)

	t.Run("carries_last_success", func(t *testing.T) {
		c, reg := newTestCollector(CollectorConfig{})
		c.Restore(families)
		c.RecordFailure("empty_log", time.Second, time.Unix(1_700_000_000, 0))

		got := value(t, gather(t, reg), "log_analyzer_last_success_timestamp_seconds", nil)
		if got != 1_600_000_000 {
			t.Errorf("last_success_timestamp_seconds = %v, want 1600000000", got)
		}
		if c.LastSuccess().Unix() != 1_600_000_000 {
			t.Errorf("LastSuccess() = %v", c.LastSuccess())
		}
	})

	t.Run("does_not_override_newer_success", func(t *testing.T) {
		c, _ := newTestCollector(CollectorConfig{})
		c.RecordRun(RunSummary{Result: sampleResult(), FinishedAt: time.Unix(1_700_000_000, 0)})
		c.Restore(families)

		if c.LastSuccess().Unix() != 1_700_000_000 {
			t.Errorf("LastSuccess() = %v, want the current run", c.LastSuccess())
		}
	})

	t.Run("empty_input", func(t *testing.T) {
		c, _ := newTestCollector(CollectorConfig{})
		c.Restore(map[string]*dto.MetricFamily{})
		if !c.LastSuccess().IsZero() {
			t.Errorf("LastSuccess() = %v, want zero", c.LastSuccess())
		}
	})
}

func BenchmarkCollector_SetProgress(b *testing.B) {
	c := NewCollectorWithRegistry(CollectorConfig{}, prometheus.NewRegistry())
	p := stats.Progress{TotalLines: 1000, BadLines: 5, URLs: 40}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.SetProgress(p)
	}
}
