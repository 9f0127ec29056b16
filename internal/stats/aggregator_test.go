package stats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

// logLine builds an access-log line in the ui_short format.
func logLine(url, requestTime string) string {
	return fmt.Sprintf(`1.196.116.32 -  - [29/Jun/2017:03:50:22 +0300] "GET %s HTTP/1.1" 200 927 "-" "Lynx/2.8.8dev.9 libwww-FM/2.14" "-" "1498697422-2190034393-4708-9752759" "dc7161be3" %s`,
		url, requestTime)
}

const badLine = `1.196.116.32 -  - [29/Jun/2017:03:50:22 +0300] "-" 200 927 "-" "-" "-" "-" "-" 0.390`

func buildLog(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestAggregate_EndToEnd(t *testing.T) {
	input := buildLog(
		logLine("/a", "0.100"),
		logLine("/b", "0.200"),
		logLine("/a", "0.300"),
	)

	result, err := Aggregate(strings.NewReader(input), Config{ErrorLimitPercent: 5})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if len(result.Stats) != 2 {
		t.Fatalf("len(Stats) = %d, want 2", len(result.Stats))
	}

	want := []URLStat{
		{URL: "/a", Count: 2, CountPerc: 66.667, TimeSum: 0.4, TimeMax: 0.3, TimeAvg: 0.2, TimeMed: 0.2, TimePerc: 66.667},
		{URL: "/b", Count: 1, CountPerc: 33.333, TimeSum: 0.2, TimeMax: 0.2, TimeAvg: 0.2, TimeMed: 0.2, TimePerc: 33.333},
	}
	for i, w := range want {
		got := result.Stats[i]
		if got.URL != w.URL || got.Count != w.Count {
			t.Errorf("Stats[%d] = %s x%d, want %s x%d", i, got.URL, got.Count, w.URL, w.Count)
		}
		checkFloat(t, fmt.Sprintf("%s TimeSum", w.URL), got.TimeSum, w.TimeSum)
		checkFloat(t, fmt.Sprintf("%s TimeMax", w.URL), got.TimeMax, w.TimeMax)
		checkFloat(t, fmt.Sprintf("%s TimeMed", w.URL), got.TimeMed, w.TimeMed)
		checkFloat(t, fmt.Sprintf("%s TimeAvg", w.URL), got.TimeAvg, w.TimeAvg)
		checkFloat(t, fmt.Sprintf("%s CountPerc", w.URL), got.CountPerc, w.CountPerc)
		checkFloat(t, fmt.Sprintf("%s TimePerc", w.URL), got.TimePerc, w.TimePerc)
	}

	if result.TotalLines != 3 || result.BadLines != 0 {
		t.Errorf("TotalLines/BadLines = %d/%d, want 3/0", result.TotalLines, result.BadLines)
	}
	checkFloat(t, "TimeSumAll", result.TimeSumAll, 0.6)
}

func checkFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestAggregate_ErrorThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		bad      int
		wantFail bool
	}{
		{"below limit", 4, false},
		{"at limit", 5, false},
		{"above limit", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := make([]string, 0, 100)
			for i := 0; i < tt.bad; i++ {
				lines = append(lines, badLine)
			}
			for len(lines) < 100 {
				lines = append(lines, logLine("/ok", "0.010"))
			}

			result, err := Aggregate(strings.NewReader(buildLog(lines...)), Config{ErrorLimitPercent: 5})
			if tt.wantFail {
				if !errors.Is(err, ErrErrorLimit) {
					t.Fatalf("err = %v, want ErrErrorLimit", err)
				}
				var limitErr *ErrorLimitError
				if !errors.As(err, &limitErr) {
					t.Fatalf("err = %T, want *ErrorLimitError", err)
				}
				if limitErr.BadLines != tt.bad || limitErr.TotalLines != 100 {
					t.Errorf("ErrorLimitError = %+v", limitErr)
				}
				if result != nil {
					t.Error("failed run must not return a result")
				}
				return
			}
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if result.BadLines != tt.bad {
				t.Errorf("BadLines = %d, want %d", result.BadLines, tt.bad)
			}
		})
	}
}

func TestAggregate_EmptyLog(t *testing.T) {
	_, err := Aggregate(strings.NewReader(""), Config{ErrorLimitPercent: 5})
	if !errors.Is(err, ErrEmptyLog) {
		t.Errorf("err = %v, want ErrEmptyLog", err)
	}
}

func TestAggregate_DecodeErrorIsFatal(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(logLine("/a", "0.100") + "\n")
	buf.WriteString(logLine("/caf\xff", "0.100") + "\n")
	buf.WriteString(logLine("/b", "0.100") + "\n")

	result, err := Aggregate(&buf, Config{ErrorLimitPercent: 100})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	var lineErr *LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 2 {
		t.Errorf("err = %v, want LineError at line 2", err)
	}
	if result != nil {
		t.Error("failed run must not return a result")
	}
}

func TestAggregate_SampleLimit(t *testing.T) {
	lines := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		lines = append(lines, logLine(fmt.Sprintf("/u%d", i), "0.100"))
	}

	result, err := Aggregate(strings.NewReader(buildLog(lines...)), Config{ErrorLimitPercent: 5, SampleLimit: 3})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if result.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", result.TotalLines)
	}
	if len(result.Stats) != 3 {
		t.Errorf("len(Stats) = %d, want 3", len(result.Stats))
	}
}

func TestAggregate_AllBadWithinFullBudget(t *testing.T) {
	result, err := Aggregate(strings.NewReader(buildLog(badLine, badLine)), Config{ErrorLimitPercent: 100})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(result.Stats) != 0 {
		t.Errorf("len(Stats) = %d, want 0", len(result.Stats))
	}
	if result.BadPercent() != 100 {
		t.Errorf("BadPercent() = %v, want 100", result.BadPercent())
	}
}

func TestAggregate_CountInvariants(t *testing.T) {
	urls := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g"}
	var lines []string
	for i := 0; i < 300; i++ {
		if i%37 == 0 {
			lines = append(lines, badLine)
			continue
		}
		lines = append(lines, logLine(urls[i%len(urls)], fmt.Sprintf("0.%03d", i%997+1)))
	}

	result, err := Aggregate(strings.NewReader(buildLog(lines...)), Config{ErrorLimitPercent: 5})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	var count int
	var countPerc, timePerc float64
	for _, s := range result.Stats {
		count += s.Count
		countPerc += s.CountPerc
		timePerc += s.TimePerc
	}

	if count != result.TotalLines-result.BadLines {
		t.Errorf("sum(Count) = %d, want %d", count, result.TotalLines-result.BadLines)
	}

	// CountPerc is relative to all lines, bad ones included.
	wantCountPerc := 100 * float64(result.TotalLines-result.BadLines) / float64(result.TotalLines)
	tolerance := 0.0005*float64(len(result.Stats)) + 1e-9
	if math.Abs(countPerc-wantCountPerc) > tolerance {
		t.Errorf("sum(CountPerc) = %v, want %v ± %v", countPerc, wantCountPerc, tolerance)
	}
	if math.Abs(timePerc-100) > tolerance+0.0005*float64(len(result.Stats)) {
		t.Errorf("sum(TimePerc) = %v, want ~100", timePerc)
	}

	for i := 1; i < len(result.Stats); i++ {
		if result.Stats[i-1].TimeSum < result.Stats[i].TimeSum {
			t.Errorf("Stats not ranked: %v before %v", result.Stats[i-1].TimeSum, result.Stats[i].TimeSum)
		}
	}
}

func TestAggregate_CountPercSumsToHundredWithoutBadLines(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, logLine(fmt.Sprintf("/u%d", i%7), "0.250"))
	}

	result, err := Aggregate(strings.NewReader(buildLog(lines...)), Config{ErrorLimitPercent: 5})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	var sum float64
	for _, s := range result.Stats {
		sum += s.CountPerc
	}
	if math.Abs(sum-100) > 0.0005*float64(len(result.Stats)) {
		t.Errorf("sum(CountPerc) = %v, want ~100", sum)
	}
}

func TestAggregate_Quantiles(t *testing.T) {
	input := buildLog(
		logLine("/a", "0.100"),
		logLine("/a", "0.200"),
		logLine("/b", "0.300"),
		logLine("/c", "0.400"),
		logLine("/c", "0.500"),
	)

	result, err := Aggregate(strings.NewReader(input), Config{ErrorLimitPercent: 5})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if result.P50 < 0.1 || result.P50 > 0.5 {
		t.Errorf("P50 = %v, want within [0.1, 0.5]", result.P50)
	}
	if result.P95 < result.P50 || result.P99 < result.P95 {
		t.Errorf("quantiles not monotonic: p50=%v p95=%v p99=%v", result.P50, result.P95, result.P99)
	}
	if result.P99 > 0.5 {
		t.Errorf("P99 = %v, want <= max 0.5", result.P99)
	}
}

func TestAggregator_ProvisionalPercentages(t *testing.T) {
	agg := NewAggregator(Config{ErrorLimitPercent: 50})

	if err := agg.Add([]byte(badLine)); err != nil {
		t.Fatal(err)
	}
	if err := agg.Add([]byte(logLine("/a", "0.500"))); err != nil {
		t.Fatal(err)
	}

	s := agg.entries["/a"]
	if s == nil {
		t.Fatal("entry /a missing")
	}
	if s.CountPerc != 50 {
		t.Errorf("provisional CountPerc = %v, want 50", s.CountPerc)
	}
	if s.TimePerc != 100 {
		t.Errorf("provisional TimePerc = %v, want 100", s.TimePerc)
	}

	p := agg.Progress()
	if p.TotalLines != 2 || p.BadLines != 1 || p.URLs != 1 {
		t.Errorf("Progress() = %+v", p)
	}
}

func TestAggregator_TooManyIntegerDigitsIsBadLine(t *testing.T) {
	agg := NewAggregator(Config{ErrorLimitPercent: 5})

	if err := agg.Add([]byte(logLine("/a", "1234567.5"))); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if p := agg.Progress(); p.BadLines != 1 || p.URLs != 0 {
		t.Errorf("Progress() = %+v, want one bad line and no URLs", p)
	}
}

func TestAggregator_IgnoresLinesPastSampleLimit(t *testing.T) {
	agg := NewAggregator(Config{ErrorLimitPercent: 5, SampleLimit: 1})

	_ = agg.Add([]byte(logLine("/a", "0.100")))
	if !agg.Full() {
		t.Fatal("Full() = false after reaching SampleLimit")
	}
	_ = agg.Add([]byte(logLine("/b", "0.100")))

	if agg.Progress().TotalLines != 1 {
		t.Errorf("TotalLines = %d, want 1", agg.Progress().TotalLines)
	}
}

func TestAggregator_OnBadLine(t *testing.T) {
	var seen []int
	agg := NewAggregator(Config{
		ErrorLimitPercent: 100,
		OnBadLine: func(lineNo int, line []byte) {
			if string(line) != badLine {
				t.Errorf("OnBadLine line = %q", line)
			}
			seen = append(seen, lineNo)
		},
	})

	for _, l := range []string{logLine("/a", "0.1"), badLine, logLine("/a", "0.2"), badLine} {
		if err := agg.Add([]byte(l)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 4 {
		t.Errorf("OnBadLine line numbers = %v, want [2 4]", seen)
	}
}

func TestAggregateContext_Progress(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, logLine("/a", "0.100"))
	}

	var seen []int
	_, err := AggregateContext(context.Background(), strings.NewReader(buildLog(lines...)), Config{
		ErrorLimitPercent: 5,
		ProgressEvery:     10,
		OnProgress:        func(p Progress) { seen = append(seen, p.TotalLines) },
	})
	if err != nil {
		t.Fatalf("AggregateContext() error = %v", err)
	}

	want := []int{10, 20, 25}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("progress callbacks at %v, want %v", seen, want)
	}
}

func TestAggregateContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := AggregateContext(ctx, strings.NewReader(buildLog(logLine("/a", "0.1"))), Config{ErrorLimitPercent: 5})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AggregateContext() error = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Error("cancelled run must not return a result")
	}
}

func TestAggregateContext_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, logLine("/a", "0.1"))
	}

	_, err := AggregateContext(ctx, strings.NewReader(buildLog(lines...)), Config{
		ErrorLimitPercent: 5,
		ProgressEvery:     10,
		OnProgress: func(p Progress) {
			if p.TotalLines == 30 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AggregateContext() error = %v, want context.Canceled", err)
	}
}

func BenchmarkAggregator_Add(b *testing.B) {
	lines := make([][]byte, 64)
	for i := range lines {
		lines[i] = []byte(logLine(fmt.Sprintf("/api/v2/banner/%d", i%16), "0.390"))
	}

	agg := NewAggregator(Config{ErrorLimitPercent: 5})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = agg.Add(lines[i%len(lines)])
	}
}
