// Package stats aggregates per-URL request-time statistics from an access log.
//
// Aggregation is a single sequential pass:
//
//	Aggregator.Add:    classify each line, fold (url, request_time) into a URLStat
//	Aggregator.Finish: enforce the bad-line budget, then Finalize
//	Finalize:          compute percentages and averages, rank by total time
//
// Any fatal condition discards the whole run; no partial result is returned.
package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/parser"
)

// Config controls one aggregation run.
type Config struct {
	// ErrorLimitPercent aborts the run when badLines/totalLines*100
	// exceeds it. Compared with ">", so a ratio equal to the limit passes.
	ErrorLimitPercent float64

	// SampleLimit caps the number of lines consumed (0 = no cap).
	// Used to debug against a slice of a large log.
	SampleLimit int

	// Logger receives per-line diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger

	// OnBadLine, if set, is called for every unparsable line. The slice is
	// only valid for the duration of the call.
	OnBadLine func(lineNo int, line []byte)

	// OnProgress, if set, is called by AggregateContext every ProgressEvery
	// lines and once more at the end of the input.
	OnProgress    func(Progress)
	ProgressEvery int // 0 = DefaultProgressEvery
}

// DefaultProgressEvery is the progress interval used when
// Config.ProgressEvery is 0.
const DefaultProgressEvery = 10_000

// Progress is a point-in-time view of a running aggregation.
type Progress struct {
	TotalLines int
	BadLines   int
	URLs       int
	TimeSumAll float64
}

// Result is the outcome of a successful aggregation.
type Result struct {
	// Stats is ranked by TimeSum descending. It is not truncated.
	Stats []URLStat

	TotalLines int
	BadLines   int
	TimeSumAll float64

	// Request-time quantiles over every parsed line, estimated by t-digest.
	P50 float64
	P95 float64
	P99 float64
}

// BadPercent returns the share of unparsable lines in percent.
func (r *Result) BadPercent() float64 {
	if r.TotalLines == 0 {
		return 0
	}
	return float64(r.BadLines) / float64(r.TotalLines) * 100
}

// Aggregator owns the state of one aggregation run.
//
// Not safe for concurrent use: lines must be added from a single goroutine
// in log order.
type Aggregator struct {
	cfg    Config
	logger *slog.Logger

	totalLines int
	badLines   int
	timeSumAll float64

	entries map[string]*URLStat
	order   []*URLStat // first-seen order, used as the ranking tie-break

	digest *tdigest.TDigest
}

// NewAggregator creates an aggregator for one run.
func NewAggregator(cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Aggregator{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*URLStat),
		digest:  tdigest.NewWithCompression(100),
	}
}

// Full reports whether SampleLimit lines have been consumed.
func (a *Aggregator) Full() bool {
	return a.cfg.SampleLimit > 0 && a.totalLines >= a.cfg.SampleLimit
}

// Add consumes one raw log line. It returns an error only for fatal
// conditions; unparsable lines are counted and skipped. Lines offered after
// the sample limit is reached are ignored.
func (a *Aggregator) Add(line []byte) error {
	if a.Full() {
		return nil
	}

	a.totalLines++

	parsed := parser.Classify(line)
	switch parsed.Status {
	case parser.StatusDecodeError:
		a.logger.Error("line_decode_failed", "line_no", a.totalLines, "line", fmt.Sprintf("%q", line))
		return &LineError{Line: a.totalLines, Err: ErrDecode}
	case parser.StatusBadLog:
		a.badLines++
		a.logger.Debug("line_unparsable", "line_no", a.totalLines, "line", string(line))
		if a.cfg.OnBadLine != nil {
			a.cfg.OnBadLine(a.totalLines, line)
		}
		return nil
	}

	requestTime, err := strconv.ParseFloat(parsed.RequestTime, 64)
	if err != nil {
		return &LineError{Line: a.totalLines, Err: fmt.Errorf("%w %q: %v", ErrParseTime, parsed.RequestTime, err)}
	}

	a.timeSumAll += requestTime
	a.digest.Add(requestTime, 1)

	if s, ok := a.entries[parsed.URL]; ok {
		s.Update(requestTime)
		return nil
	}

	s := newURLStat(parsed.URL, requestTime, a.totalLines, a.timeSumAll)
	a.entries[parsed.URL] = s
	a.order = append(a.order, s)
	return nil
}

// Progress returns the current counters.
func (a *Aggregator) Progress() Progress {
	return Progress{
		TotalLines: a.totalLines,
		BadLines:   a.badLines,
		URLs:       len(a.entries),
		TimeSumAll: a.timeSumAll,
	}
}

// Finish applies the end-of-pass checks and returns the ranked result.
func (a *Aggregator) Finish() (*Result, error) {
	a.logger.Debug("aggregation_finished",
		"lines_total", a.totalLines,
		"lines_bad", a.badLines,
		"urls", len(a.entries),
	)

	if a.totalLines == 0 {
		return nil, ErrEmptyLog
	}

	badPercent := float64(a.badLines) / float64(a.totalLines) * 100
	if badPercent > a.cfg.ErrorLimitPercent {
		return nil, &ErrorLimitError{
			BadLines:   a.badLines,
			TotalLines: a.totalLines,
			Limit:      a.cfg.ErrorLimitPercent,
		}
	}

	result := &Result{
		Stats:      Finalize(a.order, a.totalLines, a.timeSumAll),
		TotalLines: a.totalLines,
		BadLines:   a.badLines,
		TimeSumAll: a.timeSumAll,
	}
	if a.digest.Count() > 0 {
		result.P50 = round3(a.digest.Quantile(0.50))
		result.P95 = round3(a.digest.Quantile(0.95))
		result.P99 = round3(a.digest.Quantile(0.99))
	}
	return result, nil
}

// Aggregate runs a full pass over r, one line at a time.
func Aggregate(r io.Reader, cfg Config) (*Result, error) {
	return AggregateContext(context.Background(), r, cfg)
}

// AggregateContext is Aggregate with cancellation. ctx is checked before
// every line; a cancelled run returns ctx.Err() and no result.
func AggregateContext(ctx context.Context, r io.Reader, cfg Config) (*Result, error) {
	agg := NewAggregator(cfg)
	lr := parser.NewLineReader(r)

	every := cfg.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}

	done := ctx.Done()
	for !agg.Full() && lr.Next() {
		select {
		case <-done:
			return nil, ctx.Err()
		default:
		}

		if err := agg.Add(lr.Line()); err != nil {
			return nil, err
		}
		if cfg.OnProgress != nil && agg.totalLines%every == 0 {
			cfg.OnProgress(agg.Progress())
		}
	}
	if err := lr.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if cfg.OnProgress != nil {
		cfg.OnProgress(agg.Progress())
	}

	return agg.Finish()
}
