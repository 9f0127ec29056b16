package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFlags parses os.Args and returns the resulting Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns a Config.
//
// Arguments are parsed twice: once to find -config, and again on top of
// the loaded file so explicit flags win over file values. An optional
// positional argument overrides the log directory.
func ParseArgs(args []string) (*Config, error) {
	var configPath string
	probe := newFlagSet(DefaultConfig(), &configPath, io.Discard)
	if err := probe.Parse(args); err != nil {
		// Parse again with output enabled so the user sees the error and usage.
		return nil, newFlagSet(DefaultConfig(), new(string), os.Stderr).Parse(args)
	}

	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = LoadFile(configPath, cfg)
		if err != nil {
			return nil, err
		}
	}

	fs := newFlagSet(cfg, &cfg.ConfigPath, os.Stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.LogDir = fs.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " "))
	}

	return cfg, nil
}

// newFlagSet binds every flag to cfg, using cfg's current values as defaults.
func newFlagSet(cfg *Config, configPath *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("log-analyzer", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, `log-analyzer - nginx access log request-time report

Usage:
  log-analyzer [flags] [LOG_DIR]

Configuration:
`)
		printFlagCategory(fs, []string{"config"})

		fmt.Fprintf(w, "\nInput:\n")
		printFlagCategory(fs, []string{"log-dir", "log-prefix", "sample-limit"})

		fmt.Fprintf(w, "\nReport:\n")
		printFlagCategory(fs, []string{"report-dir", "report-size", "template", "errors-limit"})

		fmt.Fprintf(w, "\nObservability:\n")
		printFlagCategory(fs, []string{"self-log", "log-format", "v", "metrics", "metrics-textfile"})

		fmt.Fprintf(w, "\nDashboard:\n")
		printFlagCategory(fs, []string{"tui", "summary-top"})

		fmt.Fprintf(w, "\nDiagnostics:\n")
		printFlagCategory(fs, []string{"skip-preflight"})

		fmt.Fprintf(w, `
Examples:
  # Analyze the newest log in ./log using defaults
  log-analyzer

  # Use a config file, override the error budget
  log-analyzer -config /etc/log-analyzer.json -errors-limit 10

  # Debug against the first 1000 lines with a live dashboard
  log-analyzer -sample-limit 1000 -tui /var/log/nginx

`)
	}

	// Configuration
	fs.StringVar(configPath, "config", *configPath, "Path to JSON config file")

	// Input
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory holding rotated access logs")
	fs.StringVar(&cfg.LogPrefix, "log-prefix", cfg.LogPrefix, "File name prefix before the YYYYMMDD stamp")
	fs.IntVar(&cfg.SampleLimit, "sample-limit", cfg.SampleLimit, "Stop after this many lines (0 = whole file)")

	// Report
	fs.StringVar(&cfg.ReportDir, "report-dir", cfg.ReportDir, "Directory reports are written to")
	fs.IntVar(&cfg.ReportSize, "report-size", cfg.ReportSize, "Number of URLs in the report")
	fs.StringVar(&cfg.TemplatePath, "template", cfg.TemplatePath, "HTML report template with a $table_json placeholder")
	fs.Float64Var(&cfg.ErrorsLimitPerc, "errors-limit", cfg.ErrorsLimitPerc, "Abort when more than this percent of lines are unparsable")

	// Observability
	fs.StringVar(&cfg.SelfLogPath, "self-log", cfg.SelfLogPath, "Also log to this file if it exists")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve Prometheus metrics on this address during the run")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write run metrics to this .prom file (node_exporter textfile collector)")

	// Dashboard
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show a live terminal dashboard while parsing")
	fs.IntVar(&cfg.SummaryTopN, "summary-top", cfg.SummaryTopN, "URLs listed in the exit summary")

	// Diagnostics
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	w := fs.Output()
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return "string"
	}

	switch getter.Get().(type) {
	case bool:
		return ""
	case int:
		return "int"
	case float64:
		return "float"
	default:
		return "string"
	}
}
