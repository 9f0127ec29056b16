// Package config provides configuration management for log-analyzer.
//
// Values are layered: DefaultConfig, then the optional JSON file given by
// -config, then flags set explicitly on the command line.
package config

// Config holds all configuration options for a run.
//
// JSON keys match the config files used by earlier deployments of the
// analyzer, so existing files keep working.
type Config struct {
	// Report
	TemplatePath string `json:"TEMPLATE_PATH"`
	ReportSize   int    `json:"REPORT_SIZE"`
	ReportDir    string `json:"REPORT_DIR"`

	// Input
	LogDir    string `json:"LOG_DIR"`
	LogPrefix string `json:"LOG_PREFIX"`

	// Aggregation
	ErrorsLimitPerc float64 `json:"ERRORS_LIMIT_PERC"`
	SampleLimit     int     `json:"SAMPLE_LIMIT"` // 0 = whole file

	// Observability
	SelfLogPath     string `json:"SELF_LOG_PATH"` // used only if the file exists
	LogFormat       string `json:"LOG_FORMAT"`    // json, text
	Verbose         bool   `json:"VERBOSE"`
	MetricsAddr     string `json:"METRICS_ADDR"`     // empty = no HTTP server
	MetricsTextfile string `json:"METRICS_TEXTFILE"` // empty = no textfile export

	// Dashboard
	TUIEnabled  bool `json:"TUI"`
	SummaryTopN int  `json:"SUMMARY_TOP"`

	// Diagnostic modes (command line only)
	SkipPreflight bool   `json:"-"`
	ConfigPath    string `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Report
		TemplatePath: "./reports/report.html",
		ReportSize:   1000,
		ReportDir:    "./reports",

		// Input
		LogDir:    "./log",
		LogPrefix: "nginx-access-ui.log-",

		// Aggregation
		ErrorsLimitPerc: 5,
		SampleLimit:     0,

		// Observability
		SelfLogPath: "./log/log_analyzer.log",
		LogFormat:   "text",
		Verbose:     false,

		// Dashboard
		TUIEnabled:  false,
		SummaryTopN: 10,
	}
}
