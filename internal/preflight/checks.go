// Package preflight provides startup validation checks.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/config"
)

// minFileDescriptors covers the log, template, report temp file, self log,
// textfile and a handful of metrics scrapes.
const minFileDescriptors = 64

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Failed returns the checks that did not pass.
func (r *Result) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// RunAll executes all preflight checks.
func RunAll(cfg *config.Config) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	checks := []Check{
		checkLogDir(cfg.LogDir),
		checkReportDir(cfg.ReportDir),
		checkTemplate(cfg.TemplatePath),
		checkFileDescriptors(),
	}
	for _, c := range checks {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkLogDir reports whether the log directory exists. A missing directory
// is only a warning: the run ends early with nothing to analyze.
func checkLogDir(dir string) Check {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Check{
			Name:    "log_dir",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s does not exist (nothing to analyze)", dir),
		}
	case err != nil:
		return Check{Name: "log_dir", Passed: false, Message: err.Error()}
	case !info.IsDir():
		return Check{Name: "log_dir", Passed: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	return Check{Name: "log_dir", Passed: true, Message: dir}
}

// checkReportDir verifies the report directory exists and is writable.
func checkReportDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "report_dir", Passed: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "report_dir", Passed: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{Name: "report_dir", Passed: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return Check{Name: "report_dir", Passed: true, Message: fmt.Sprintf("%s (writable)", dir)}
}

// checkTemplate verifies the report template can be read and is not empty.
func checkTemplate(path string) Check {
	f, err := os.Open(path)
	if err != nil {
		return Check{Name: "template", Passed: false, Message: err.Error()}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Check{Name: "template", Passed: false, Message: err.Error()}
	}
	if info.IsDir() {
		return Check{Name: "template", Passed: false, Message: fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() == 0 {
		return Check{Name: "template", Passed: false, Message: fmt.Sprintf("%s is empty", path)}
	}

	// Read one byte to surface permission problems that Open may not.
	if _, err := f.Read(make([]byte, 1)); err != nil && err != io.EOF {
		return Check{Name: "template", Passed: false, Message: err.Error()}
	}

	return Check{Name: "template", Passed: true, Message: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

// checkFileDescriptors warns when the soft fd limit is unusually low.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to check",
		}
	}

	actual := int(limit.Cur)
	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   true, // Don't fail on this
		Warning:  actual < minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (recommend %d)", actual, minFileDescriptors),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	FprintResults(os.Stdout, result)
}

// FprintResults writes the preflight check results to w.
func FprintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "log_dir":
		return "point -log-dir (LOG_DIR) at the nginx log directory"
	case "report_dir":
		return "create the report directory or fix its permissions (-report-dir / REPORT_DIR)"
	case "template":
		return "point -template (TEMPLATE_PATH) at a non-empty report template"
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
