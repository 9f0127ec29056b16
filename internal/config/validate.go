package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	required := []struct {
		field string
		value string
	}{
		{"LOG_DIR", cfg.LogDir},
		{"LOG_PREFIX", cfg.LogPrefix},
		{"REPORT_DIR", cfg.ReportDir},
		{"TEMPLATE_PATH", cfg.TemplatePath},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, ValidationError{
				Field:   r.field,
				Message: "must not be empty",
			})
		}
	}

	if cfg.ReportSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "REPORT_SIZE",
			Message: "must be at least 1",
		})
	}

	if cfg.ErrorsLimitPerc < 0 || cfg.ErrorsLimitPerc > 100 {
		errs = append(errs, ValidationError{
			Field:   "ERRORS_LIMIT_PERC",
			Message: fmt.Sprintf("must be between 0 and 100 (got %g)", cfg.ErrorsLimitPerc),
		})
	}

	if cfg.SampleLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "SAMPLE_LIMIT",
			Message: "must not be negative",
		})
	}

	if cfg.SummaryTopN < 0 {
		errs = append(errs, ValidationError{
			Field:   "SUMMARY_TOP",
			Message: "must not be negative",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
