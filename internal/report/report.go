// Package report renders the per-URL statistics table into the HTML report.
//
// The report is a static template with a single placeholder, $table_json,
// replaced by a JSON array of URL statistics. Other "$" sequences in the
// template are left untouched.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/randomizedcoder/go-nginx-log-analyzer/internal/stats"
)

// Placeholder is the template variable replaced with the table JSON.
const Placeholder = "table_json"

// ErrEmptyTemplate is returned when the template file has no content.
var ErrEmptyTemplate = errors.New("report template is empty")

// Path returns the report file path for a log dated date.
func Path(dir string, date time.Time) string {
	return filepath.Join(dir, "report-"+date.Format("2006.01.02")+".html")
}

// Exists reports whether a report is already present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// TableJSON marshals the first size entries of ranked. size < 1 means all.
func TableJSON(ranked []stats.URLStat, size int) ([]byte, error) {
	rows := stats.Top(ranked, size)
	if rows == nil {
		rows = []stats.URLStat{}
	}
	return json.Marshal(rows)
}

// Render substitutes $table_json and ${table_json} in tmpl.
func Render(tmpl string, tableJSON []byte) string {
	r := strings.NewReplacer(
		"${"+Placeholder+"}", string(tableJSON),
		"$"+Placeholder, string(tableJSON),
	)
	return r.Replace(tmpl)
}

// Write renders the top size entries of ranked with the template at
// templatePath and writes the result to path.
//
// The file is written to a temporary name in the same directory and renamed
// into place, so a failed run never leaves a partial report behind.
func Write(path, templatePath string, ranked []stats.URLStat, size int) error {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	if len(tmpl) == 0 {
		return fmt.Errorf("%s: %w", templatePath, ErrEmptyTemplate)
	}

	table, err := TableJSON(ranked, size)
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}

	return writeAtomic(path, []byte(Render(string(tmpl), table)))
}

// writeAtomic writes data to a temp file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
