// Package logsource locates the newest rotated access log and opens it,
// decompressing .gz and .zst files transparently.
package logsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// dateLayout is the date stamp nginx's logrotate appends to the file name.
const dateLayout = "20060102"

var (
	// ErrNoLogDir is returned when the log directory does not exist.
	ErrNoLogDir = errors.New("log directory does not exist")

	// ErrNoLog is returned when no file in the directory matches the prefix.
	ErrNoLog = errors.New("no access log found")
)

// Supported extensions. Anything else after the date stamp is ignored.
const (
	ExtPlain = ""
	ExtGzip  = ".gz"
	ExtZstd  = ".zst"
)

// LogFile describes a rotated access log.
type LogFile struct {
	Path string
	Date time.Time
	Ext  string
}

// FindLatest scans dir for files named <prefix>YYYYMMDD with an optional
// .gz or .zst extension and returns the one with the latest date.
//
// Files whose stamp is not a valid date are skipped. When two files carry
// the same date (e.g. plain and .gz) the first in directory order wins.
func FindLatest(dir, prefix string) (*LogFile, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoLogDir, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d{8})(.*)$`)

	var latest *LogFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		ext := m[2]
		if ext != ExtPlain && ext != ExtGzip && ext != ExtZstd {
			continue
		}

		date, err := time.Parse(dateLayout, m[1])
		if err != nil {
			continue
		}

		if latest == nil || date.After(latest.Date) {
			latest = &LogFile{
				Path: filepath.Join(dir, e.Name()),
				Date: date,
				Ext:  ext,
			}
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("%w in %s (prefix %q)", ErrNoLog, dir, prefix)
	}
	return latest, nil
}
