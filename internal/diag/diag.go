// SPDX-License-Identifier: MPL-2.0

package diag

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// EnvToggle enables the debug channel when set to "1".
	EnvToggle = "COMMENT_CHECKER_DEBUG"

	// DefaultPrefix tags every diagnostic line.
	DefaultPrefix = "comment-checker:cli"

	// logFileName is the diagnostic file name inside the temp directory.
	logFileName = "comment-checker-debug.log"
)

type (
	// Options configures a diagnostic logger.
	Options struct {
		// Enabled turns the channel on. A disabled channel discards everything.
		Enabled bool
		// Path is the diagnostic file. Empty means DefaultLogFile().
		Path string
		// Prefix overrides DefaultPrefix.
		Prefix string
	}

	// appendWriter opens the target file in append mode for every write so
	// that concurrent processes interleave whole lines and no descriptor is
	// held for the lifetime of the process.
	appendWriter struct {
		mu   sync.Mutex
		path string
	}
)

// DefaultLogFile returns the fixed diagnostic file path.
func DefaultLogFile() string {
	return filepath.Join(os.TempDir(), logFileName)
}

// EnabledFromEnv reports whether the environment toggle is set.
func EnabledFromEnv() bool {
	return os.Getenv(EnvToggle) == "1"
}

// New builds a logger for opts. The returned logger is always usable.
func New(opts Options) *log.Logger {
	if !opts.Enabled {
		return Discard()
	}

	path := opts.Path
	if path == "" {
		path = DefaultLogFile()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return NewWithWriter(&appendWriter{path: path}, prefix)
}

// NewWithWriter builds an enabled diagnostic logger writing to w.
func NewWithWriter(w io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       log.LogfmtFormatter,
	})
}

// Discard returns a logger that drops every record.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}

// Write appends p to the diagnostic file. Errors are swallowed: diagnostics
// must never change the outcome of the operation being logged.
func (w *appendWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return len(p), nil //nolint:nilerr // Diagnostic sink is best-effort.
	}
	defer func() { _ = f.Close() }()

	_, _ = f.Write(p) //nolint:errcheck // Diagnostic sink is best-effort.
	return len(p), nil
}
