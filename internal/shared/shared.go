// package shared holds the plumbing the rest of the service leans on:
// configuration, sqlite helpers, migrations, sentinel errors and logging.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger builds the process-wide [log.Logger] writing to w, or to
// [os.Stderr] when w is nil. Timestamps and caller reporting are on so
// background mirror failures can be traced to the site that enqueued them.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
	})
}

// WithLogger derives a child logger that tags every entry with the given
// key-value pairs, one per component.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel adjusts l in place; the --verbose flag lowers it to debug.
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a random v4 UUID string, used to correlate requests
// across log lines.
func GenerateID() string {
	return uuid.New().String()
}
