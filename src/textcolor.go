package wsprbeacon

// Logging.  Log levels take the place of the old text colours; the
// terminal colouring comes with the logger.

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

type LogOptions struct {
	Level      string // debug, info, warn, error.  Empty means info.
	Prefix     string
	Timestamps bool
}

func NewLogger(w io.Writer, opts LogOptions) (*log.Logger, error) {
	var level = log.InfoLevel

	if opts.Level != "" {
		var l, err = log.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	var logger = log.NewWithOptions(w, log.Options{ //nolint:exhaustruct
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.DateTime,
	})

	return logger, nil
}

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}

	return l
}

// statusReporter prints the per-tick status line.  A change of message is
// always printed, the same message again only once per interval.  The
// scheduler runs about once a second; a line per tick buries anything
// interesting.
type statusReporter struct {
	logger  *log.Logger
	every   time.Duration
	last    string
	limiter *rate.Limiter
}

func newStatusReporter(logger *log.Logger, every time.Duration) *statusReporter {
	return &statusReporter{logger: loggerOrDefault(logger), every: every}
}

// Ticks are on the monotonic clock; the limiter wants wall time, so use
// a fixed origin.  Only differences matter to it.
var statusEpoch = time.Unix(0, 0)

func (s *statusReporter) report(now time.Duration, level log.Level, msg string, keyvals ...any) {
	if msg != s.last || s.every <= 0 {
		s.last = msg
		s.limiter = rate.NewLimiter(rate.Every(s.every), 1)
		s.limiter.AllowN(statusEpoch.Add(now), 1)
		s.logger.Log(level, msg, keyvals...)

		return
	}

	if s.limiter.AllowN(statusEpoch.Add(now), 1) {
		s.logger.Log(level, msg, keyvals...)
	}
}

// forget makes the next report print regardless of what came before.
func (s *statusReporter) forget() {
	s.last = ""
}
