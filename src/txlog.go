package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:	Save transmissions to a log file.
 *
 * Description: One CSV line per packet handed to the transmitter, for
 *		comparing against spots on wsprnet later.
 *
 *		There are two alternatives here.
 *
 *		Path			Full file path.
 *
 *		Dir			Daily names will be created here.
 *
 *		Use one or the other but not both.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

const (
	TxLogHeader = "utime,isotime,callsign,locator,power,dial_hz,slot"

	DefaultTxLogTimeFormat  = "%Y-%m-%dT%H:%M:%SZ"
	DefaultTxLogDailyFormat = "%Y-%m-%d.log"
)

var ErrTxLogTarget = errors.New("give a log file or a log directory, not both")

type TxLogOptions struct {
	Path string // Single file.
	Dir  string // Daily files in here.

	TimestampFormat string // strftime pattern for the isotime column.

	Logger *log.Logger
}

type TxLog struct {
	opts      TxLogOptions
	logger    *log.Logger
	timestamp *strftime.Strftime
	daily     *strftime.Strftime

	f         *os.File
	openFname string
}

func NewTxLog(opts TxLogOptions) (*TxLog, error) {
	if opts.Path != "" && opts.Dir != "" {
		return nil, ErrTxLogTarget
	}

	var format = opts.TimestampFormat
	if format == "" {
		format = DefaultTxLogTimeFormat
	}

	var ts, err = strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp format %q: %w", format, err)
	}

	daily, err := strftime.New(DefaultTxLogDailyFormat)
	if err != nil {
		return nil, err
	}

	var l = &TxLog{
		opts:      opts,
		logger:    loggerOrDefault(opts.Logger),
		timestamp: ts,
		daily:     daily,
	}

	if opts.Dir != "" {
		var stat, statErr = os.Stat(opts.Dir)

		switch {
		case statErr == nil && !stat.IsDir():
			return nil, fmt.Errorf("log file location %q is not a directory", opts.Dir)
		case statErr != nil:
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("can't create log file location %q: %w", opts.Dir, err)
			}
			l.logger.Info("Log file location has been created.", "dir", opts.Dir)
		}
	}

	return l, nil
}

// Enabled is false when neither a file nor a directory was given.
func (l *TxLog) Enabled() bool {
	return l != nil && (l.opts.Path != "" || l.opts.Dir != "")
}

// Write appends one transmission.
func (l *TxLog) Write(ev EmitEvent) error {
	if !l.Enabled() {
		return nil
	}

	var now = ev.Time.UTC()

	var fullPath = l.opts.Path
	if l.opts.Dir != "" {
		var fname = l.daily.FormatString(now)

		// Close current file if name has changed.
		if l.f != nil && fname != l.openFname {
			l.Close()
		}

		fullPath = filepath.Join(l.opts.Dir, fname)
		l.openFname = fname
	}

	if l.f == nil {
		var _, statErr = os.Stat(fullPath)
		var alreadyThere = statErr == nil

		l.logger.Info("Opening log file.", "file", fullPath)

		var f, err = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			l.openFname = ""
			return fmt.Errorf("can't open log file %q for write: %w", fullPath, err)
		}

		l.f = f

		// Write a header suitable for importing into a spreadsheet,
		// only if this will be the first line.
		if !alreadyThere {
			fmt.Fprintf(l.f, "%s\n", TxLogHeader)
		}
	}

	var w = csv.NewWriter(l.f)

	w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		l.timestamp.FormatString(now),
		ev.Callsign,
		ev.Locator,
		strconv.Itoa(ev.PowerDbm),
		strconv.FormatUint(uint64(ev.DialFreqHz), 10),
		strconv.Itoa(ev.Slot),
	})
	w.Flush()

	return w.Error()
}

func (l *TxLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}

	l.logger.Debug("Closing log file.")

	var err = l.f.Close()
	l.f = nil

	return err
}
