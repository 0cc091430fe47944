package wsprbeacon

// Watch the configuration file for a new dial frequency, so the band can be
// changed without restarting and losing the time reference.  Only the
// frequency is taken; everything else needs a restart.

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Editors write in several steps.  Wait for them to finish.
const ConfigDebounce = 250 * time.Millisecond

/*-------------------------------------------------------------------
 *
 * Name:        WatchConfig
 *
 * Purpose:     Deliver changed dial frequencies to the control loop.
 *
 * Inputs:	path	- Configuration file.  The directory is watched since
 *			  many editors replace the file rather than write it.
 *
 *		current	- Frequency in use now, dial plus shift.
 *
 *		out	- Receives each new frequency.  Only the latest
 *			  matters, so a value not yet taken is replaced.
 *
 * Returns:	nil when ctx is done, otherwise why watching failed.
 *
 *--------------------------------------------------------------------*/

func WatchConfig(ctx context.Context, path string, current uint32, logger *log.Logger, out chan uint32) error {
	if cap(out) == 0 {
		panic("assert(cap(out) > 0)")
	}

	logger = loggerOrDefault(logger)

	var dir = filepath.Dir(path)
	var file = filepath.Base(path)

	var w, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}

	logger.Debug("Watching config file.", "path", path)

	var timer = time.NewTimer(ConfigDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(ConfigDebounce)
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watch error.", "err", werr)
			if strings.Contains(strings.ToLower(werr.Error()), "overflow") {
				timer.Reset(ConfigDebounce)
			}

		case <-timer.C:
			var freq, ok = reloadDialFreq(path, logger)
			if !ok || freq == current {
				continue
			}

			logger.Info("Dial frequency changed in config file.", "from_hz", current, "to_hz", freq)
			current = freq

			offerLatest(out, freq)
		}
	}
}

func reloadDialFreq(path string, logger *log.Logger) (uint32, bool) {
	var c, err = LoadConfig(path)
	if err != nil {
		logger.Warn("Config file not reloaded.", "err", err)
		return 0, false
	}

	if _, err := c.Validate(); err != nil {
		logger.Warn("Config file rejected, keeping the old frequency.", "err", err)
		return 0, false
	}

	return c.DialFreqHz + c.ShiftFreqHz, true
}

// offerLatest puts v on a buffered channel, replacing a value nobody took.
func offerLatest(out chan uint32, v uint32) {
	for {
		select {
		case out <- v:
			return
		default:
		}

		select {
		case <-out:
		default:
		}
	}
}
