package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the WSPR beacon daemon.
 *
 * Description:	Read the configuration, open the GPS receiver, build the
 *		oscillator chain and scheduler, then run the control loop
 *		until interrupted.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/pflag"
)

func BeaconMain() {
	var configFile = pflag.StringP("config", "c", "", "YAML configuration file.  Reloaded on change for a new dial frequency.")
	var callsign = pflag.String("callsign", "", "Callsign to send.")
	var locator = pflag.StringP("locator", "l", "", "4 or 6 character locator, or \"auto\" to follow the GPS position.")
	var power = pflag.IntP("power", "p", 0, "Transmitter power in dBm.")
	var dialFreq = pflag.Uint32P("dial", "f", 0, "Dial frequency in Hz.")
	var slotSkip = pflag.IntP("slot-skip", "s", 0, "Transmit in every Nth two minute slot.")
	var staleOverride = pflag.Bool("stale-fix-override", false, "Keep transmitting on an extrapolated time for up to 2 hours after losing the fix.")
	var gpsPort = pflag.StringP("gps", "g", "", "Serial port of the GPS receiver, e.g. /dev/ttyACM0.")
	var gpsSpeed = pflag.Int("gps-speed", 0, "GPS serial port speed.")
	var oscillator = pflag.StringP("oscillator", "o", "", "Oscillator type, dryrun or audio.")
	var txLog = pflag.StringP("txlog", "L", "", "Append a CSV line per transmission to this file.")
	var logLevel = pflag.String("log-level", "", "debug, info, warn or error.")
	var gpsDebug = pflag.CountP("debug-gps", "d", "GPS debug.  Repeat for more detail.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - GPS disciplined WSPR beacon.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Options override the configuration file.\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		fmt.Printf("%s\n", VersionString())
		os.Exit(0)
	}

	var cfg = DefaultConfig()
	if *configFile != "" {
		var loaded, err = LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var changed = pflag.CommandLine.Changed
	if changed("callsign") {
		cfg.Callsign = *callsign
	}
	if changed("locator") {
		cfg.Locator = *locator
	}
	if changed("power") {
		cfg.PowerDbm = *power
	}
	if changed("dial") {
		cfg.DialFreqHz = *dialFreq
	}
	if changed("slot-skip") {
		cfg.Schedule.SlotSkip = *slotSkip
	}
	if changed("stale-fix-override") {
		cfg.Schedule.StaleFixOverride = *staleOverride
	}
	if changed("gps") {
		cfg.GPS.Port = *gpsPort
	}
	if changed("gps-speed") {
		cfg.GPS.Speed = *gpsSpeed
	}
	if changed("oscillator") {
		cfg.Oscillator.Type = *oscillator
	}
	if changed("txlog") {
		cfg.Log.TxLog = *txLog
	}
	if changed("log-level") {
		cfg.Log.Level = *logLevel
	}

	var logger, logErr = NewLogger(os.Stderr, LogOptions{Level: cfg.Log.Level, Prefix: "wsprbeacon", Timestamps: true})
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %s\n", cfg.Log.Level, logErr)
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err = RunBeacon(ctx, cfg, BeaconOptions{ //nolint:exhaustruct
		ConfigPath: *configFile,
		Logger:     logger,
		GPSDebug:   *gpsDebug,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Beacon stopped.", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic
	}

	logger.Info("Beacon stopped.")
}

type BeaconOptions struct {
	// Watched for dial frequency changes when not empty.
	ConfigPath string

	Logger   *log.Logger
	GPSDebug int

	// Replaces the configured serial port.  For testing.
	GPS io.ReadCloser

	// Called after every tick of the control loop.
	OnTick func(TickResult)
}

/*-------------------------------------------------------------------
 *
 * Name:        RunBeacon
 *
 * Purpose:     Put the pieces together and run until ctx is done.
 *
 * Inputs:	cfg	- Configuration.  Validated here.
 *
 * Returns:	ctx.Err() after an orderly stop, or what prevented
 *		starting.
 *
 *--------------------------------------------------------------------*/

func RunBeacon(ctx context.Context, cfg *Config, opts BeaconOptions) error {
	var logger = loggerOrDefault(opts.Logger)

	var warnings, err = cfg.Validate()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	var clock = NewSystemClock()
	var ref = NewTimeReference()

	var gps = opts.GPS
	if gps == nil {
		var port, portErr = OpenSerialPort(cfg.GPS.Port, cfg.GPS.Speed)
		if portErr != nil {
			return portErr
		}
		gps = port
	}
	// Closing the port is what stops the reader.
	defer gps.Close()

	var reader = &NMEAReader{Ref: ref, Clock: clock, Logger: logger, Debug: opts.GPSDebug}
	go func() {
		_ = reader.Run(gps)
	}()

	var osc, closeOsc, oscErr = buildOscillator(cfg, logger)
	if oscErr != nil {
		return oscErr
	}
	defer closeOsc()

	var txlogOpts = cfg.TxLogOptions()
	txlogOpts.Logger = logger

	var txlog, txlogErr = NewTxLog(txlogOpts)
	if txlogErr != nil {
		return txlogErr
	}
	defer txlog.Close()

	var locator = cfg.Locator
	if cfg.AutoLocator() {
		// Nothing to send until the receiver reports a position.
		locator = ""
	}

	var b = NewBeacon(cfg.Callsign, locator, cfg.PowerDbm, osc, cfg.DialFreqHz, cfg.ShiftFreqHz, cfg.Keyer.Line)

	var sched = NewScheduler(b, cfg.ScheduleConfig(), SchedulerOptions{
		SettleDelay:  cfg.SettleDelay(),
		AutoLocator:  cfg.AutoLocator(),
		Logger:       logger,
		StatusRepeat: cfg.StatusRepeat(),
		OnEmit: func(ev EmitEvent) {
			if err := txlog.Write(ev); err != nil {
				logger.Error("Can't write transmission log.", "err", err)
			}
		},
	})

	var dialUpdates chan uint32
	if opts.ConfigPath != "" {
		dialUpdates = make(chan uint32, 1)
		go func() {
			if err := WatchConfig(ctx, opts.ConfigPath, cfg.DialFreqHz+cfg.ShiftFreqHz, logger, dialUpdates); err != nil {
				logger.Warn("Not watching configuration file.", "err", err)
			}
		}()
	}

	logger.Info("Beacon starting.", "version", VersionString(), "callsign", cfg.Callsign, "locator", cfg.Locator, "power", cfg.PowerDbm,
		"dial_hz", cfg.DialFreqHz+cfg.ShiftFreqHz, "slot_skip", cfg.Schedule.SlotSkip, "oscillator", cfg.Oscillator.Type)

	if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		logger.Debug("sd_notify failed.", "err", notifyErr)
	}

	var watchdog = newWatchdogPinger(logger)

	var runErr = Run(ctx, RunOptions{
		Scheduler:   sched,
		TimeRef:     ref,
		Clock:       clock,
		Tick:        cfg.TickInterval(),
		DialUpdates: dialUpdates,
		Logger:      logger,
		OnTick: func(res TickResult) {
			watchdog.ping()
			if opts.OnTick != nil {
				opts.OnTick(res)
			}
		},
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	return runErr
}

// openRig opens a CAT controlled rig.  Replaced in tests.
var openRig = func(model int, port string, speed int, logger *log.Logger) (Rig, error) { //nolint:ireturn
	var rig, err = OpenHamlibRig(model, port, speed, logger)
	if err != nil {
		return nil, err
	}

	return rig, nil
}

// buildOscillator returns the configured oscillator, wrapped in a keyer
// if one is configured, and a function to release it all.  A hamlib
// keyer also tunes the rig, before keying it.
func buildOscillator(cfg *Config, logger *log.Logger) (Oscillator, func(), error) { //nolint:ireturn
	var osc Oscillator
	var closers []func()

	var closeAll = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Oscillator.Type {
	case OscillatorAudio:
		var audio = NewAudioOscillator(cfg.Oscillator.SampleRate, cfg.Oscillator.AudioOffsetHz, logger)
		if err := audio.Open(); err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := audio.Close(); err != nil {
				logger.Warn("Audio close failed.", "err", err)
			}
		})
		osc = audio
	default:
		osc = &DryRunOscillator{Logger: logger} //nolint:exhaustruct
	}

	var keyer Keyer
	var rig Rig
	var err error

	switch cfg.Keyer.Type {
	case KeyerGPIO:
		keyer, err = NewGPIOKeyer(cfg.Keyer.Chip, cfg.Keyer.Line, cfg.Keyer.Invert)
	case KeyerRTS:
		keyer, err = NewSerialKeyer(cfg.Keyer.Port, SerialLineRTS, cfg.Keyer.Invert)
	case KeyerDTR:
		keyer, err = NewSerialKeyer(cfg.Keyer.Port, SerialLineDTR, cfg.Keyer.Invert)
	case KeyerHamlib:
		rig, err = openRig(cfg.Keyer.RigModel, cfg.Keyer.Port, cfg.Keyer.Speed, logger)
		if err == nil {
			keyer = &RigKeyer{Rig: rig}
		}
	default:
		return osc, closeAll, nil
	}

	if err != nil {
		closeAll()
		return nil, nil, err
	}

	closers = append(closers, func() {
		if err := keyer.Close(); err != nil {
			logger.Warn("Keyer close failed.", "err", err)
		}
	})

	osc = &KeyedOscillator{Inner: osc, Keyer: keyer, Logger: logger} //nolint:exhaustruct

	if rig != nil {
		osc = &TunedOscillator{Inner: osc, Rig: rig, OffsetHz: cfg.Oscillator.AudioOffsetHz, Logger: logger} //nolint:exhaustruct
	}

	return osc, closeAll, nil
}

// watchdogPinger feeds the systemd watchdog from the control loop, so a
// stuck loop gets the service restarted.
type watchdogPinger struct {
	every time.Duration
	last  time.Time
}

func newWatchdogPinger(logger *log.Logger) *watchdogPinger {
	var interval, err = daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Bad systemd watchdog setting.", "err", err)
	}

	if interval > 0 {
		logger.Debug("systemd watchdog enabled.", "interval", interval)
	}

	return &watchdogPinger{every: interval / 2}
}

func (w *watchdogPinger) ping() {
	if w.every <= 0 {
		return
	}

	var now = time.Now()
	if now.Sub(w.last) < w.every {
		return
	}
	w.last = now

	_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
}
