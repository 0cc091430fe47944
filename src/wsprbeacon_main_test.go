package wsprbeacon

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBeaconConfig(t *testing.T) *Config {
	t.Helper()

	var cfg = DefaultConfig()
	cfg.Callsign = "K1ABC"
	cfg.Locator = "FN42"
	cfg.PowerDbm = 37
	cfg.TickMs = 10
	cfg.Log.TxLog = filepath.Join(t.TempDir(), "tx.csv")

	return cfg
}

func TestRunBeaconTransmits(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	var cfg = testBeaconConfig(t)
	var logger, logs = NewTestLogger(t)
	var gpsR, gpsW = io.Pipe()

	var mu sync.Mutex
	var phases []SchedulerPhase

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var done = make(chan error, 1)
	go func() {
		done <- RunBeacon(ctx, cfg, BeaconOptions{ //nolint:exhaustruct
			Logger: logger,
			GPS:    gpsR,
			OnTick: func(res TickResult) {
				mu.Lock()
				phases = append(phases, res.Phase)
				mu.Unlock()
			},
		})
	}()

	go func() {
		_, _ = io.WriteString(gpsW, NMEASentence("GPRMC,120000.00,A,4237.1240,N,07120.8333,W,0.0,0.0,010326,,,A")+"\r\n")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "DRY RUN: would transmit.")
	}, 10*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Contains(t, phases, Settling)
	assert.Equal(t, Transmitting, phases[len(phases)-1])
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	var data, err = os.ReadFile(cfg.Log.TxLog)
	require.NoError(t, err)

	var lines = strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1772366400,2026-03-01T12:00:00Z,K1ABC,FN42,37,14097100,0", lines[1])

	assert.Contains(t, logs.String(), "DRY RUN: oscillator off.")
	assert.Contains(t, logs.String(), "Opening log file.", "transmission log reports to the daemon logger")
}

func TestRunBeaconWaitsForGPS(t *testing.T) {
	var cfg = testBeaconConfig(t)
	var logger, logs = NewTestLogger(t)
	var gpsR, _ = io.Pipe()

	var ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var err = RunBeacon(ctx, cfg, BeaconOptions{Logger: logger, GPS: gpsR}) //nolint:exhaustruct

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, logs.String(), "Waiting for GPS receiver...")
	assert.NotContains(t, logs.String(), "would transmit")
}

func TestRunBeaconBadConfig(t *testing.T) {
	var cfg = testBeaconConfig(t)
	cfg.Callsign = ""

	var err = RunBeacon(context.Background(), cfg, BeaconOptions{}) //nolint:exhaustruct

	require.ErrorIs(t, err, ErrConfig)
}

func TestRunBeaconNoGPSPort(t *testing.T) {
	var cfg = testBeaconConfig(t)
	cfg.GPS.Port = filepath.Join(t.TempDir(), "ttyNothing")

	var err = RunBeacon(context.Background(), cfg, BeaconOptions{}) //nolint:exhaustruct

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open serial port")
}

func TestBuildOscillator(t *testing.T) {
	var logger, _ = NewTestLogger(t)
	var cfg = testBeaconConfig(t)

	var osc, closeOsc, err = buildOscillator(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &DryRunOscillator{}, osc) //nolint:exhaustruct
	closeOsc()

	cfg.Keyer.Type = KeyerRTS
	cfg.Keyer.Port = filepath.Join(t.TempDir(), "ttyNothing")

	_, _, err = buildOscillator(cfg, logger)
	require.Error(t, err)
}

func TestBuildOscillatorHamlib(t *testing.T) {
	var logger, _ = NewTestLogger(t)
	var cfg = testBeaconConfig(t)
	cfg.Keyer.Type = KeyerHamlib
	cfg.Keyer.RigModel = 3073
	cfg.Keyer.Port = "/dev/ttyUSB0"
	cfg.Oscillator.AudioOffsetHz = 1500

	var rig = new(mockRig)
	var old = openRig
	defer func() { openRig = old }()

	var gotModel int
	openRig = func(model int, port string, speed int, _ *log.Logger) (Rig, error) { //nolint:ireturn
		gotModel = model
		return rig, nil
	}

	var osc, closeOsc, err = buildOscillator(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, 3073, gotModel)
	require.IsType(t, &TunedOscillator{}, osc) //nolint:exhaustruct

	var b = NewBeacon("K1ABC", "FN42", 37, osc, cfg.DialFreqHz, cfg.ShiftFreqHz, 0)
	require.NoError(t, b.CreatePacket())

	osc.Start()
	osc.Stop()
	closeOsc()

	assert.Equal(t, []string{"freq 14095600", "ptt on", "ptt off", "close"}, rig.calls)
}

func TestBuildOscillatorHamlibOpenFails(t *testing.T) {
	var logger, _ = NewTestLogger(t)
	var cfg = testBeaconConfig(t)
	cfg.Keyer.Type = KeyerHamlib
	cfg.Keyer.RigModel = 3073
	cfg.Keyer.Port = "/dev/ttyUSB0"

	var old = openRig
	defer func() { openRig = old }()

	openRig = func(int, string, int, *log.Logger) (Rig, error) { //nolint:ireturn
		return nil, ErrHamlib
	}

	var _, _, err = buildOscillator(cfg, logger)
	require.ErrorIs(t, err, ErrHamlib)
}

func TestWatchdogPingerDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	var logger, _ = NewTestLogger(t)
	var w = newWatchdogPinger(logger)

	assert.Equal(t, time.Duration(0), w.every)
	w.ping()
	assert.True(t, w.last.IsZero())
}
