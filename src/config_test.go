package wsprbeacon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
callsign: K1ABC
locator: FN42
power_dbm: 23
dial_freq_hz: 7038600
shift_freq_hz: 1500
schedule:
  slot_skip: 5
  stale_fix_override: true
settle_ms: 250
gps:
  port: /dev/ttyUSB1
  speed: 4800
oscillator:
  type: audio
  audio_offset_hz: 1400
keyer:
  type: gpio
  line: 17
  invert: true
log:
  level: debug
  txlog: /var/log/wspr
  txlog_daily: true
`

func TestParseConfig(t *testing.T) {
	var c, err = ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "K1ABC", c.Callsign)
	assert.Equal(t, 23, c.PowerDbm)
	assert.Equal(t, uint32(7038600), c.DialFreqHz)
	assert.Equal(t, ScheduleConfig{SlotSkip: 5, StaleFixOverride: true}, c.ScheduleConfig())
	assert.Equal(t, 250*time.Millisecond, c.SettleDelay())
	assert.Equal(t, "/dev/ttyUSB1", c.GPS.Port)
	assert.Equal(t, 4800, c.GPS.Speed)
	assert.Equal(t, OscillatorAudio, c.Oscillator.Type)
	assert.InDelta(t, 1400.0, c.Oscillator.AudioOffsetHz, 0.001)
	assert.Equal(t, KeyerGPIO, c.Keyer.Type)
	assert.Equal(t, 17, c.Keyer.Line)
	assert.True(t, c.Keyer.Invert)
	assert.Equal(t, "gpiochip0", c.Keyer.Chip, "default kept")
	assert.Equal(t, TxLogOptions{Dir: "/var/log/wspr", TimestampFormat: DefaultTxLogTimeFormat}, c.TxLogOptions()) //nolint:exhaustruct

	var warnings, verr = c.Validate()
	require.NoError(t, verr)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "the rig is not tuned")
}

func TestParseConfigHamlib(t *testing.T) {
	var c, err = ParseConfig([]byte("callsign: K1ABC\nlocator: FN42\nschedule:\n  slot_skip: 2\noscillator:\n  type: audio\n" +
		"keyer:\n  type: hamlib\n  rig_model: 3073\n  port: /dev/ttyUSB0\n  speed: 38400\n"))
	require.NoError(t, err)

	assert.Equal(t, KeyerHamlib, c.Keyer.Type)
	assert.Equal(t, 3073, c.Keyer.RigModel)
	assert.Equal(t, "/dev/ttyUSB0", c.Keyer.Port)
	assert.Equal(t, 38400, c.Keyer.Speed)

	var warnings, verr = c.Validate()
	require.NoError(t, verr)
	assert.Empty(t, warnings)
}

func TestParseConfigDefaults(t *testing.T) {
	var c, err = ParseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), c)
	assert.Equal(t, 1, c.Schedule.SlotSkip)
	assert.False(t, c.Schedule.StaleFixOverride)
	assert.Equal(t, DefaultSettleDelay, c.SettleDelay())
	assert.Equal(t, time.Second, c.TickInterval())
	assert.Equal(t, time.Minute, c.StatusRepeat())
}

func TestParseConfigUnknownKey(t *testing.T) {
	var _, err = ParseConfig([]byte("callsign: K1ABC\nslotskip: 2\n"))

	require.ErrorIs(t, err, ErrConfig)
}

func TestLoadConfig(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "wsprbeacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

	var c, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "FN42", c.Locator)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func validConfig() *Config {
	var c = DefaultConfig()
	c.Callsign = "K1ABC"
	c.Locator = "FN42"

	return c
}

func TestConfigValidate(t *testing.T) {
	var cases = map[string]func(c *Config){
		"callsign":         func(c *Config) { c.Callsign = "" },
		"locator":          func(c *Config) { c.Locator = "XX" },
		"power":            func(c *Config) { c.PowerDbm = 70 },
		"slot skip":        func(c *Config) { c.Schedule.SlotSkip = 0 },
		"dial frequency":   func(c *Config) { c.DialFreqHz = 1000000; c.ShiftFreqHz = 100000 },
		"dial overflow":    func(c *Config) { c.DialFreqHz = 4294967295; c.ShiftFreqHz = 2000000 },
		"hamlib model":     func(c *Config) { c.Keyer.Type = KeyerHamlib; c.Keyer.Port = "/dev/ttyUSB0" },
		"hamlib port":      func(c *Config) { c.Keyer.Type = KeyerHamlib; c.Keyer.RigModel = 3073 },
		"tick":             func(c *Config) { c.TickMs = 0 },
		"oscillator":       func(c *Config) { c.Oscillator.Type = "si5351" },
		"audio offset":     func(c *Config) { c.Oscillator.Type = OscillatorAudio; c.Oscillator.SampleRate = 2000 },
		"keyer":            func(c *Config) { c.Keyer.Type = "vox" },
		"keyer port":       func(c *Config) { c.Keyer.Type = KeyerRTS },
		"gpio keyer chip":  func(c *Config) { c.Keyer.Type = KeyerGPIO; c.Keyer.Chip = "" },
		"gpio keyer line":  func(c *Config) { c.Keyer.Type = KeyerGPIO; c.Keyer.Line = -1 },
		"audio samplerate": func(c *Config) { c.Oscillator.Type = OscillatorAudio; c.Oscillator.SampleRate = 0 },
	}

	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			var c = validConfig()
			breakIt(c)

			var _, err = c.Validate()
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestConfigValidateWarnings(t *testing.T) {
	var c = validConfig()
	c.PowerDbm = 5
	c.Schedule.SlotSkip = 4
	c.Log.TxLogDaily = true
	c.Oscillator.Type = OscillatorAudio

	var warnings, err = c.Validate()
	require.NoError(t, err)

	require.Len(t, warnings, 4)
	assert.Contains(t, warnings[0], "3 will be sent")
	assert.Contains(t, warnings[1], "slot_skip 4")
	assert.Contains(t, warnings[2], "the rig is not tuned")
	assert.Contains(t, warnings[3], "txlog_daily")
}

func TestConfigValidateSlotSkipOne(t *testing.T) {
	var c = validConfig()
	c.Schedule.SlotSkip = 1

	var warnings, err = c.Validate()
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "transmits only once until restarted")

	c.Schedule.SlotSkip = 2
	warnings, err = c.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestConfigValidateDialLimit(t *testing.T) {
	var c = validConfig()
	c.DialFreqHz = 4294967295 - 1500
	c.ShiftFreqHz = 1500

	var _, err = c.Validate()
	require.NoError(t, err, "exactly 2^32-1 still fits")

	c.ShiftFreqHz = 1501
	_, err = c.Validate()
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "4294967296")
}

func TestConfigAutoLocator(t *testing.T) {
	var c = validConfig()
	c.Locator = "AUTO"

	assert.True(t, c.AutoLocator())

	var _, err = c.Validate()
	require.NoError(t, err)
}

func TestConfigSettleImmediate(t *testing.T) {
	var c = validConfig()
	c.SettleMs = 0

	assert.Negative(t, c.SettleDelay())
}
