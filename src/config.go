package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Read the beacon configuration file.
 *
 * Description:	YAML, for example:
 *
 *		callsign: K1ABC
 *		locator: FN42		# or auto
 *		power_dbm: 10
 *		dial_freq_hz: 14095600
 *		shift_freq_hz: 1500
 *		schedule:
 *		  slot_skip: 1
 *		  stale_fix_override: false
 *		gps:
 *		  port: /dev/ttyACM0
 *		  speed: 9600
 *		oscillator:
 *		  type: dryrun
 *		keyer:
 *		  type: none		# gpio, rts, dtr or hamlib
 *		  rig_model: 0		# hamlib only, "rigctl --list"
 *
 *		Anything left out gets the default below.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const LocatorAuto = "auto"

const (
	OscillatorDryRun = "dryrun"
	OscillatorAudio  = "audio"

	KeyerNone = "none"
	KeyerGPIO = "gpio"
	KeyerRTS  = "rts"
	KeyerDTR  = "dtr"

	// CAT control: tunes the rig and keys it with a PTT command.
	KeyerHamlib = "hamlib"
)

var ErrConfig = errors.New("configuration error")

type Config struct {
	Callsign    string `yaml:"callsign"`
	Locator     string `yaml:"locator"`
	PowerDbm    int    `yaml:"power_dbm"`
	DialFreqHz  uint32 `yaml:"dial_freq_hz"`
	ShiftFreqHz uint32 `yaml:"shift_freq_hz"`

	Schedule struct {
		SlotSkip         int  `yaml:"slot_skip"`
		StaleFixOverride bool `yaml:"stale_fix_override"`
	} `yaml:"schedule"`

	SettleMs int `yaml:"settle_ms"`
	TickMs   int `yaml:"tick_ms"`

	GPS struct {
		Port  string `yaml:"port"`
		Speed int    `yaml:"speed"`
	} `yaml:"gps"`

	Oscillator struct {
		Type          string  `yaml:"type"`
		AudioOffsetHz float64 `yaml:"audio_offset_hz"`
		SampleRate    float64 `yaml:"sample_rate"`
	} `yaml:"oscillator"`

	Keyer struct {
		Type   string `yaml:"type"`
		Chip   string `yaml:"chip"`
		Line   int    `yaml:"line"`
		Invert bool   `yaml:"invert"`
		Port   string `yaml:"port"`

		// Hamlib only.  Speed 0 keeps the backend's default.
		RigModel int `yaml:"rig_model"`
		Speed    int `yaml:"speed"`
	} `yaml:"keyer"`

	Log struct {
		Level           string `yaml:"level"`
		StatusRepeatS   int    `yaml:"status_repeat_s"`
		TxLog           string `yaml:"txlog"`
		TxLogDaily      bool   `yaml:"txlog_daily"`
		TimestampFormat string `yaml:"timestamp_format"`
	} `yaml:"log"`
}

func DefaultConfig() *Config {
	var c = new(Config)

	c.PowerDbm = 10
	c.DialFreqHz = 14095600
	c.ShiftFreqHz = 1500
	c.Schedule.SlotSkip = 1
	c.SettleMs = int(DefaultSettleDelay / time.Millisecond)
	c.TickMs = 1000
	c.GPS.Port = "/dev/ttyACM0"
	c.GPS.Speed = 9600
	c.Oscillator.Type = OscillatorDryRun
	c.Oscillator.AudioOffsetHz = DefaultAudioOffsetHz
	c.Oscillator.SampleRate = DefaultAudioSampleRate
	c.Keyer.Type = KeyerNone
	c.Keyer.Chip = "gpiochip0"
	c.Log.Level = "info"
	c.Log.StatusRepeatS = 60
	c.Log.TimestampFormat = DefaultTxLogTimeFormat

	return c
}

// ParseConfig decodes YAML over the defaults.  Unknown keys are an error,
// they are nearly always a typo.
func ParseConfig(data []byte) (*Config, error) {
	var c = DefaultConfig()

	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	var dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return c, nil
}

func LoadConfig(path string) (*Config, error) {
	var data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}

	var c, parseErr = ParseConfig(data)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", path, parseErr)
	}

	return c, nil
}

func (c *Config) AutoLocator() bool {
	return strings.EqualFold(c.Locator, LocatorAuto)
}

/*-------------------------------------------------------------------
 *
 * Name:        Validate
 *
 * Purpose:     Catch configuration mistakes before anything is started.
 *
 * Returns:	Warnings about things that work but are probably not
 *		intended, and an error for things that can't work.
 *
 *--------------------------------------------------------------------*/

func (c *Config) Validate() ([]string, error) {
	var warnings []string

	var locator = c.Locator
	if c.AutoLocator() {
		// Any valid locator will do to check the rest.
		locator = "AA00"
	}

	if err := ValidateIdentity(c.Callsign, locator, c.PowerDbm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if n, _ := WSPRNormalizePower(c.PowerDbm); n != c.PowerDbm {
		warnings = append(warnings, fmt.Sprintf("power_dbm %d is not a WSPR level, %d will be sent", c.PowerDbm, n))
	}

	if c.Schedule.SlotSkip < 1 {
		return nil, fmt.Errorf("%w: slot_skip must be at least 1", ErrConfig)
	}
	if (SlotsPerHour % c.Schedule.SlotSkip) != 0 {
		warnings = append(warnings, fmt.Sprintf("slot_skip %d does not divide %d, the pattern will shift every hour", c.Schedule.SlotSkip, SlotsPerHour))
	}
	if c.Schedule.SlotSkip == 1 {
		// Every slot is selected, so the slot latch never drops.
		warnings = append(warnings, "slot_skip 1 selects every slot, the beacon transmits only once until restarted")
	}

	var dial = uint64(c.DialFreqHz) + uint64(c.ShiftFreqHz)
	if dial <= MinDialFrequencyHz {
		return nil, fmt.Errorf("%w: dial frequency %d Hz must be above %d Hz", ErrConfig, dial, MinDialFrequencyHz)
	}
	if dial > math.MaxUint32 {
		return nil, fmt.Errorf("%w: dial_freq_hz + shift_freq_hz = %d Hz does not fit in 32 bits", ErrConfig, dial)
	}

	if c.TickMs <= 0 || c.TickMs > 30000 {
		return nil, fmt.Errorf("%w: tick_ms %d out of range 1 .. 30000", ErrConfig, c.TickMs)
	}

	switch c.Oscillator.Type {
	case OscillatorDryRun:
	case OscillatorAudio:
		if c.Oscillator.SampleRate <= 0 {
			return nil, fmt.Errorf("%w: sample_rate must be positive", ErrConfig)
		}
		var top = c.Oscillator.AudioOffsetHz + 3*WSPRToneSpacingHz
		if top >= c.Oscillator.SampleRate/2 {
			return nil, fmt.Errorf("%w: audio_offset_hz %.0f too high for sample rate %.0f", ErrConfig, c.Oscillator.AudioOffsetHz, c.Oscillator.SampleRate)
		}
	default:
		return nil, fmt.Errorf("%w: unknown oscillator type %q", ErrConfig, c.Oscillator.Type)
	}

	switch c.Keyer.Type {
	case KeyerNone, "":
	case KeyerGPIO:
		if c.Keyer.Chip == "" || c.Keyer.Line < 0 {
			return nil, fmt.Errorf("%w: gpio keyer needs chip and line", ErrConfig)
		}
	case KeyerRTS, KeyerDTR:
		if c.Keyer.Port == "" {
			return nil, fmt.Errorf("%w: %s keyer needs a port", ErrConfig, c.Keyer.Type)
		}
	case KeyerHamlib:
		if c.Keyer.RigModel <= 0 || c.Keyer.Port == "" {
			return nil, fmt.Errorf("%w: hamlib keyer needs rig_model and port", ErrConfig)
		}
		if c.Keyer.Speed < 0 {
			return nil, fmt.Errorf("%w: hamlib keyer speed %d is negative", ErrConfig, c.Keyer.Speed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown keyer type %q", ErrConfig, c.Keyer.Type)
	}

	if c.Oscillator.Type == OscillatorAudio && c.Keyer.Type != KeyerHamlib {
		warnings = append(warnings, "audio oscillator without a hamlib keyer: the rig is not tuned, tune it to dial frequency - audio_offset_hz by hand")
	}

	if c.Log.TxLogDaily && c.Log.TxLog == "" {
		warnings = append(warnings, "txlog_daily is set but txlog directory is empty, nothing will be logged")
	}

	return warnings, nil
}

// SettleDelay converts settle_ms.  Zero means hand over at once.
func (c *Config) SettleDelay() time.Duration {
	if c.SettleMs <= 0 {
		return -1
	}

	return time.Duration(c.SettleMs) * time.Millisecond
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func (c *Config) StatusRepeat() time.Duration {
	return time.Duration(c.Log.StatusRepeatS) * time.Second
}

func (c *Config) TxLogOptions() TxLogOptions {
	var opts = TxLogOptions{TimestampFormat: c.Log.TimestampFormat} //nolint:exhaustruct

	if c.Log.TxLogDaily {
		opts.Dir = c.Log.TxLog
	} else {
		opts.Path = c.Log.TxLog
	}

	return opts
}

func (c *Config) ScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		SlotSkip:         c.Schedule.SlotSkip,
		StaleFixOverride: c.Schedule.StaleFixOverride,
	}
}
