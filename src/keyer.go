package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Key the transmitter around the oscillator.
 *
 * Description:	For an audio oscillator feeding an SSB rig, something has
 *		to put the rig into transmit.  That is either a GPIO line
 *		or the RTS / DTR line of a serial port, same as PTT, or a
 *		CAT command (see rig.go).
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

type Keyer interface {
	Key(on bool) error
	Close() error
}

// gpiodOutputLine is the part of a gpiocdev line we use.
type gpiodOutputLine interface {
	SetValue(value int) error
	Close() error
}

type GPIOKeyer struct {
	line   gpiodOutputLine
	invert bool
}

// NewGPIOKeyer requests an output line, e.g. "gpiochip0" offset 17, and
// leaves it unkeyed.
func NewGPIOKeyer(chip string, offset int, invert bool) (*GPIOKeyer, error) {
	var off = 0
	if invert {
		off = 1
	}

	var line, err = gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(off), gpiocdev.WithConsumer("wsprbeacon"))
	if err != nil {
		return nil, fmt.Errorf("can't request GPIO %s line %d: %w", chip, offset, err)
	}

	return &GPIOKeyer{line: line, invert: invert}, nil
}

func (k *GPIOKeyer) Key(on bool) error {
	var v = 0
	if on != k.invert {
		v = 1
	}

	return k.line.SetValue(v)
}

func (k *GPIOKeyer) Close() error {
	return k.line.Close()
}

type SerialLine int

const (
	SerialLineRTS SerialLine = iota
	SerialLineDTR
)

var ErrKeyerLine = errors.New("keyer line must be rts or dtr")

// SerialKeyer drives RTS or DTR of a serial port.
type SerialKeyer struct {
	f      *os.File
	bit    int
	invert bool
}

func NewSerialKeyer(devicename string, which SerialLine, invert bool) (*SerialKeyer, error) {
	var bit int

	switch which {
	case SerialLineRTS:
		bit = unix.TIOCM_RTS
	case SerialLineDTR:
		bit = unix.TIOCM_DTR
	default:
		return nil, ErrKeyerLine
	}

	var f, err = os.OpenFile(devicename, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("can't open %s for keying: %w", devicename, err)
	}

	var k = &SerialKeyer{f: f, bit: bit, invert: invert}

	if err := k.Key(false); err != nil {
		f.Close()
		return nil, err
	}

	return k, nil
}

func (k *SerialKeyer) Key(on bool) error {
	var fd = int(k.f.Fd())

	var stuff, err = unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("TIOCMGET: %w", err)
	}

	if on != k.invert {
		stuff |= k.bit
	} else {
		stuff &= ^k.bit
	}

	if err := unix.IoctlSetInt(fd, unix.TIOCMSET, stuff); err != nil {
		return fmt.Errorf("TIOCMSET: %w", err)
	}

	return nil
}

func (k *SerialKeyer) Close() error {
	return k.f.Close()
}

// KeyedOscillator keys the transmitter before starting the inner oscillator
// and unkeys it after stopping.
type KeyedOscillator struct {
	Inner  Oscillator
	Keyer  Keyer
	Logger *log.Logger

	keyed bool
}

func (k *KeyedOscillator) Attach(src PacketSource) {
	if sink, ok := k.Inner.(packetSink); ok {
		sink.Attach(src)
	}
}

func (k *KeyedOscillator) Start() {
	if !k.keyed {
		if err := k.Keyer.Key(true); err != nil {
			loggerOrDefault(k.Logger).Error("Can't key transmitter.", "err", err)
		} else {
			k.keyed = true
		}
	}

	k.Inner.Start()
}

func (k *KeyedOscillator) Stop() {
	k.Inner.Stop()

	// Stop arrives every idle tick; only touch the line when it is keyed.
	if k.keyed {
		if err := k.Keyer.Key(false); err != nil {
			loggerOrDefault(k.Logger).Error("Can't unkey transmitter.", "err", err)
			return
		}
		k.keyed = false
	}
}

func (k *KeyedOscillator) Keyed() bool {
	return k.keyed
}
