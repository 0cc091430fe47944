package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	CAT control of an SSB transceiver behind the audio oscillator.
 *
 * Description:	The sound card only makes tones in the passband.  For them
 *		to land on the dial frequency the rig has to sit at
 *		dial - audio offset (upper sideband), and something has to
 *		put it into transmit.  Hamlib does both over one port.
 *
 *		TunedOscillator retunes when a transmission starts,
 *		RigKeyer is the PTT half, used as any other keyer.
 *
 *---------------------------------------------------------------*/

import (
	"github.com/charmbracelet/log"
)

// Rig is the part of a CAT controlled transceiver we need.
type Rig interface {
	SetFreq(hz float64) error
	SetPTT(on bool) error
	Close() error
}

// RigKeyer keys the transmitter with a CAT PTT command.
type RigKeyer struct {
	Rig Rig
}

func (k *RigKeyer) Key(on bool) error {
	return k.Rig.SetPTT(on)
}

// Close releases the rig, so it belongs to whoever owns the keyer.
func (k *RigKeyer) Close() error {
	return k.Rig.Close()
}

// dialSource is what a tuner needs from a transmit channel.
type dialSource interface {
	DialFreqHz() uint32
}

// TunedOscillator sets the rig frequency from the transmit channel's
// working dial frequency before starting the inner oscillator.
//
// Start runs when a slot is armed and the channel stamps the packet when it
// is handed off, both on the scheduler goroutine.  The control loop holds
// dial changes back while settling, so the rig and the packet agree.
type TunedOscillator struct {
	Inner    Oscillator
	Rig      Rig
	OffsetHz float64
	Logger   *log.Logger

	dial    dialSource
	tunedHz float64
}

func (t *TunedOscillator) Attach(src PacketSource) {
	if d, ok := src.(dialSource); ok {
		t.dial = d
	}

	if sink, ok := t.Inner.(packetSink); ok {
		sink.Attach(src)
	}
}

func (t *TunedOscillator) Start() {
	t.tune()
	t.Inner.Start()
}

func (t *TunedOscillator) Stop() {
	t.Inner.Stop()
}

// TunedHz is the last frequency the rig accepted, 0 before the first.
func (t *TunedOscillator) TunedHz() float64 {
	return t.tunedHz
}

func (t *TunedOscillator) tune() {
	var logger = loggerOrDefault(t.Logger)

	if t.dial == nil {
		logger.Warn("Rig has no transmit channel to take a dial frequency from.")
		return
	}

	var hz = float64(t.dial.DialFreqHz()) - t.OffsetHz
	if hz == t.tunedHz {
		return
	}

	if err := t.Rig.SetFreq(hz); err != nil {
		// Try again next time rather than believe it moved.
		logger.Error("Can't tune rig.", "hz", hz, "err", err)
		return
	}

	t.tunedHz = hz
	logger.Info("Rig tuned.", "hz", hz, "dial_hz", t.dial.DialFreqHz())
}
