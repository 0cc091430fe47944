package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	WSPR beacon context and packet pipeline.
 *
 * Description:	The context holds the station identity, the encoded
 *		symbols and the transmit channel.  It lives for the
 *		whole run and is only touched by the control loop.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
)

// Capacities of the identity fields.  Longer input is cut short.
const (
	MaxCallsignLen = 12
	MaxLocatorLen  = 7
)

type Beacon struct {
	callsign string
	locator  string
	powerDbm int

	outbuf WSPRSymbols

	tx *TxChannel
}

/*-------------------------------------------------------------------
 *
 * Name:        NewBeacon
 *
 * Purpose:     Initialize a new WSPR beacon context.
 *
 * Inputs:	callsign	- Ham radio callsign, 12 characters max.
 *
 *		locator		- Maidenhead locator, 7 characters max.
 *
 *		powerDbm	- TX power, dBm.
 *
 *		osc		- Working oscillator.  Required.
 *
 *		dialFreqHz	- Start of the WSPR passband.
 *
 *		shiftFreqHz	- Shift of the tx frequency relative to dialFreqHz.
 *
 *		gpio		- Output selector for the RF or keying line.
 *
 * Returns:	The new context.  Panics without an oscillator since that
 *		is a configuration error, not something to recover from.
 *
 *--------------------------------------------------------------------*/

func NewBeacon(callsign string, locator string, powerDbm int, osc Oscillator, dialFreqHz uint32, shiftFreqHz uint32, gpio int) *Beacon {
	if osc == nil {
		panic("assert(osc != nil)")
	}

	var b = &Beacon{
		callsign: truncate(callsign, MaxCallsignLen),
		locator:  truncate(locator, MaxLocatorLen),
		powerDbm: powerDbm,
	}

	b.tx = NewTxChannel(TxChannelSymbolPeriodUs, gpio, osc)
	b.tx.dialFreqHz = dialFreqHz + shiftFreqHz

	return b
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}

	return s
}

func (b *Beacon) Callsign() string {
	return b.callsign
}

func (b *Beacon) Locator() string {
	return b.locator
}

func (b *Beacon) PowerDbm() int {
	return b.powerDbm
}

// Symbols returns a copy of the output buffer.
func (b *Beacon) Symbols() WSPRSymbols {
	return b.outbuf
}

func (b *Beacon) Channel() *TxChannel {
	return b.tx
}

// SetDialFreq sets the working carrier frequency.  Used by the next
// packet; one already handed off keeps the frequency it was sent with.
func (b *Beacon) SetDialFreq(freqHz uint32) {
	if b == nil {
		panic("assert(b != nil)")
	}

	b.tx.dialFreqHz = freqHz
}

// SetLocator replaces the locator, for example from a GPS position.
func (b *Beacon) SetLocator(locator string) {
	b.locator = truncate(locator, MaxLocatorLen)
}

/*-------------------------------------------------------------------
 *
 * Name:        CreatePacket
 *
 * Purpose:     Encode the identity into the output buffer.
 *
 * Returns:	nil if OK.  An encoding error leaves the previous
 *		buffer contents alone.
 *
 *--------------------------------------------------------------------*/

func (b *Beacon) CreatePacket() error {
	if b == nil {
		panic("assert(b != nil)")
	}

	var symbols, err = WSPREncode(b.callsign, b.locator, b.powerDbm)
	if err != nil {
		return err
	}

	b.outbuf = symbols

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        SendPacket
 *
 * Purpose:     Hand the prepared packet over to the transmit channel.
 *
 * Description:	Copies the symbols and advances the input cursor.  Does
 *		not wait for anything to be transmitted; the oscillator
 *		driver owns the data from here on.
 *
 *		Sending below the minimum carrier frequency means the
 *		configuration is broken, so that panics.
 *
 *--------------------------------------------------------------------*/

func (b *Beacon) SendPacket() {
	if b == nil {
		panic("assert(b != nil)")
	}
	if b.tx == nil {
		panic("assert(b.tx != nil)")
	}
	if b.tx.dialFreqHz <= MinDialFrequencyHz {
		panic(fmt.Sprintf("assert(dial frequency %d Hz > %d Hz)", b.tx.dialFreqHz, MinDialFrequencyHz))
	}

	b.tx.publish(&b.outbuf)
}

// ValidateIdentity reports whether the identity, after truncation, can be
// encoded.  Call it before starting the scheduler so a bad callsign is
// reported once instead of silently skipping every slot.
func ValidateIdentity(callsign string, locator string, powerDbm int) error {
	var _, err = WSPREncode(truncate(callsign, MaxCallsignLen), truncate(locator, MaxLocatorLen), powerDbm)

	return err
}
