package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Transmit channel.  Boundary between the scheduler,
 *		which produces packets, and the oscillator driver,
 *		which drains them.
 *
 * Description:	The scheduler goroutine is the only writer and the
 *		oscillator driver (possibly an audio callback on another
 *		thread) is the only reader.  A small state word hands
 *		the buffer over:
 *
 *			empty -> writing -> ready -> reading -> empty
 *
 *		The writer never touches the buffer unless it moved the
 *		state to writing, and the reader never touches it unless
 *		it moved the state to reading, so the symbols are fully
 *		written before the driver can see them.
 *
 *---------------------------------------------------------------*/

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Dial frequency must be above this before anything is sent.
const MinDialFrequencyHz = 1100 * 1000

// Symbol period of the channel, microseconds.  8192/12000 s.
const TxChannelSymbolPeriodUs = 682667

const (
	handoffEmpty int32 = iota
	handoffWriting
	handoffReady
	handoffReading
)

// Packet is one complete transmission as seen by the driver.
type Packet struct {
	Symbols      WSPRSymbols
	DialFreqHz   uint32
	SymbolPeriod time.Duration
}

type TxChannel struct {
	symbolPeriod time.Duration
	dialFreqHz   uint32
	gpio         int
	oscillator   Oscillator

	ixInput  uint32 // Symbols queued so far.  Never decremented here.
	overruns uint32 // Packets replaced before the driver took them.

	state  atomic.Int32
	buffer Packet
}

func NewTxChannel(symbolPeriodUs int, gpio int, osc Oscillator) *TxChannel {
	if osc == nil {
		panic("assert(osc != nil)")
	}

	var tx = &TxChannel{
		symbolPeriod: time.Duration(symbolPeriodUs) * time.Microsecond,
		gpio:         gpio,
		oscillator:   osc,
	}

	// Drivers that drain packets need to know where from.
	if sink, ok := osc.(packetSink); ok {
		sink.Attach(tx)
	}

	return tx
}

func (tx *TxChannel) DialFreqHz() uint32 {
	return tx.dialFreqHz
}

func (tx *TxChannel) GPIO() int {
	return tx.gpio
}

func (tx *TxChannel) Oscillator() Oscillator { //nolint:ireturn
	return tx.oscillator
}

func (tx *TxChannel) SymbolPeriod() time.Duration {
	return tx.symbolPeriod
}

// InputCursor counts symbols ever queued.  Draining is the driver's business.
func (tx *TxChannel) InputCursor() uint32 {
	return tx.ixInput
}

func (tx *TxChannel) Overruns() uint32 {
	return tx.overruns
}

// publish copies the symbols into the transmit buffer and makes them
// visible to the driver.  Called only from the scheduler goroutine.
func (tx *TxChannel) publish(symbols *WSPRSymbols) {
	for {
		if tx.state.CompareAndSwap(handoffEmpty, handoffWriting) {
			break
		}
		if tx.state.CompareAndSwap(handoffReady, handoffWriting) {
			// Driver never took the previous one.
			tx.overruns++
			break
		}
		// Driver is copying out right now.  That is a 162 byte copy.
		runtime.Gosched()
	}

	tx.buffer.Symbols = *symbols
	tx.buffer.DialFreqHz = tx.dialFreqHz
	tx.buffer.SymbolPeriod = tx.symbolPeriod
	tx.ixInput += WSPRSymbolCount

	tx.state.Store(handoffReady)
}

// TakePacket is for the driver.  It returns the packet handed off since the
// last call, if any.  Safe to call from any one goroutine concurrently
// with the scheduler.
func (tx *TxChannel) TakePacket() (Packet, bool) {
	if !tx.state.CompareAndSwap(handoffReady, handoffReading) {
		return Packet{}, false
	}

	var p = tx.buffer

	tx.state.Store(handoffEmpty)

	return p, true
}
