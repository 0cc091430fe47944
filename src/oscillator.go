package wsprbeacon

// Oscillator is the RF (or audio) source behind a transmit channel.
//
// Start begins emitting the carrier and draining packets handed off to the
// channel.  Stop silences it.  Both may be called repeatedly; calling Stop
// on a stopped oscillator does nothing.  Implementations report hardware
// trouble through their logger since the scheduler has no way to recover
// from it within a tick.
type Oscillator interface {
	Start()
	Stop()
}

// PacketSource is the driver's view of a transmit channel.
type PacketSource interface {
	TakePacket() (Packet, bool)
}

// packetSink is implemented by oscillators that drain a transmit channel.
type packetSink interface {
	Attach(src PacketSource)
}
