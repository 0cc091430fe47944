package wsprbeacon

// An oscillator that transmits nothing.  It drains the transmit channel and
// reports what would have gone on the air, for bench testing the schedule.

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type DryRunOscillator struct {
	Logger *log.Logger

	// How often the channel is polled while running.
	Poll time.Duration

	mu      sync.Mutex
	src     PacketSource
	running bool
	stop    chan struct{}
	done    chan struct{}
	starts  int
	stops   int
	packets []Packet
}

func (d *DryRunOscillator) Attach(src PacketSource) {
	d.mu.Lock()
	d.src = src
	d.mu.Unlock()
}

func (d *DryRunOscillator) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.running = true
	d.starts++
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	loggerOrDefault(d.Logger).Info("DRY RUN: oscillator on.")

	go d.drain(d.src, d.stop, d.done)
}

func (d *DryRunOscillator) Stop() {
	d.mu.Lock()

	if !d.running {
		d.mu.Unlock()
		return
	}

	d.running = false
	d.stops++
	close(d.stop)
	var done = d.done
	var src = d.src

	d.mu.Unlock()

	<-done

	// A packet nobody took belongs to the slot that just ended.
	if src != nil {
		src.TakePacket()
	}

	loggerOrDefault(d.Logger).Info("DRY RUN: oscillator off.")
}

// Packets returns what has been drained so far.
func (d *DryRunOscillator) Packets() []Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out = make([]Packet, len(d.packets))
	copy(out, d.packets)

	return out
}

// Counts returns how many times the oscillator was turned on and off.
func (d *DryRunOscillator) Counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.starts, d.stops
}

func (d *DryRunOscillator) drain(src PacketSource, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if src == nil {
		<-stop
		return
	}

	var poll = d.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}

	var ticker = time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var p, ok = src.TakePacket()
			if !ok {
				continue
			}

			d.mu.Lock()
			d.packets = append(d.packets, p)
			d.mu.Unlock()

			loggerOrDefault(d.Logger).Info("DRY RUN: would transmit.",
				"dial_hz", p.DialFreqHz,
				"duration", time.Duration(WSPRSymbolCount)*p.SymbolPeriod,
				"symbols", FormatSymbols(p.Symbols))
		}
	}
}

// FormatSymbols renders symbols as a string of digits 0-3.
func FormatSymbols(s WSPRSymbols) string {
	var b strings.Builder

	b.Grow(len(s))
	for _, v := range s {
		b.WriteByte('0' + v)
	}

	return b.String()
}
