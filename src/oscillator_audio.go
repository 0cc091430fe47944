package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Generate WSPR as audio, for an SSB transmitter.
 *
 * Description:	The rig sits on the dial frequency in USB and the sound
 *		card supplies the four tones in the 1400 - 1600 Hz part of
 *		the passband.  Tone generation is the usual phase
 *		accumulator and sine lookup table.
 *
 *		The audio callback runs on its own thread.  It takes
 *		packets from the transmit channel and is silent between
 *		them.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

const (
	DefaultAudioOffsetHz   = 1500.0
	DefaultAudioSampleRate = 48000.0

	TICKS_PER_CYCLE = 256.0 * 256.0 * 256.0 * 256.0
)

var ErrAudioNotOpen = errors.New("audio oscillator is not open")

type audioStream interface {
	Start() error
	Stop() error
	Close() error
}

type AudioOscillator struct {
	SampleRate float64
	OffsetHz   float64 // Audio frequency of symbol 0.
	Amplitude  float64 // 0 .. 1.  Zero means 0.5.
	Logger     *log.Logger

	open func(sampleRate float64, fill func(out []float32)) (audioStream, error)

	mu      sync.Mutex
	src     PacketSource
	stream  audioStream
	running atomic.Bool

	// Owned by the audio callback.
	gen toneGen
}

// toneGen plays one packet.  Only the audio callback touches it.
type toneGen struct {
	sineTable [256]float32

	active          bool
	packet          Packet
	ixSymbol        int
	samplesLeft     float64
	samplesPerSym   float64
	phase           uint32
	changePerSample uint32
}

func NewAudioOscillator(sampleRate float64, offsetHz float64, logger *log.Logger) *AudioOscillator {
	if sampleRate <= 0 {
		sampleRate = DefaultAudioSampleRate
	}
	if offsetHz <= 0 {
		offsetHz = DefaultAudioOffsetHz
	}

	return &AudioOscillator{ //nolint:exhaustruct
		SampleRate: sampleRate,
		OffsetHz:   offsetHz,
		Logger:     logger,
		open:       openPortaudio,
	}
}

func (a *AudioOscillator) Attach(src PacketSource) {
	a.mu.Lock()
	a.src = src
	a.mu.Unlock()
}

// Open starts the sound device.  It plays silence until Start.
func (a *AudioOscillator) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var amp = a.Amplitude
	if amp <= 0 || amp > 1 {
		amp = 0.5
	}

	for j := range a.gen.sineTable {
		a.gen.sineTable[j] = float32(amp * math.Sin(float64(j)*2*math.Pi/256))
	}

	a.gen.samplesPerSym = TxChannelSymbolPeriodUs * 1e-6 * a.SampleRate

	var open = a.open
	if open == nil {
		open = openPortaudio
	}

	var stream, err = open(a.SampleRate, a.fill)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	a.stream = stream

	return nil
}

func (a *AudioOscillator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil {
		return ErrAudioNotOpen
	}

	a.running.Store(false)

	var err = errors.Join(a.stream.Stop(), a.stream.Close())
	a.stream = nil

	return err
}

func (a *AudioOscillator) Start() {
	if a.running.Swap(true) {
		return
	}

	loggerOrDefault(a.Logger).Debug("Audio oscillator on.")
}

func (a *AudioOscillator) Stop() {
	if !a.running.Swap(false) {
		return
	}

	// Drop anything handed off that the callback has not picked up.
	a.mu.Lock()
	var src = a.src
	a.mu.Unlock()

	if src != nil {
		src.TakePacket()
	}

	loggerOrDefault(a.Logger).Debug("Audio oscillator off.")
}

// fill is the audio callback.
func (a *AudioOscillator) fill(out []float32) {
	var g = &a.gen

	if !a.running.Load() {
		g.active = false
		clear(out)

		return
	}

	if !g.active && a.src != nil {
		if p, ok := a.src.TakePacket(); ok {
			g.begin(p, a.SampleRate, a.OffsetHz)
		}
	}

	for i := range out {
		if !g.active {
			out[i] = 0
			continue
		}

		if g.samplesLeft < 1 {
			g.ixSymbol++
			if g.ixSymbol >= WSPRSymbolCount {
				g.active = false
				out[i] = 0

				continue
			}
			g.samplesLeft += g.samplesPerSym
			g.setTone(a.SampleRate, a.OffsetHz)
		}

		g.phase += g.changePerSample
		out[i] = g.sineTable[(g.phase>>24)&0xff]
		g.samplesLeft--
	}
}

func (g *toneGen) begin(p Packet, sampleRate float64, offsetHz float64) {
	g.active = true
	g.packet = p
	g.ixSymbol = 0
	if p.SymbolPeriod > 0 {
		g.samplesPerSym = p.SymbolPeriod.Seconds() * sampleRate
	}
	g.samplesLeft = g.samplesPerSym
	g.setTone(sampleRate, offsetHz)
}

func (g *toneGen) setTone(sampleRate float64, offsetHz float64) {
	var f = offsetHz + float64(g.packet.Symbols[g.ixSymbol])*WSPRToneSpacingHz

	g.changePerSample = uint32(f*TICKS_PER_CYCLE/sampleRate + 0.5)
}

type portaudioStream struct {
	s *portaudio.Stream
}

func (p *portaudioStream) Start() error {
	return p.s.Start()
}

func (p *portaudioStream) Stop() error {
	return p.s.Stop()
}

func (p *portaudioStream) Close() error {
	var err = p.s.Close()

	return errors.Join(err, portaudio.Terminate())
}

func openPortaudio(sampleRate float64, fill func(out []float32)) (audioStream, error) { //nolint:ireturn
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	var s, err = portaudio.OpenDefaultStream(0, 1, sampleRate, 0, fill)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	return &portaudioStream{s: s}, nil
}
