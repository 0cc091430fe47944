package wsprbeacon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGPIODLine is a test double for gpiodOutputLine that records calls
// without requiring GPIO hardware or the gpio-sim kernel module.
type mockGPIODLine struct {
	value  int
	sets   int
	closed bool
}

func (m *mockGPIODLine) SetValue(v int) error {
	m.value = v
	m.sets++
	return nil
}

func (m *mockGPIODLine) Close() error {
	m.closed = true
	return nil
}

// TestGPIOKeyer_Key verifies that keying drives the line high.
func TestGPIOKeyer_Key(t *testing.T) {
	var mock = new(mockGPIODLine)
	var k = &GPIOKeyer{line: mock, invert: false}

	require.NoError(t, k.Key(true))
	assert.Equal(t, 1, mock.value, "line should be high when keyed")

	require.NoError(t, k.Key(false))
	assert.Equal(t, 0, mock.value, "line should be low when unkeyed")
}

// TestGPIOKeyer_Invert verifies that invert flips the level.
func TestGPIOKeyer_Invert(t *testing.T) {
	var mock = new(mockGPIODLine)
	var k = &GPIOKeyer{line: mock, invert: true}

	require.NoError(t, k.Key(true))
	assert.Equal(t, 0, mock.value, "inverted line should be low when keyed")

	require.NoError(t, k.Key(false))
	assert.Equal(t, 1, mock.value, "inverted line should be high when unkeyed")
}

func TestGPIOKeyer_Close(t *testing.T) {
	var mock = new(mockGPIODLine)
	var k = &GPIOKeyer{line: mock, invert: false}

	require.NoError(t, k.Close())
	assert.True(t, mock.closed)
}

func TestNewGPIOKeyer_NoChip(t *testing.T) {
	var _, err = NewGPIOKeyer("no-such-gpiochip", 0, false)

	require.Error(t, err)
}

func TestNewSerialKeyer_BadLine(t *testing.T) {
	var _, err = NewSerialKeyer("/dev/null", SerialLine(7), false)

	require.ErrorIs(t, err, ErrKeyerLine)
}

func TestNewSerialKeyer_NoPort(t *testing.T) {
	var _, err = NewSerialKeyer("/dev/no-such-tty", SerialLineRTS, false)

	require.Error(t, err)
}

type recordingKeyer struct {
	calls []bool
	fail  bool
}

func (r *recordingKeyer) Key(on bool) error {
	r.calls = append(r.calls, on)
	if r.fail {
		return errors.New("keyer unplugged")
	}

	return nil
}

func (r *recordingKeyer) Close() error {
	return nil
}

func TestKeyedOscillator(t *testing.T) {
	var inner = new(mockOscillator)
	var keyer = new(recordingKeyer)
	var logger, _ = NewTestLogger(t)
	var k = &KeyedOscillator{Inner: inner, Keyer: keyer, Logger: logger}

	// Idle ticks stop an oscillator that never started.  Leave the line alone.
	k.Stop()
	k.Stop()
	assert.Empty(t, keyer.calls)
	assert.Equal(t, 2, inner.stops)

	k.Start()
	k.Start()
	assert.Equal(t, []bool{true}, keyer.calls)
	assert.True(t, k.Keyed())
	assert.True(t, inner.running)

	k.Stop()
	assert.Equal(t, []bool{true, false}, keyer.calls)
	assert.False(t, k.Keyed())
	assert.False(t, inner.running)
}

func TestKeyedOscillator_KeyFailure(t *testing.T) {
	var inner = new(mockOscillator)
	var keyer = &recordingKeyer{fail: true}
	var logger, buf = NewTestLogger(t)
	var k = &KeyedOscillator{Inner: inner, Keyer: keyer, Logger: logger}

	k.Start()

	assert.False(t, k.Keyed())
	assert.Contains(t, buf.String(), "Can't key transmitter.")
}

func TestKeyedOscillator_PassesSourceThrough(t *testing.T) {
	var inner = new(DryRunOscillator)
	var k = &KeyedOscillator{Inner: inner, Keyer: new(recordingKeyer)}

	var tx = NewTxChannel(TxChannelSymbolPeriodUs, 0, k)

	assert.Same(t, tx, inner.src)
}
