package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	WSPR type 1 message encoder.
 *
 * Description:	Turns callsign, 4 character locator and power into the
 *		162 channel symbols sent by the oscillator.
 *
 *		Follows G4JNT's description of the coding process:
 *		http://g4jnt.com/WSPR_Coding_Process.pdf
 *
 *		Each symbol is 0..3 and selects one of four tones spaced
 *		12000/8192 Hz apart.  The low bit is the sync vector, the
 *		high bit is the interleaved convolutional code.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const WSPRSymbolCount = 162

// Tone spacing, Hz, between adjacent symbol values.
const WSPRToneSpacingHz = 12000.0 / 8192.0

// Duration of one channel symbol.  About 682.667 ms.
const WSPRSymbolPeriod = 8192 * time.Second / 12000

type WSPRSymbols [WSPRSymbolCount]byte

var (
	ErrCallsign = errors.New("invalid callsign")
	ErrLocator  = errors.New("invalid locator")
	ErrPower    = errors.New("invalid power")
)

var wspr_sync = [WSPRSymbolCount]byte{
	1, 1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1, 0, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0,
	0, 0, 0, 0, 1, 0, 1, 1, 0, 0, 1, 1, 0, 1, 0, 0, 0, 1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 0, 1, 0,
	1, 1, 0, 0, 0, 1, 1, 0, 1, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 1, 1, 1, 0, 1, 1, 0, 0, 1, 1, 0, 1, 0, 0, 0, 1,
	1, 1, 0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 1, 0, 1, 1, 0, 0, 0, 1, 1, 0, 0, 0,
}

/*------------------------------------------------------------------
 *
 * Name:	WSPREncode
 *
 * Purpose:	Produce the channel symbols for one transmission.
 *
 * Inputs:	callsign	- Up to 6 characters once aligned.  Case is ignored.
 *
 *		locator		- Maidenhead locator.  Only the first 4
 *				  characters go into a type 1 message.
 *
 *		dbm		- Transmit power, 0 to 60.  Rounded to the
 *				  nearest value ending in 0, 3 or 7.
 *
 * Returns:	Symbols, or an error wrapping ErrCallsign, ErrLocator or ErrPower.
 *
 *------------------------------------------------------------------*/

func WSPREncode(callsign string, locator string, dbm int) (WSPRSymbols, error) {
	var n, callErr = wspr_pack_callsign(callsign)
	if callErr != nil {
		return WSPRSymbols{}, callErr
	}

	var m, locErr = wspr_pack_locator(locator)
	if locErr != nil {
		return WSPRSymbols{}, locErr
	}

	var p, powErr = WSPRNormalizePower(dbm)
	if powErr != nil {
		return WSPRSymbols{}, powErr
	}

	m = (m << 7) + uint32(p) + 64

	var c = wspr_compress(n, m)
	var parity = wspr_convolve(c)
	var interleaved = wspr_interleave(parity)

	var out WSPRSymbols
	for i := range out {
		out[i] = wspr_sync[i] + 2*interleaved[i]
	}

	return out, nil
}

// WSPRNormalizePower rounds to a legal power level.  Out of range is an error.
func WSPRNormalizePower(dbm int) (int, error) {
	if dbm < 0 || dbm > 60 {
		return 0, fmt.Errorf("%w: %d dBm not in range of 0 to 60", ErrPower, dbm)
	}

	var snap = [10]int{0, 0, 3, 3, 3, 3, 7, 7, 7, 10}

	return dbm - dbm%10 + snap[dbm%10], nil
}

func wspr_align_callsign(callsign string) (string, error) {
	var aligned = strings.ToUpper(strings.TrimSpace(callsign))

	if len(aligned) < 3 {
		return "", fmt.Errorf("%w: \"%s\" is too short", ErrCallsign, callsign)
	}

	// Digit must end up in the third position.  K1ABC becomes " K1ABC".
	if wspr_is_digit(aligned[1]) {
		aligned = " " + aligned
	}

	if len(aligned) > 6 {
		return "", fmt.Errorf("%w: \"%s\" is longer than 6 characters", ErrCallsign, callsign)
	}

	for len(aligned) < 6 {
		aligned += " "
	}

	if !(wspr_is_digit(aligned[0]) || wspr_is_letter(aligned[0]) || aligned[0] == ' ') {
		return "", fmt.Errorf("%w: bad first character in \"%s\"", ErrCallsign, callsign)
	}
	if !(wspr_is_digit(aligned[1]) || wspr_is_letter(aligned[1])) {
		return "", fmt.Errorf("%w: bad prefix in \"%s\"", ErrCallsign, callsign)
	}
	if !wspr_is_digit(aligned[2]) {
		return "", fmt.Errorf("%w: \"%s\" needs a digit in the 2nd or 3rd position", ErrCallsign, callsign)
	}
	for i := 3; i < 6; i++ {
		if !(wspr_is_letter(aligned[i]) || aligned[i] == ' ') {
			return "", fmt.Errorf("%w: suffix of \"%s\" must be letters", ErrCallsign, callsign)
		}
	}

	return aligned, nil
}

func wspr_pack_callsign(callsign string) (uint32, error) {
	var a, err = wspr_align_callsign(callsign)
	if err != nil {
		return 0, err
	}

	var n = wspr_char_value(a[0])
	n = n*36 + wspr_char_value(a[1])
	n = n*10 + wspr_char_value(a[2])
	n = n*27 + wspr_char_value(a[3]) - 10
	n = n*27 + wspr_char_value(a[4]) - 10
	n = n*27 + wspr_char_value(a[5]) - 10

	return n & 0x0FFFFFFF, nil
}

func wspr_pack_locator(locator string) (uint32, error) {
	if len(locator) < 4 {
		return 0, fmt.Errorf("%w: \"%s\" needs at least 4 characters", ErrLocator, locator)
	}

	var l = strings.ToUpper(locator[:4])

	if l[0] < 'A' || l[0] > 'R' || l[1] < 'A' || l[1] > 'R' {
		return 0, fmt.Errorf("%w: \"%s\" must start with two letters A to R", ErrLocator, locator)
	}
	if !wspr_is_digit(l[2]) || !wspr_is_digit(l[3]) {
		return 0, fmt.Errorf("%w: \"%s\" must have digits in the 3rd and 4th positions", ErrLocator, locator)
	}

	var lon1 = uint32(l[0] - 'A')
	var lat1 = uint32(l[1] - 'A')
	var lon2 = uint32(l[2] - '0')
	var lat2 = uint32(l[3] - '0')

	var m = (179-10*lon1-lon2)*180 + 10*lat1 + lat2

	return m & 0x7FFF, nil
}

func wspr_is_digit(b byte) bool {
	return b >= '0' && b <= '9'
}

func wspr_is_letter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// 0-9 are 0-9, A-Z are 10-35, space is 36.
func wspr_char_value(b byte) uint32 {
	switch {
	case wspr_is_digit(b):
		return uint32(b - '0')
	case b == ' ':
		return 36
	default:
		return uint32(b-'A') + 10
	}
}

// 28 bits of callsign, 22 bits of locator and power, then zero tail bits.
func wspr_compress(n, m uint32) [11]byte {
	var c [11]byte

	c[0] = byte((n >> 20) & 0xFF)
	c[1] = byte((n >> 12) & 0xFF)
	c[2] = byte((n >> 4) & 0xFF)
	c[3] = byte((n&0x0F)<<4) | byte((m>>18)&0x0F)
	c[4] = byte((m >> 10) & 0xFF)
	c[5] = byte((m >> 2) & 0xFF)
	c[6] = byte((m & 0x03) << 6)

	return c
}

func wspr_parity32(x uint32) byte {
	x ^= x >> 16
	x ^= x >> 8
	x ^= x >> 4
	x ^= x >> 2
	x ^= x >> 1

	return byte(x & 1)
}

// K=32, r=1/2.  81 bits in, 162 bits out.
func wspr_convolve(c [11]byte) [WSPRSymbolCount]byte {
	const poly1 uint32 = 0xf2d05351
	const poly2 uint32 = 0xe4613c47

	var out [WSPRSymbolCount]byte
	var reg uint32
	var k = 0

	for i := 0; i < len(c) && k < WSPRSymbolCount; i++ {
		for j := 7; j >= 0 && k < WSPRSymbolCount; j-- {
			reg = (reg << 1) | uint32((c[i]>>uint(j))&1)
			out[k] = wspr_parity32(reg & poly1)
			out[k+1] = wspr_parity32(reg & poly2)
			k += 2
		}
	}

	return out
}

func wspr_reverse8(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r = (r << 1) | (b & 1)
		b >>= 1
	}

	return r
}

// Bit reversed addressing, skipping addresses beyond 161.
func wspr_interleave(in [WSPRSymbolCount]byte) [WSPRSymbolCount]byte {
	var out [WSPRSymbolCount]byte
	var p = 0

	for i := 0; i < 256 && p < WSPRSymbolCount; i++ {
		var j = wspr_reverse8(uint8(i))
		if int(j) < WSPRSymbolCount {
			out[j] = in[p]
			p++
		}
	}

	return out
}
