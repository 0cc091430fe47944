package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Process NMEA sentences from a GPS receiver.
 *
 * Description:	Only two sentence types matter here:
 *
 *		RMC	- UTC time and date, status, position.  Every one
 *			  of these counts as a sentence received.  Active
 *			  ones (status A) refresh the time reference.
 *
 *		GGA	- Fix quality and number of satellites.  Used for
 *			  the position and for debug output only.
 *
 *		Talker IDs GP (GPS) and GN (combined GNSS) are accepted.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"
)

// Maximum length of message from GPS receiver is 82 according to some people.
// Make buffer considerably larger to be safe.
const NMEA_MAX_LEN = 160

var (
	ErrNoChecksum = errors.New("missing NMEA checksum")
	ErrChecksum   = errors.New("NMEA checksum error")
	ErrNMEAFormat = errors.New("malformed NMEA sentence")
)

type rmcData struct {
	active      bool
	utc         time.Time // Zero if the time or date fields were empty.
	lat, lon    float64
	hasPosition bool
}

type ggaData struct {
	quality    int
	satellites int
	lat, lon   float64
	hasPos     bool
}

// NMEAReader turns a byte stream from the receiver into updates of a
// TimeReference.
type NMEAReader struct {
	Ref    *TimeReference
	Clock  Clock
	Logger *log.Logger
	Debug  int // >= 1 print fix changes, >= 2 every update, >= 3 raw sentences.
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Read information from GPS, as it becomes available, and
 *		store it for later retrieval by TimeReference.Read.
 *
 * Inputs:	r	- Serial port or anything else producing NMEA.
 *
 * Returns:	The read error that ended the stream.  io.EOF for a
 *		normal end of input.
 *
 * Description:	Intended to run in its own goroutine.  Close the
 *		underlying port to stop it.
 *
 *--------------------------------------------------------------------*/

func (n *NMEAReader) Run(r io.Reader) error {
	var logger = loggerOrDefault(n.Logger)
	var br = bufio.NewReader(r)
	var msg []byte

	for {
		var ch, err = br.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// This might happen if a USB device is unplugged.
				logger.Error("GPSNMEA: Lost communication with GPS receiver.", "err", err)
			}

			n.Ref.Update(func(f *FixSnapshot) {
				f.SolutionActive = false
			})

			return err
		}

		switch ch {
		case '$':
			// Start of new sentence.
			msg = append(msg[:0], ch)
		case '\r', '\n':
			if len(msg) >= 6 && msg[0] == '$' {
				n.ProcessSentence(string(msg))
			}
			msg = msg[:0]
		default:
			if len(msg) > 0 && len(msg) < NMEA_MAX_LEN-1 {
				msg = append(msg, ch)
			}
		}
	}
}

// ProcessSentence handles one complete sentence, starting with '$'.
func (n *NMEAReader) ProcessSentence(sentence string) {
	var logger = loggerOrDefault(n.Logger)

	if n.Debug >= 3 {
		logger.Debug(sentence)
	}

	switch {
	case strings.HasPrefix(sentence, "$GPRMC"), strings.HasPrefix(sentence, "$GNRMC"):
		var rmc, err = parse_rmc(sentence)
		if err != nil {
			// Shouldn't happen.  Better luck next time.
			logger.Error("GPSNMEA: Error parsing RMC sentence.", "sentence", sentence, "err", err)
			return
		}

		var now = n.Clock.Now()
		var wasActive bool
		var snap FixSnapshot

		n.Ref.Update(func(f *FixSnapshot) {
			wasActive = f.SolutionActive
			f.SentenceCount++
			f.SolutionActive = rmc.active && !rmc.utc.IsZero()
			if f.SolutionActive {
				f.LastUpdate = now
				f.LastFixTime = rmc.utc
			}
			if rmc.active && rmc.hasPosition {
				f.Position = s2.LatLngFromDegrees(rmc.lat, rmc.lon)
				f.HasPosition = true
			}
			snap = *f
		})

		if n.Debug >= 1 && wasActive != snap.SolutionActive {
			if snap.SolutionActive {
				logger.Info("GPSNMEA: Time fix acquired.", "utc", snap.LastFixTime.Format(time.RFC3339))
			} else {
				logger.Info("GPSNMEA: Time fix has been lost.")
			}
		}
		if n.Debug >= 2 {
			logger.Debug("GPSNMEA: " + snap.String())
		}

	case strings.HasPrefix(sentence, "$GPGGA"), strings.HasPrefix(sentence, "$GNGGA"):
		var gga, err = parse_gga(sentence)
		if err != nil {
			logger.Error("GPSNMEA: Error parsing GGA sentence.", "sentence", sentence, "err", err)
			return
		}

		n.Ref.Update(func(f *FixSnapshot) {
			f.Satellites = gga.satellites
			if gga.hasPos {
				f.Position = s2.LatLngFromDegrees(gga.lat, gga.lon)
				f.HasPosition = true
			}
		})
	}
}

/*------------------------------------------------------------------
 *
 * Name:	remove_checksum
 *
 * Purpose:	Validate checksum and remove before further processing.
 *
 * Returns:	Sentence without the "*hh" part, or ErrNoChecksum / ErrChecksum.
 *
 *--------------------------------------------------------------------*/

func remove_checksum(sent string) (string, error) {
	var msg, checksumStr, found = strings.Cut(sent, "*")
	if !found || len(msg) < 1 {
		return "", ErrNoChecksum
	}

	var calculated int64
	for _, r := range msg[1:] {
		calculated ^= int64(r)
	}

	var checksum, parseErr = strconv.ParseInt(strings.TrimSpace(checksumStr), 16, 0)
	if parseErr != nil || calculated != checksum {
		return "", fmt.Errorf("%w: expected %02X but found %s", ErrChecksum, calculated, checksumStr)
	}

	return msg, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        parse_rmc
 *
 * Purpose:    	Parse $GPRMC sentence and extract interesting parts.
 *
 * Examples:	$GPRMC,001431.00,V,,,,,,,121015,,,N*7C
 *		$GPRMC,003413.710,A,4237.1240,N,07120.8333,W,5.07,291.42,160614,,,A*7F
 *
 *--------------------------------------------------------------------*/

func parse_rmc(sentence string) (rmcData, error) {
	var out rmcData

	var stemp, err = remove_checksum(sentence)
	if err != nil {
		return out, err
	}

	var f = strings.Split(stemp, ",")
	if len(f) < 10 {
		return out, fmt.Errorf("%w: RMC has %d fields", ErrNMEAFormat, len(f))
	}

	var ptime = f[1]   /* Time, hhmmss[.sss] */
	var pstatus = f[2] /* Status, A=Active, V=Void */
	var plat, pns = f[3], f[4]
	var plon, pew = f[5], f[6]
	var pdate = f[9] /* Date, ddmmyy */

	if len(pstatus) != 1 {
		return out, fmt.Errorf("%w: no status in RMC", ErrNMEAFormat)
	}
	out.active = pstatus == "A"

	if ptime != "" && pdate != "" {
		var t, tErr = nmea_time(ptime, pdate)
		if tErr != nil {
			if out.active {
				return out, tErr
			}
		} else {
			out.utc = t
		}
	}

	if out.active && plat != "" && pns != "" && plon != "" && pew != "" {
		var lat, latOK = latitude_from_nmea(plat, pns[0])
		var lon, lonOK = longitude_from_nmea(plon, pew[0])
		if latOK && lonOK {
			out.lat, out.lon = lat, lon
			out.hasPosition = true
		}
	}

	return out, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        parse_gga
 *
 * Purpose:    	Parse $GPGGA sentence for fix quality and satellites.
 *
 * Examples:	$GPGGA,001429.00,,,,,0,00,99.99,,,,,,*68
 *		$GPGGA,003518.710,4237.1250,N,07120.8327,W,1,03,5.9,33.5,M,-33.5,M,,0000*5B
 *
 *--------------------------------------------------------------------*/

func parse_gga(sentence string) (ggaData, error) {
	var out ggaData

	var stemp, err = remove_checksum(sentence)
	if err != nil {
		return out, err
	}

	var f = strings.Split(stemp, ",")
	if len(f) < 8 {
		return out, fmt.Errorf("%w: GGA has %d fields", ErrNMEAFormat, len(f))
	}

	var plat, pns = f[2], f[3]
	var plon, pew = f[4], f[5]
	var pfix = f[6]  /* 0=invalid, 1=GPS fix, 2=DGPS fix */
	var pnsat = f[7] /* Number of satellites */

	if len(pfix) != 1 || !unicode.IsDigit(rune(pfix[0])) {
		return out, fmt.Errorf("%w: no fix in GGA", ErrNMEAFormat)
	}
	out.quality = int(pfix[0] - '0')

	if pnsat != "" {
		out.satellites, _ = strconv.Atoi(pnsat)
	}

	if out.quality > 0 && plat != "" && pns != "" && plon != "" && pew != "" {
		var lat, latOK = latitude_from_nmea(plat, pns[0])
		var lon, lonOK = longitude_from_nmea(plon, pew[0])
		out.lat, out.lon = lat, lon
		out.hasPos = latOK && lonOK
	}

	return out, nil
}

// hhmmss[.sss] and ddmmyy to UTC.
func nmea_time(ptime string, pdate string) (time.Time, error) {
	if len(ptime) < 6 || len(pdate) != 6 {
		return time.Time{}, fmt.Errorf("%w: time \"%s\" date \"%s\"", ErrNMEAFormat, ptime, pdate)
	}

	var hh, e1 = strconv.Atoi(ptime[0:2])
	var mm, e2 = strconv.Atoi(ptime[2:4])
	var secs, e3 = strconv.ParseFloat(ptime[4:], 64)
	var day, e4 = strconv.Atoi(pdate[0:2])
	var mon, e5 = strconv.Atoi(pdate[2:4])
	var yy, e6 = strconv.Atoi(pdate[4:6])

	if err := errors.Join(e1, e2, e3, e4, e5, e6); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrNMEAFormat, err)
	}

	if hh > 23 || mm > 59 || secs >= 61 || day < 1 || day > 31 || mon < 1 || mon > 12 {
		return time.Time{}, fmt.Errorf("%w: time \"%s\" date \"%s\" out of range", ErrNMEAFormat, ptime, pdate)
	}

	var whole = int(secs)
	var nanos = int(math.Round((secs-float64(whole))*1000)) * int(time.Millisecond)

	return time.Date(2000+yy, time.Month(mon), day, hh, mm, whole, nanos, time.UTC), nil
}

// ddmm.mmm and N/S to signed degrees.
func latitude_from_nmea(pstr string, phemi byte) (float64, bool) {
	if len(pstr) < 5 || !unicode.IsDigit(rune(pstr[0])) || pstr[4] != '.' {
		return 0, false
	}

	var lat = float64(pstr[0]-'0')*10 + float64(pstr[1]-'0')
	var mins, err = strconv.ParseFloat(pstr[2:], 64)
	if err != nil {
		return 0, false
	}
	lat += mins / 60.0

	if lat > 90 || (phemi != 'N' && phemi != 'S') {
		return 0, false
	}

	if phemi == 'S' {
		lat = -lat
	}

	return lat, true
}

// dddmm.mmm and E/W to signed degrees.
func longitude_from_nmea(pstr string, phemi byte) (float64, bool) {
	if len(pstr) < 6 || !unicode.IsDigit(rune(pstr[0])) || pstr[5] != '.' {
		return 0, false
	}

	var lon = float64(pstr[0]-'0')*100 + float64(pstr[1]-'0')*10 + float64(pstr[2]-'0')
	var mins, err = strconv.ParseFloat(pstr[3:], 64)
	if err != nil {
		return 0, false
	}
	lon += mins / 60.0

	if lon > 180 || (phemi != 'E' && phemi != 'W') {
		return 0, false
	}

	if phemi == 'W' {
		lon = -lon
	}

	return lon, true
}
