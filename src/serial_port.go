package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to serial port, hiding operating system differences.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/pkg/term"
)

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialPort
 *
 * Purpose:	Open serial port in raw mode.
 *
 * Inputs:	devicename	- Usually like /dev/ttyACM0 or /dev/ttyUSB0.
 *				  "COMn" is converted to /dev/ttyS(n-1).
 *
 *		baud		- Speed.  4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 * Returns 	Handle for serial port.  It is an io.ReadWriteCloser.
 *
 *---------------------------------------------------------------*/

func OpenSerialPort(devicename string, baud int) (*term.Term, error) {
	var linuxname = devicename

	/* COM1 -> /dev/ttyS0, etc. */
	var n int
	if _, scanErr := fmt.Sscanf(devicename, "COM%d", &n); scanErr == nil {
		if n < 1 {
			n = 1
		}
		linuxname = fmt.Sprintf("/dev/ttyS%d", n-1)
	}

	var fd, err = term.Open(linuxname, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", linuxname, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if speedErr := fd.SetSpeed(baud); speedErr != nil {
			fd.Close()
			return nil, fmt.Errorf("could not set speed %d on %s: %w", baud, linuxname, speedErr)
		}
	default:
		fd.Close()
		return nil, fmt.Errorf("serial port %s: unsupported speed %d", linuxname, baud)
	}

	return fd, nil
}
