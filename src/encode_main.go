package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Print the WSPR channel symbols for a message.
 *
 * Description:	Handy for checking a beacon's output against other
 *		encoders, or for feeding a transmitter by hand.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

func EncodeMain() {
	var tones = pflag.BoolP("tones", "t", false, "List each symbol with its transmit frequency.")
	var dialFreq = pflag.Float64P("dial", "f", 14095600+1500, "Frequency of tone 0 in Hz, used with --tones.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Print the WSPR channel symbols for a message.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] callsign locator power\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:\n")
		fmt.Fprintf(os.Stderr, "\t%s K1ABC FN42 37\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if pflag.NArg() != 3 {
		pflag.Usage()
		os.Exit(1)
	}

	var callsign = pflag.Arg(0)
	var locator = pflag.Arg(1)

	var power, err = strconv.Atoi(pflag.Arg(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Power must be a number of dBm, not %q.\n", pflag.Arg(2))
		os.Exit(1)
	}

	var sent, powerErr = WSPRNormalizePower(power)
	if powerErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", powerErr)
		os.Exit(1)
	}
	if sent != power {
		fmt.Fprintf(os.Stderr, "%d dBm is not a WSPR power level, sending %d.\n", power, sent)
	}

	var symbols, encErr = WSPREncode(callsign, locator, power)
	if encErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", encErr)
		os.Exit(1)
	}

	fmt.Printf("Message: %s %s %d\n", callsign, locator, sent)

	if !*tones {
		fmt.Printf("Symbols: %s\n", FormatSymbols(symbols))
		return
	}

	for i, s := range symbols {
		fmt.Printf("%3d  %d  %.3f\n", i, s, *dialFreq+float64(s)*WSPRToneSpacingHz)
	}
}
