package wsprbeacon

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

// pflag assumes it is only set up once per process.  Tests call several
// mains, so each gets a fresh command line.
func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func TestEncodeMain(t *testing.T) {
	AssertOutputContains(t, func() {
		setupPflag([]string{"wspr-encode", "K1ABC", "FN42", "37"})
		EncodeMain()
	}, "Symbols: "+k1abcFN42_37)
}

func TestEncodeMainSnapsPower(t *testing.T) {
	AssertOutputContains(t, func() {
		setupPflag([]string{"wspr-encode", "K1ABC", "FN42", "36"})
		EncodeMain()
	}, "Message: K1ABC FN42 37")
}

func TestEncodeMainTones(t *testing.T) {
	AssertOutputContains(t, func() {
		setupPflag([]string{"wspr-encode", "--tones", "--dial", "1500", "K1ABC", "FN42", "37"})
		EncodeMain()
	}, "  0  3  1504.395\n  1  3  1504.395\n  2  0  1500.000\n")
}

func TestLocatorMain(t *testing.T) {
	AssertOutputContains(t, func() {
		LocatorMain([]string{"42.662139", "-71.365553"})
	}, "Maidenhead =  FN42  FN42hp  FN42hp68\n")

	AssertOutputContains(t, func() {
		LocatorMain([]string{"42.662139", "-71.365553"})
	}, "UTM zone = 19, hemisphere = N, easting = 306130, northing = 4726010")

	AssertOutputContains(t, func() {
		LocatorMain([]string{"42.662139", "-71.365553"})
	}, "MGRS =  19TCH")
}

func TestLocatorMainReverse(t *testing.T) {
	AssertOutputContains(t, func() {
		LocatorMain([]string{"FN42"})
	}, "Center = 42.500000 -71.000000\nMaidenhead =  FN42  ")

	AssertOutputContains(t, func() {
		LocatorMain([]string{"IO91wm"})
	}, "Maidenhead =  IO91  IO91wm  IO91wm")
}

func TestLocatorMainUsage(t *testing.T) {
	AssertOutputContains(t, func() {
		LocatorMain(nil)
	}, "wspr-locator  latitude  longitude")
}

func TestVersionString(t *testing.T) {
	var old = WSPRBEACON_VERSION
	defer func() { WSPRBEACON_VERSION = old }()

	WSPRBEACON_VERSION = ""
	assert.Contains(t, VersionString(), "wsprbeacon !UNKNOWN! (revision ")

	WSPRBEACON_VERSION = "1.2"
	assert.True(t, strings.HasPrefix(VersionString(), "wsprbeacon 1.2 "))
}
