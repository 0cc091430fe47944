package wsprbeacon

/* Position to Maidenhead locator conversion, and back. */

import (
	"fmt"
	"os"
	"strconv"

	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

func HemisphereToRune(h coordconv.Hemisphere) rune {
	switch h {
	case coordconv.HemisphereNorth:
		return 'N'
	case coordconv.HemisphereSouth:
		return 'S'
	case coordconv.HemisphereInvalid:
		return '!'
	default:
		return '?'
	}
}

// No flag parsing: a negative longitude would look like an option.
func LocatorMain(args []string) {
	var ll s2.LatLng

	switch len(args) {
	case 1:
		var center, err = LocatorCenter(args[0])
		if err != nil {
			fmt.Printf("%s\n", err)
			os.Exit(1)
		}
		ll = center
		fmt.Printf("Center = %.6f %.6f\n", ll.Lat.Degrees(), ll.Lng.Degrees())
	case 2:
		var lat, latErr = strconv.ParseFloat(args[0], 64)
		var lon, lonErr = strconv.ParseFloat(args[1], 64)
		if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			fmt.Printf("Latitude and longitude must be decimal degrees.\n")
			os.Exit(1)
		}
		ll = s2.LatLngFromDegrees(lat, lon)
	default:
		locatorUsage()
		return
	}

	PrintLocation(ll)
}

// PrintLocation shows a position as Maidenhead, UTM and MGRS.
func PrintLocation(ll s2.LatLng) {
	fmt.Printf("Maidenhead =  %s  %s  %s\n", Maidenhead(ll, 4), Maidenhead(ll, 6), Maidenhead(ll, 8))

	// UTM
	var utmCoord, utmErr = coordconv.DefaultUTMConverter.ConvertFromGeodetic(ll, 0)
	if utmErr == nil {
		fmt.Printf("UTM zone = %d, hemisphere = %c, easting = %.0f, northing = %.0f\n", utmCoord.Zone, HemisphereToRune(utmCoord.Hemisphere), utmCoord.Easting, utmCoord.Northing)
	} else {
		fmt.Printf("Conversion to UTM failed:\n%s\n\n", utmErr)

		// MGRS could still succeed, keep going.
	}

	// Practice run with MGRS to see if it will succeed

	var _, mgrsErr = coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, 5)
	if mgrsErr != nil {
		fmt.Printf("Conversion to MGRS failed:\n%s\n", mgrsErr)
		return
	}

	fmt.Printf("MGRS =")

	for precision := 1; precision <= 5; precision++ {
		var mgrsCoord, _ = coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, precision)
		fmt.Printf("  %s", mgrsCoord)
	}

	fmt.Printf("\n")
}

func locatorUsage() {
	fmt.Printf("Position to Maidenhead locator conversion\n")
	fmt.Printf("\n")
	fmt.Printf("Usage:\n")
	fmt.Printf("\twspr-locator  latitude  longitude\n")
	fmt.Printf("\twspr-locator  locator\n")
	fmt.Printf("\n")
	fmt.Printf("where,\n")
	fmt.Printf("\tLatitude and longitude are in decimal degrees.\n")
	fmt.Printf("\t   Use negative for south or west.\n")
	fmt.Printf("\tLocator is 4, 6 or 8 characters.  The center of the square is shown.\n")
	fmt.Printf("\n")
	fmt.Printf("Example:\n")
	fmt.Printf("\twspr-locator 42.662139 -71.365553\n")
}
