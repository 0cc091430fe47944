package wsprbeacon

// Maidenhead grid locators.

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

/*------------------------------------------------------------------
 *
 * Name:	Maidenhead
 *
 * Purpose:	Convert a position to a Maidenhead locator.
 *
 * Inputs:	ll	- Position.
 *
 *		chars	- 2, 4, 6 or 8.  Field, square, subsquare and
 *			  extended square.  Odd values round down.
 *
 * Returns:	Locator such as "FN42li".  Subsquare letters are lower case
 *		as is the custom.
 *
 *------------------------------------------------------------------*/

func Maidenhead(ll s2.LatLng, chars int) string {
	if chars < 2 {
		chars = 2
	}
	if chars > 8 {
		chars = 8
	}
	chars -= chars % 2

	var lon = math.Min(math.Max(ll.Lng.Degrees()+180, 0), 360-1e-9)
	var lat = math.Min(math.Max(ll.Lat.Degrees()+90, 0), 180-1e-9)

	var b = make([]byte, 0, 8)

	b = append(b, 'A'+byte(lon/20), 'A'+byte(lat/10))
	lon = math.Mod(lon, 20)
	lat = math.Mod(lat, 10)

	b = append(b, '0'+byte(lon/2), '0'+byte(lat))
	lon = math.Mod(lon, 2)
	lat = math.Mod(lat, 1)

	b = append(b, 'a'+byte(lon*12), 'a'+byte(lat*24))
	lon = math.Mod(lon, 1.0/12)
	lat = math.Mod(lat, 1.0/24)

	b = append(b, '0'+byte(lon*120), '0'+byte(lat*240))

	return string(b[:chars])
}

// ValidLocator accepts 4, 6 or 8 character locators in either case.
func ValidLocator(loc string) bool {
	switch len(loc) {
	case 4, 6, 8:
	default:
		return false
	}

	var l = strings.ToUpper(loc)

	for i := 0; i < len(l); i++ {
		var c = l[i]
		switch i {
		case 0, 1:
			if c < 'A' || c > 'R' {
				return false
			}
		case 2, 3, 6, 7:
			if c < '0' || c > '9' {
				return false
			}
		case 4, 5:
			if c < 'A' || c > 'X' {
				return false
			}
		}
	}

	return true
}

// LocatorCenter is the middle of the area a locator covers.
func LocatorCenter(loc string) (s2.LatLng, error) {
	if !ValidLocator(loc) {
		return s2.LatLng{}, fmt.Errorf("%w: %q", ErrLocator, loc)
	}

	var l = strings.ToUpper(loc)

	var lon = float64(l[0]-'A')*20 + float64(l[2]-'0')*2
	var lat = float64(l[1]-'A')*10 + float64(l[3]-'0')
	var dlon, dlat = 2.0, 1.0

	if len(l) >= 6 {
		lon += float64(l[4]-'A') / 12
		lat += float64(l[5]-'A') / 24
		dlon, dlat = 1.0/12, 1.0/24
	}

	if len(l) == 8 {
		lon += float64(l[6]-'0') / 120
		lat += float64(l[7]-'0') / 240
		dlon, dlat = 1.0/120, 1.0/240
	}

	return s2.LatLngFromDegrees(lat+dlat/2-90, lon+dlon/2-180), nil
}
