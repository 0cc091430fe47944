package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Most recent time and position from the GPS receiver.
 *
 * Description:	The NMEA reader deposits data here when it becomes
 *		available.  The scheduler takes a copy once per tick.
 *
 *		A critical region avoids inconsistency between fields.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/s2"
)

// FixSnapshot is a consistent copy of the time reference.
type FixSnapshot struct {
	LastUpdate     time.Duration // Monotonic clock reading at the last RMC sentence.
	SolutionActive bool          // Receiver reported status A.
	SentenceCount  uint32        // RMC sentences ever received.
	LastFixTime    time.Time     // UTC from the last active RMC sentence.

	Position    s2.LatLng // Valid when HasPosition.
	HasPosition bool
	Satellites  int // From GGA, 0 if never seen.
}

func (f FixSnapshot) String() string {
	var pos = "unknown"
	if f.HasPosition {
		pos = fmt.Sprintf("%.6f,%.6f", f.Position.Lat.Degrees(), f.Position.Lng.Degrees())
	}

	return fmt.Sprintf("updated=%s active=%t sentences=%d utc=%s pos=%s sats=%d",
		f.LastUpdate, f.SolutionActive, f.SentenceCount,
		f.LastFixTime.UTC().Format(time.RFC3339), pos, f.Satellites)
}

// TimeReference is shared between the NMEA reader goroutine and the
// control loop.
type TimeReference struct {
	mu   sync.Mutex
	info FixSnapshot
}

func NewTimeReference() *TimeReference {
	return new(TimeReference)
}

// Read returns the most recent data available.
func (r *TimeReference) Read() FixSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.info
}

// Update applies f to the stored snapshot inside the critical region.
func (r *TimeReference) Update(f func(*FixSnapshot)) {
	r.mu.Lock()
	f(&r.info)
	r.mu.Unlock()
}

func (r *TimeReference) Set(info FixSnapshot) {
	r.mu.Lock()
	r.info = info
	r.mu.Unlock()
}
