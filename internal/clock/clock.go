package clock

import "time"

// IST is the fixed civil timezone (UTC+05:30) the platform stores and
// compares every timestamp in. Applying it on both write and read keeps
// window arithmetic consistent regardless of the host zone.
var IST = time.FixedZone("IST", 5*3600+30*60)

// NowFunc supplies the current instant. Every time-sensitive component takes
// one explicitly instead of calling time.Now, so tests can substitute a
// deterministic clock.
type NowFunc func() time.Time

// System returns a NowFunc yielding wall-clock time normalized to IST.
func System() NowFunc {
	return func() time.Time {
		return time.Now().In(IST)
	}
}

// In normalizes an instant into IST.
func In(t time.Time) time.Time {
	return t.In(IST)
}
