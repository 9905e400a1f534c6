package wallclock

import "time"

type (
	// WallClock abstracts the subset of package time that bedwatch depends
	// on, so tests can control apparent time.
	WallClock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
	}

	wallClock struct{}
)

// Now indirects time.Now.
func (wallClock) Now() time.Time { return time.Now() }

// After indirects time.After.
func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Instance is a WallClock singleton used for indirect time-based references
// to package time. Test code can set the instance to interpose on functions
// and control apparent time.
var Instance WallClock = wallClock{}
