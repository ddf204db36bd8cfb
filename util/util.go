package util

import "time"

// SkipThrottler reports whether enough time has passed since the last
// accepted event. Events in between are skipped, not delayed.
type SkipThrottler struct {
	d    time.Duration
	last time.Time
	now  func() time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	return newSkipThrottler(d, time.Now)
}

func newSkipThrottler(d time.Duration, now func() time.Time) *SkipThrottler {
	return &SkipThrottler{d: d, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC), now: now}
}

// Ok returns true for the first event and afterwards at most once every d.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
