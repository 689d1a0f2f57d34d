package clock

import "time"

// Clock abstracts wall-clock reads so due-date and cadence logic can be
// tested against a fixed point in time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
