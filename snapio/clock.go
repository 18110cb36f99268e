package snapio

import "time"

// Clock supplies the millisecond tick counter used to time open attempts.
//
// Ticks may wrap around; the connection treats a tick value lower than the
// recorded start as a wrap and restarts its measurement from zero.
type Clock interface {
	Ticks() uint32
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint32

// Ticks calls f.
func (f ClockFunc) Ticks() uint32 { return f() }

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock counting milliseconds since its creation
// on the process's monotonic clock. It wraps after about 49.7 days.
func NewMonotonicClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Ticks() uint32 {
	return uint32(time.Since(c.start).Milliseconds()) //nolint:gosec
}
