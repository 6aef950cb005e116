package ingest

import "time"

// Clock supplies the time source for debounce and idle-period timing, so
// tests can drive the coordinator without real sleeps.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer mirrors the part of time.Timer the coordinator uses.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock returns a Clock backed by the system time.
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (rt *realTimer) C() <-chan time.Time {
	return rt.t.C
}

func (rt *realTimer) Stop() bool {
	return rt.t.Stop()
}

func (rt *realTimer) Reset(d time.Duration) bool {
	return rt.t.Reset(d)
}
