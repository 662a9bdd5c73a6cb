package audio

import "time"

// Timer is a pending callback started by Clock.AfterFunc
type Timer interface {
	Stop() bool
}

// Clock is the time source for capture timing
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// SystemClock returns a Clock backed by the time package
func SystemClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
