package estimator

import "time"

// Timer is the part of *time.Timer the estimator uses.
type Timer interface {
	Stop() bool
}

// Clock schedules the debounce timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
