package ports

import (
	"time"

	"github.com/raulk/clock"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type SystemClock struct{}

var systemClock = clock.New()

func (SystemClock) Now() time.Time {
	return systemClock.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return systemClock.After(d)
}
