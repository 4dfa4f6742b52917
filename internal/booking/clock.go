package booking

import "time"

// Clock abstracts wall-clock reads so the advance-notice boundaries can
// be pinned exactly in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewSystemClock() Clock { return systemClock{} }
