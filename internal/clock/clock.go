package clock

import "time"

// Clock abstracts wall-clock time so timer transitions can be tested
// deterministically. All lot lifecycle comparisons go through it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func System() Clock {
	return systemClock{}
}
