package breaker

import "time"

// Clock supplies the current time. Inject a fake to simulate elapsed recovery
// time in tests instead of sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
