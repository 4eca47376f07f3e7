package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock reports the current time. Services take it instead of calling
// time.Now so tests can pin the date.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
