package throttle

import (
	"time"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// Hooks receives write-path signals.
type Hooks interface {
	ObserveBatch(outcome progress.Outcome, dur time.Duration)
	IncSuppressionTrip()
}

type noopHooks struct{}

func (noopHooks) ObserveBatch(progress.Outcome, time.Duration) {}
func (noopHooks) IncSuppressionTrip()                          {}

func NoopHooks() Hooks { return noopHooks{} }
