package docstore

import (
	"time"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// Hooks captures store-level observability events.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

// NoopHooks discards every signal.
func NoopHooks() Hooks { return noopHooks{} }

func observe(h Hooks, name string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = string(progress.CodeOf(MapError(name, err)))
	}
	h.ObserveOperation(name, status, time.Since(start))
}
