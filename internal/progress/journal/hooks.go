package journal

import "github.com/yungbote/progressfacts/internal/domain/progress"

// Hooks receives journal write signals.
type Hooks interface {
	IncAppend(outcome progress.Outcome)
}

type noopHooks struct{}

func (noopHooks) IncAppend(progress.Outcome) {}

func NoopHooks() Hooks { return noopHooks{} }
