// Package unlocks derives which dashboard areas are open for an owner. The
// gates are recomputed from the aggregate on every read and never stored.
package unlocks

import "github.com/yungbote/progressfacts/internal/domain/progress"

const (
	// minInsightEvaluations is how many evaluations open the insight area.
	minInsightEvaluations = 2
	minKunoTests          = 1
	minCompletedQuests    = 1
)

type Unlocks struct {
	Scope     bool `json:"scope"`
	Knowledge bool `json:"knowledge"`
	Coaching  bool `json:"coaching"`
	Abilities bool `json:"abilities"`
	Insight   bool `json:"insight"`
}

// Derive computes the gates for f. A nil aggregate unlocks nothing.
//
// An explicit unlocked flag on an omni sub-block always wins over the
// threshold that would otherwise open it.
func Derive(f *progress.ProgressFact) Unlocks {
	if f == nil {
		return Unlocks{}
	}
	var u Unlocks
	u.Scope = true
	u.Knowledge = f.Intent != nil

	o := f.Omni
	if o == nil {
		return u
	}
	kunoDone := o.Kuno != nil && o.Kuno.CompletedTests >= minKunoTests
	u.Coaching = (o.Sensei != nil && o.Sensei.Unlocked) || kunoDone
	u.Abilities = (o.Abil != nil && o.Abil.Unlocked) ||
		(o.Sensei != nil && o.Sensei.CompletedQuestsCount >= minCompletedQuests)
	u.Insight = o.Intel != nil && (o.Intel.Unlocked || o.Intel.EvaluationsCount >= minInsightEvaluations)
	return u
}

// Count returns how many gates are open.
func (u Unlocks) Count() int {
	n := 0
	for _, v := range []bool{u.Scope, u.Knowledge, u.Coaching, u.Abilities, u.Insight} {
		if v {
			n++
		}
	}
	return n
}
