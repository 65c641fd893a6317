package backfill

import (
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/progress/metrics"
)

// inputs are the assessment histories folded into the omni indices.
type inputs struct {
	percs  []float64
	assess []metrics.AbilityAssessment
}

type source int

const (
	fromNone source = iota
	fromAggregate
	fromMirror
)

// existingBlock looks a block up in the aggregate, then in the mirror.
func existingBlock(name string, aggregate, mirrored docstore.Document) (map[string]any, source) {
	if m, ok := docstore.AsMap(aggregate[name]); ok {
		return m, fromAggregate
	}
	if m, ok := docstore.AsMap(mirrored[name]); ok {
		return m, fromMirror
	}
	return nil, fromNone
}

func updatedMillis(block map[string]any) int64 {
	return progress.MillisOf(block[progress.FieldUpdatedAt])
}

// replaceBlock makes fresh replace existing in full under a deep merge by
// nulling the fields only existing has.
func replaceBlock(existing, fresh map[string]any) docstore.Document {
	out := docstore.Clone(docstore.Document(fresh))
	for k := range existing {
		if _, ok := out[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// reconcileDoc builds the patch that reconciles rebuilt with the stored
// copies. Blocks keep whichever side has the strictly newer updatedAt; kept
// blocks are only rewritten when they were found in the mirror alone.
func reconcileDoc(rebuilt *progress.ProgressFact, aggregate, mirrored docstore.Document, in inputs, now time.Time) (next docstore.Document, rebuiltBlocks, kept []string, err error) {
	fresh, err := docstore.Encode(rebuilt)
	if err != nil {
		return nil, nil, nil, err
	}
	next = docstore.Document{}
	for _, name := range reconciledBlocks {
		candidate, hasFresh := docstore.AsMap(fresh[name])
		existing, src := existingBlock(name, aggregate, mirrored)
		switch {
		case hasFresh && (src == fromNone || updatedMillis(candidate) > updatedMillis(existing)):
			next[name] = replaceBlock(existing, candidate)
			rebuiltBlocks = append(rebuiltBlocks, name)
		case src == fromMirror:
			next[name] = docstore.Clone(docstore.Document(existing))
			kept = append(kept, name)
		case src == fromAggregate:
			kept = append(kept, name)
		}
	}

	stored, _ := aggregate[progress.BlockPracticeSessions].([]any)
	sessions := mergeSessions(stored, mirrored[progress.BlockPracticeSessions])
	if len(sessions) > len(stored) {
		next[progress.BlockPracticeSessions] = sessions
	}

	var view progress.ProgressFact
	if err := docstore.Decode(docstore.Merge(aggregate, next, now), &view); err != nil {
		return nil, nil, nil, fmt.Errorf("decode reconciled aggregate: %w", err)
	}

	existingOmni, src := existingBlock(progress.BlockOmni, aggregate, mirrored)
	base := rebuilt.Omni
	if src != fromNone {
		base = &progress.Omni{}
		if err := docstore.Decode(docstore.Document(existingOmni), base); err != nil {
			return nil, nil, nil, fmt.Errorf("decode stored omni: %w", err)
		}
	}
	d := computeDerived(in.percs, in.assess, base, &view, view.PracticeSessions, now)
	switch src {
	case fromAggregate:
		next[progress.BlockOmni] = derivedDoc(d, base, false)
		kept = append(kept, progress.BlockOmni)
	case fromMirror:
		next[progress.BlockOmni] = docstore.Merge(docstore.Document(existingOmni), derivedDoc(d, base, false), now)
		kept = append(kept, progress.BlockOmni)
	default:
		omni, _ := docstore.AsMap(fresh[progress.BlockOmni])
		next[progress.BlockOmni] = docstore.Merge(docstore.Document(omni), derivedDoc(d, base, true), now)
		rebuiltBlocks = append(rebuiltBlocks, progress.BlockOmni)
	}
	return next, rebuiltBlocks, kept, nil
}

// overwriteDoc is the fallback when the stored copies could not be read: the
// rebuilt aggregate is written as is.
func overwriteDoc(rebuilt *progress.ProgressFact, in inputs, now time.Time) (docstore.Document, error) {
	doc, err := docstore.Encode(rebuilt)
	if err != nil {
		return nil, err
	}
	d := computeDerived(in.percs, in.assess, rebuilt.Omni, rebuilt, nil, now)
	omni, _ := docstore.AsMap(doc[progress.BlockOmni])
	doc[progress.BlockOmni] = docstore.Merge(docstore.Document(omni), derivedDoc(d, rebuilt.Omni, true), now)
	return doc, nil
}

// derivedDoc renders the recomputed indices as an omni patch. Unless full is
// set, history-backed indices are only written when history had runs, so a
// live aggregate keeps the values its recorders wrote.
func derivedDoc(d derived, base *progress.Omni, full bool) docstore.Document {
	if base == nil {
		base = &progress.Omni{}
	}
	out := docstore.Document{
		"scope": docstore.Document{"motivationIndex": d.motivation},
		"flow": docstore.Document{
			"flowIndex":     d.flow.FlowIndex,
			"streakCurrent": d.flow.StreakCurrent,
			"streakBest":    d.flow.StreakBest,
		},
	}
	if full || d.kuno.RunsCount > 0 {
		var (
			knowledge float64
			mastery   map[string]float64
			lessons   int
		)
		if base.Kuno != nil {
			knowledge = base.Kuno.KnowledgeIndex
			mastery = base.Kuno.MasteryByCategory
			lessons = base.Kuno.LessonsCompletedCount
		}
		avg := d.kuno.EWMA
		if avg == 0 {
			avg = d.kuno.Mean
		}
		if avg == 0 {
			avg = knowledge
		}
		kuno := docstore.Document{
			"averagePercent": avg,
			"runsCount":      d.kuno.RunsCount,
			"generalIndex":   metrics.KnowledgeComposite(d.kuno.EWMA, mastery, lessons),
		}
		if d.kuno.LastPercent != 0 {
			kuno["knowledgeIndex"] = d.kuno.LastPercent
		}
		out["kuno"] = kuno
	}
	if full || d.ability.RunsCount > 0 {
		abil := docstore.Document{
			"practiceIndex": d.ability.PracticeIndex,
			"runsCount":     d.ability.RunsCount,
		}
		if (base.Abil == nil || base.Abil.SkillsIndex == 0) && d.ability.AssessmentMean > 0 {
			abil["skillsIndex"] = d.ability.AssessmentMean
		}
		out["abil"] = abil
	}
	return out
}

// mergeSessions unions practice session lists keyed by type@startedAtMillis,
// first occurrence wins, oldest first, newest keepPracticeSessions kept.
func mergeSessions(lists ...any) []any {
	type keyed struct {
		ms   int64
		item any
	}
	seen := map[string]struct{}{}
	var all []keyed
	for _, l := range lists {
		arr, _ := l.([]any)
		for _, it := range arr {
			m, ok := docstore.AsMap(it)
			if !ok {
				continue
			}
			ms := progress.MillisOf(m["startedAt"])
			typ, _ := m["type"].(string)
			if typ == "" {
				typ = "x"
			}
			key := fmt.Sprintf("%s@%d", typ, ms)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, keyed{ms: ms, item: it})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ms < all[j].ms })
	if len(all) > keepPracticeSessions {
		all = all[len(all)-keepPracticeSessions:]
	}
	out := make([]any, 0, len(all))
	for _, k := range all {
		out = append(out, k.item)
	}
	return out
}
