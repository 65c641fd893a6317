package facts

import (
	"fmt"
	"math"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
)

const (
	keepPracticeSessions = 500
	keepOnboardingEvents = 200
	keepLastTokens       = 12
)

// Render turns a typed patch into the merge document sent through the
// throttle. Block-level updatedAt fields resolve to the store clock; array
// elements carry now instead because transforms cannot nest inside them.
func Render(p progress.Patch, now time.Time) (docstore.Document, error) {
	ts := docstore.ServerTimestamp()
	switch v := p.(type) {
	case progress.IntentPatch:
		return blockDoc(progress.BlockIntent, v.Intent, ts)
	case progress.MotivationPatch:
		return blockDoc(progress.BlockMotivation, v.Motivation, ts)
	case progress.EvaluationPatch:
		doc, err := blockDoc(progress.BlockEvaluation, v.Evaluation, ts)
		if err != nil {
			return nil, err
		}
		doc[progress.BlockOmni] = docstore.Document{"intel": docstore.Document{
			"evaluationsCount": docstore.Increment(1),
		}}
		return doc, nil
	case progress.RecommendationPatch:
		doc, err := blockDoc(progress.BlockRecommendation, v.Recommendation, ts)
		if err != nil {
			return nil, err
		}
		rec := doc[progress.BlockRecommendation].(docstore.Document)
		// Nulls are written on purpose so a new recommendation clears the old one.
		for _, k := range []string{"suggestedPath", "reasonKey", "selectedPath", "dimensionScores"} {
			if _, ok := rec[k]; !ok {
				rec[k] = nil
			}
		}
		if v.Selected {
			rec["selectedAt"] = ts
		}
		return doc, nil
	case progress.QuestsPatch:
		items := make([]any, 0, len(v.Items))
		for _, q := range v.Items {
			q.Completed = false
			m, err := docstore.Encode(q)
			if err != nil {
				return nil, err
			}
			items = append(items, map[string]any(m))
		}
		return docstore.Document{
			progress.BlockQuests: docstore.Document{"generatedAt": ts, "items": items},
			progress.BlockOmni:   docstore.Document{"sensei": docstore.Document{"unlocked": true}},
		}, nil
	case progress.QuestCompletionPatch:
		return docstore.Document{progress.BlockOmni: docstore.Document{
			"sensei": docstore.Document{"completedQuestsCount": docstore.Increment(1)},
			"abil":   docstore.Document{"unlocked": true},
		}}, nil
	case progress.PracticeCounterPatch:
		field, ok := counterField(v.Type)
		if !ok {
			return nil, progress.Validation("facts.render", "unknown practice type %q", v.Type)
		}
		n := v.Count
		if n < 1 {
			n = 1
		}
		return docstore.Document{progress.BlockStats: docstore.Document{
			field:                   docstore.Increment(float64(n)),
			progress.FieldUpdatedAt: ts,
		}}, nil
	case progress.PracticeSessionPatch:
		m, err := docstore.Encode(v.Session)
		if err != nil {
			return nil, err
		}
		return docstore.Document{
			progress.BlockPracticeSessions: docstore.ArrayUnionCapped(keepPracticeSessions, map[string]any(m)),
		}, nil
	case progress.KnowledgeQuizPatch:
		return renderKnowledgeQuiz(v), nil
	case progress.KunoLessonPatch:
		entry := docstore.Document{"completedIds": stringsAny(v.CompletedIDs), "lastUpdated": ts}
		if v.Performance != nil {
			entry["performance"] = map[string]any{
				"recentScores":    floatsAny(v.Performance.RecentScores),
				"recentTimeSpent": floatsAny(v.Performance.RecentTimeSpent),
				"difficultyBias":  v.Performance.DifficultyBias,
			}
		}
		return docstore.Document{progress.BlockOmni: docstore.Document{"kuno": docstore.Document{
			"modules": docstore.Document{v.ModuleID: entry},
			"lessons": docstore.Document{v.ModuleID: docstore.Clone(entry)},
		}}}, nil
	case progress.OmniPatch:
		for k := range v.Fields {
			if _, ok := progress.OmniKeys[k]; !ok {
				return nil, progress.Validation("facts.render", "unknown omni key %q", k)
			}
		}
		return docstore.Document{progress.BlockOmni: docstore.Clone(v.Fields)}, nil
	case progress.QuickAssessmentPatch:
		qa, err := docstore.Encode(v.Sliders)
		if err != nil {
			return nil, err
		}
		qa[progress.FieldUpdatedAt] = ts
		sample := DailySample(v.Sliders)
		return docstore.Document{
			progress.BlockQuickAssessment: qa,
			progress.BlockOmni: docstore.Document{"scope": docstore.Document{"history": docstore.Document{
				progress.DayKey(v.Day): docstore.Document{
					"clarity": sample.Clarity, "calm": sample.Calm, "energy": sample.Energy,
					progress.FieldUpdatedAt: ts,
				},
			}}},
		}, nil
	case progress.AbilityPracticePatch:
		return docstore.Document{
			progress.BlockAbilityLog: docstore.Document{"lastExercise": v.Exercise, progress.FieldUpdatedAt: ts},
			progress.BlockOmni: docstore.Document{"abil": docstore.Document{
				"exercisesCompletedCount": docstore.Increment(1),
				"skillsIndex":             docstore.Increment(3),
				"unlocked":                true,
			}},
		}, nil
	case progress.AbilityAssessmentPatch:
		abil := docstore.Document{
			"practiceIndex": v.PracticeIndex,
			"runsCount":     v.RunsCount,
			"unlocked":      true,
		}
		if v.SkillsIndex != nil {
			abil["skillsIndex"] = *v.SkillsIndex
		}
		return docstore.Document{progress.BlockOmni: docstore.Document{"abil": abil}}, nil
	case progress.ConsistencyPingPatch:
		return docstore.Document{progress.BlockOmni: docstore.Document{"intel": docstore.Document{
			"evaluationsCount": docstore.Increment(0),
			"consistencyIndex": docstore.Increment(2),
		}}}, nil
	case progress.DailyCheckinPatch:
		sliders, err := docstore.Encode(v.Sliders)
		if err != nil {
			return nil, err
		}
		return docstore.Document{progress.BlockOmni: docstore.Document{"daily": docstore.Document{
			"today":           sliders,
			"lastCheckinDate": v.Day.Format("2006-01-02"),
			"history":         docstore.Document{progress.DayKey(v.Day): docstore.Clone(sliders)},
		}}}, nil
	case progress.TextSignalPatch:
		return renderTextSignal(v)
	case progress.OnboardingPatch:
		ob := docstore.Document{}
		if v.Familiarity != "" {
			ob["familiarityMentalCoaching"] = v.Familiarity
			ob[progress.FieldUpdatedAt] = ts
		}
		if v.Event != nil {
			ev := *v.Event
			if ev.At == nil {
				ev.At = progress.At(now.UTC())
			}
			m, err := docstore.Encode(ev)
			if err != nil {
				return nil, err
			}
			ob["events"] = docstore.ArrayUnionCapped(keepOnboardingEvents, map[string]any(m))
		}
		if len(ob) == 0 {
			return nil, progress.Validation("facts.render", "empty onboarding patch")
		}
		return docstore.Document{progress.BlockOnboarding: ob}, nil
	default:
		return nil, progress.NewError(progress.CodeInternal, "facts.render", fmt.Sprintf("unhandled patch %T", p), nil)
	}
}

// blockDoc encodes v as block name and stamps its updatedAt.
func blockDoc(name string, v any, ts docstore.Transform) (docstore.Document, error) {
	m, err := docstore.Encode(v)
	if err != nil {
		return nil, progress.Wrap(progress.CodeMalformed, "facts.render", err)
	}
	m[progress.FieldUpdatedAt] = ts
	return docstore.Document{name: m}, nil
}

func counterField(t progress.PracticeType) (string, bool) {
	switch t {
	case progress.PracticeReflection:
		return "reflectionsCount", true
	case progress.PracticeBreathing:
		return "breathingCount", true
	case progress.PracticeDrill:
		return "drillsCount", true
	}
	return "", false
}

func renderKnowledgeQuiz(v progress.KnowledgeQuizPatch) docstore.Document {
	scores := docstore.Document{}
	breakdown := docstore.Document{}
	for cat, part := range v.Scores.Breakdown {
		scores[cat] = part.Percent
		breakdown[cat] = part.Percent
	}
	kuno := docstore.Document{
		"knowledgeIndex": v.Scores.Percent,
		"completedTests": docstore.Increment(1),
		"exam": docstore.Document{
			"lastTakenAt": v.TakenAt.UnixMilli(),
			"score":       v.Scores.Percent,
			"breakdown":   breakdown,
		},
	}
	if len(scores) > 0 {
		kuno["scores"] = scores
		kuno["masteryByCategory"] = docstore.Clone(scores)
	}
	if v.AveragePercent != nil {
		kuno["averagePercent"] = *v.AveragePercent
	}
	if v.RunsCount != nil {
		kuno["runsCount"] = *v.RunsCount
	}
	return docstore.Document{progress.BlockOmni: docstore.Document{"kuno": kuno}}
}

func renderTextSignal(v progress.TextSignalPatch) (docstore.Document, error) {
	analytics := docstore.Document{progress.FieldUpdatedAt: docstore.ServerTimestamp()}
	indicators := docstore.Document{}
	for k, n := range v.Indicators {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			continue
		}
		indicators[k] = docstore.Increment(n)
	}
	if len(indicators) > 0 {
		analytics["indicators"] = indicators
	}
	if v.Tokens != nil {
		tokens := v.Tokens
		if len(tokens) > keepLastTokens {
			tokens = tokens[:keepLastTokens]
		}
		analytics["lastTokens"] = stringsAny(tokens)
	}
	if len(v.TextIndicators) > 0 {
		ti, err := docstore.Encode(v.TextIndicators)
		if err != nil {
			return nil, err
		}
		analytics["textIndicators"] = ti
	}
	return docstore.Document{progress.BlockAnalytics: analytics}, nil
}

// DailySample derives the 0-100 scope sample from 1-10 sliders. Calm
// averages inverted stress with sleep.
func DailySample(s progress.Sliders) progress.DailySample {
	asPct := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return math.Round(math.Max(0, math.Min(100, v*10)))
	}
	calm := (10 - finiteOr(s.Stress) + finiteOr(s.Sleep)) / 2
	return progress.DailySample{
		Clarity: asPct(s.Clarity),
		Calm:    asPct(calm),
		Energy:  asPct(s.Energy),
	}
}

func finiteOr(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func stringsAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func floatsAny(in []float64) []any {
	out := make([]any, 0, len(in))
	for _, f := range in {
		out = append(out, f)
	}
	return out
}
