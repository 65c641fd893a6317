package backfill

import (
	"math"
	"strings"
	"time"

	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/progress/facts"
	"github.com/yungbote/progressfacts/internal/progress/metrics"
)

// defaultDetermination stands in for a missing determination answer when the
// direction index is synthesized.
const defaultDetermination = 3

// consistencyFloor marks that some history exists at all.
const consistencyFloor = 10

// rebuildFact reconstructs intent, motivation, evaluation, recommendation and
// omni from the latest snapshot and journey record. Malformed fields decode
// to their zero values.
func rebuildFact(snap *types.IntentSnapshot, journey *types.JourneyRecord) progress.ProgressFact {
	at := progress.At(snap.Timestamp.UTC())
	tags := snap.TagList()
	intent := facts.IntentInput{
		Tags:            tags,
		Categories:      snap.CategoryList(),
		Urgency:         snap.UrgencyValue(),
		Lang:            snap.Language(),
		FirstExpression: snap.FirstExpression,
		FirstCategory:   snap.FirstCategory,
	}.Intent()
	intent.UpdatedAt = at

	f := progress.ProgressFact{
		Intent: &intent,
		Evaluation: &progress.Evaluation{
			Scores:     snap.Scores(),
			Knowledge:  snap.Knowledge(),
			StageValue: snap.StageValue(),
			Lang:       intent.Lang,
			UpdatedAt:  at,
		},
		UpdatedAt: at,
	}
	if m, ok := snap.MotivationAnswers(); ok {
		m.UpdatedAt = at
		f.Motivation = m
	}
	f.Recommendation = rebuildRecommendation(snap, journey)

	if omni, ok := snap.OmniBlock(); ok {
		f.Omni = omni
	} else {
		f.Omni = synthesizeOmni(snap, f.Motivation, tags)
	}
	return f
}

func rebuildRecommendation(snap *types.IntentSnapshot, journey *types.JourneyRecord) *progress.Recommendation {
	snapPath := strings.TrimSpace(snap.Recommendation)
	if snapPath == "" && journey == nil {
		return nil
	}
	rec := &progress.Recommendation{
		SuggestedPath:   snapPath,
		ReasonKey:       strings.TrimSpace(snap.RecommendationReasonKey),
		DimensionScores: snap.Dimensions(),
		UpdatedAt:       progress.At(snap.Timestamp.UTC()),
	}
	var explicit *bool
	if journey != nil {
		if p := strings.TrimSpace(journey.RecommendedPath); p != "" {
			rec.SuggestedPath = p
		}
		if r := strings.TrimSpace(journey.RecommendationReasonKey); r != "" {
			rec.ReasonKey = r
		}
		rec.SelectedPath = strings.TrimSpace(journey.Choice)
		if dims := journey.Dimensions(); dims != nil {
			rec.DimensionScores = dims
		}
		explicit = journey.AcceptedRecommendation
		if !journey.Timestamp.IsZero() {
			rec.UpdatedAt = progress.At(journey.Timestamp.UTC())
		}
	}
	rec.AcceptedRecommendation = facts.Accepted(explicit, rec.SuggestedPath, rec.SelectedPath)
	return rec
}

// synthesizeOmni builds a minimal omni block from inputs that are directly
// computable when the snapshot stored none.
func synthesizeOmni(snap *types.IntentSnapshot, m *progress.Motivation, tags []string) *progress.Omni {
	determination, hours := float64(defaultDetermination), 0.0
	if m != nil {
		if m.Determination > 0 {
			determination = m.Determination
		}
		hours = m.HoursPerWeek
	}
	direction := metrics.DirectionMotivationIndex(snap.UrgencyValue(), determination, hours)

	knowledge := 0.0
	if k := snap.Knowledge(); k != nil {
		knowledge = k.Percent
	}
	consistency := 0.0
	if snap.HasAnswers() || len(tags) > 0 {
		consistency = consistencyFloor
	}
	return &progress.Omni{
		Scope:  &progress.OmniScope{Tags: tags, DirectionMotivationIndex: direction},
		Kuno:   &progress.OmniKuno{KnowledgeIndex: knowledge},
		Sensei: &progress.OmniSensei{},
		Abil:   &progress.OmniAbil{},
		Intel:  &progress.OmniIntel{ConsistencyIndex: consistency},

		OmniIntelScore: metrics.OmniIntelScore(knowledge, 0, direction, consistency),
	}
}

// knowledgePercents extracts finite quiz percents clamped to 0-100.
func knowledgePercents(rows []types.KnowledgeAssessment) []float64 {
	out := make([]float64, 0, len(rows))
	for i := range rows {
		p, ok := rows[i].Percent()
		if !ok {
			continue
		}
		out = append(out, math.Round(math.Max(0, math.Min(100, p))))
	}
	return out
}

// abilityAssessments converts stored results. A missing total counts as 0.
func abilityAssessments(rows []types.AbilityAssessment) []metrics.AbilityAssessment {
	out := make([]metrics.AbilityAssessment, 0, len(rows))
	for i := range rows {
		res := rows[i].Parsed()
		a := metrics.AbilityAssessment{Total: res.Total}
		if a.Total == nil {
			zero := 0.0
			a.Total = &zero
		}
		if len(res.Probes) > 0 {
			a.Probes = make(map[string]metrics.Probe, len(res.Probes))
			for id, p := range res.Probes {
				a.Probes[id] = metrics.Probe(p)
			}
		}
		out = append(out, a)
	}
	return out
}

// derived holds the indices recomputed from history on every run.
type derived struct {
	kuno       metrics.KunoAggregate
	ability    metrics.AbilityIndex
	motivation float64
	flow       metrics.Flow
}

func computeDerived(percs []float64, assess []metrics.AbilityAssessment, base *progress.Omni, f *progress.ProgressFact, sessions []progress.PracticeSession, now time.Time) derived {
	exercises := 0
	if base != nil && base.Abil != nil {
		exercises = base.Abil.ExercisesCompletedCount
	}
	in := metrics.MotivationFrom(f.Motivation)
	if f.Intent != nil {
		in.Urgency = f.Intent.Urgency
	}
	return derived{
		kuno:       metrics.Kuno(percs, metrics.DefaultAlpha),
		ability:    metrics.Ability(assess, exercises),
		motivation: metrics.MotivationIndex(in),
		flow:       metrics.FlowIndex(sessions, now, now),
	}
}
