// Package metrics derives the composite progress indices from the raw blocks
// of a ProgressFact. Every function is total: malformed or missing inputs
// contribute 0 and every output is clamped to its documented range.
package metrics

import (
	"math"
	"strings"
)

// DefaultAlpha is the EWMA smoothing factor for knowledge quiz percentages.
const DefaultAlpha = 0.4

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp01(x float64) float64 {
	if !finite(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clamp(x, lo, hi float64) float64 {
	if !finite(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// roundEps absorbs float noise so that x.5 always rounds up.
const roundEps = 1e-9

// pct clamps to [0,100] and rounds half up.
func pct(x float64) float64 {
	return math.Floor(clamp(x, 0, 100) + 0.5 + roundEps)
}

func round(x float64) float64 {
	if !finite(x) {
		return 0
	}
	return math.Floor(x + 0.5 + roundEps)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// KunoAggregate summarizes a chronological series of quiz percentages.
type KunoAggregate struct {
	LastPercent float64 `json:"lastPercent"`
	RunsCount   int     `json:"runsCount"`
	Mean        float64 `json:"mean"`
	EWMA        float64 `json:"ewma"`
}

// Kuno folds percs oldest first: agg0 = p0, aggN = alpha*pN + (1-alpha)*aggN-1.
// Negative and non-finite values are skipped. An alpha outside (0,1]
// falls back to DefaultAlpha.
func Kuno(percs []float64, alpha float64) KunoAggregate {
	if !(alpha > 0 && alpha <= 1) {
		alpha = DefaultAlpha
	}
	vals := make([]float64, 0, len(percs))
	for _, p := range percs {
		if finite(p) && p >= 0 {
			vals = append(vals, p)
		}
	}
	if len(vals) == 0 {
		return KunoAggregate{}
	}
	agg := vals[0]
	for _, v := range vals[1:] {
		agg = alpha*v + (1-alpha)*agg
	}
	return KunoAggregate{
		LastPercent: pct(vals[len(vals)-1]),
		RunsCount:   len(vals),
		Mean:        pct(mean(vals)),
		EWMA:        pct(agg),
	}
}

// KnowledgeComposite blends 0.7 EWMA, 0.25 mean category mastery and a
// lessons-completed bonus worth 5 points per lesson up to 100.
func KnowledgeComposite(ewma float64, masteryByCategory map[string]float64, lessonsCompleted int) float64 {
	mastery := make([]float64, 0, len(masteryByCategory))
	for _, v := range masteryByCategory {
		if finite(v) {
			mastery = append(mastery, clamp(v, 0, 100))
		}
	}
	lessons := math.Min(100, 5*math.Max(0, float64(lessonsCompleted)))
	return pct(0.7*clamp(ewma, 0, 100) + 0.25*mean(mastery) + 0.05*lessons)
}

// Probe is one ability probe result. Scaled wins over Raw/MaxRaw.
type Probe struct {
	Raw    *float64 `json:"raw,omitempty"`
	Scaled *float64 `json:"scaled,omitempty"`
	MaxRaw *float64 `json:"maxRaw,omitempty"`
}

// AbilityAssessment is one stored ability test result.
type AbilityAssessment struct {
	Total  *float64         `json:"total,omitempty"`
	Probes map[string]Probe `json:"probes,omitempty"`
}

func (p Probe) value() float64 {
	if p.Scaled != nil && finite(*p.Scaled) {
		return pct(*p.Scaled)
	}
	if p.Raw != nil && p.MaxRaw != nil && finite(*p.Raw) && finite(*p.MaxRaw) && *p.MaxRaw > 0 {
		return pct(*p.Raw / *p.MaxRaw * 100)
	}
	return 0
}

// AbilityIndex is the result of Ability.
type AbilityIndex struct {
	AssessmentMean float64 `json:"assessmentMean"`
	PracticeIndex  float64 `json:"practiceIndex"`
	RunsCount      int     `json:"runsCount"`
}

// Ability averages each assessment (its probes, else its total) and blends
// the mean 0.7 with a practice signal of 3 points per exercise up to 100.
func Ability(assessments []AbilityAssessment, exercisesCompleted int) AbilityIndex {
	points := make([]float64, 0, len(assessments))
	for _, a := range assessments {
		if len(a.Probes) > 0 {
			vals := make([]float64, 0, len(a.Probes))
			for _, p := range a.Probes {
				vals = append(vals, p.value())
			}
			points = append(points, round(mean(vals)))
			continue
		}
		if a.Total != nil && finite(*a.Total) {
			points = append(points, pct(*a.Total))
		}
	}
	assessMean := pct(mean(points))
	practice := math.Min(100, math.Max(0, float64(exercisesCompleted)*3))
	return AbilityIndex{
		AssessmentMean: assessMean,
		PracticeIndex:  pct(0.7*assessMean + 0.3*practice),
		RunsCount:      len(points),
	}
}

// MotivationInput carries the motivation sliders used by MotivationIndex.
type MotivationInput struct {
	Urgency         float64 // 1-10
	Determination   float64 // 1-5
	HoursPerWeek    float64 // 0-8 effective
	LearnFromOthers float64 // 0-10
	ScheduleFit     float64 // 0-10
	Budget          string
}

// MotivationIndex weighs urgency 0.5, determination 0.3 and hours 0.2, boosts
// up to 10% from the comfort sliders and takes 5 points off for a low budget
// with at most one hour a week. The result is 0-100.
func MotivationIndex(in MotivationInput) float64 {
	u := clamp01(in.Urgency / 10)
	d := clamp01(in.Determination / 5)
	h := clamp01(in.HoursPerWeek / 8)
	base := 0.5*u + 0.3*d + 0.2*h
	base *= 1 + 0.05*clamp01(in.LearnFromOthers/10) + 0.05*clamp01(in.ScheduleFit/10)
	if strings.EqualFold(strings.TrimSpace(in.Budget), "low") && finite(in.HoursPerWeek) && in.HoursPerWeek <= 1 {
		base = math.Max(0, base-0.05)
	}
	return round(clamp01(base) * 100)
}

// DirectionMotivationIndex is the onboarding variant over clamped sliders:
// urgency 1-10, determination 1-5, hours 0-8.
func DirectionMotivationIndex(urgency, determination, hours float64) float64 {
	u := clamp(urgency, 1, 10)
	d := clamp(determination, 1, 5)
	h := clamp(hours, 0, 8)
	return pct((0.5*u/10 + 0.3*d/5 + 0.2*h/8) * 100)
}

// OmniIntelScore blends knowledge 0.25, skills 0.35, direction 0.2 and
// consistency 0.2.
func OmniIntelScore(knowledge, skills, direction, consistency float64) float64 {
	return pct(0.25*clamp(knowledge, 0, 100) +
		0.35*clamp(skills, 0, 100) +
		0.2*clamp(direction, 0, 100) +
		0.2*clamp(consistency, 0, 100))
}
