package metrics

import (
	"math"
	"strings"
	"time"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// ScopeWeights weighs the Omni-Scope sub-scores. The defaults sum to 1.
type ScopeWeights struct {
	Motivation  float64 `json:"motivation" yaml:"motivation"`
	Intent      float64 `json:"intent" yaml:"intent"`
	Prepared    float64 `json:"prepared" yaml:"prepared"`
	Knowledge   float64 `json:"knowledge" yaml:"knowledge"`
	Consistency float64 `json:"consistency" yaml:"consistency"`
}

func DefaultScopeWeights() ScopeWeights {
	return ScopeWeights{Motivation: 0.45, Intent: 0.25, Prepared: 0.20, Knowledge: 0.05, Consistency: 0.05}
}

// FlexWeights weighs the Omni-Flex sub-scores. The defaults sum to 1.
type FlexWeights struct {
	Cognitive  float64 `json:"cognitive" yaml:"cognitive"`
	Behavioral float64 `json:"behavioral" yaml:"behavioral"`
	Adaptation float64 `json:"adaptation" yaml:"adaptation"`
	Openness   float64 `json:"openness" yaml:"openness"`
}

func DefaultFlexWeights() FlexWeights {
	return FlexWeights{Cognitive: 0.25, Behavioral: 0.25, Adaptation: 0.25, Openness: 0.25}
}

type ScopeComponents struct {
	Motivation  float64 `json:"motivation"`
	Intent      float64 `json:"intent"`
	Prepared    float64 `json:"prepared"`
	Knowledge   float64 `json:"knowledge"`
	Consistency float64 `json:"consistency"`
}

type Scope struct {
	Score      float64         `json:"score"`
	Components ScopeComponents `json:"components"`
}

// OmniScope is the weighted sum of the already clamped components.
func OmniScope(c ScopeComponents, w ScopeWeights) Scope {
	c = ScopeComponents{
		Motivation:  pct(c.Motivation),
		Intent:      pct(c.Intent),
		Prepared:    pct(c.Prepared),
		Knowledge:   pct(c.Knowledge),
		Consistency: pct(c.Consistency),
	}
	score := w.Motivation*c.Motivation + w.Intent*c.Intent + w.Prepared*c.Prepared +
		w.Knowledge*c.Knowledge + w.Consistency*c.Consistency
	return Scope{Score: pct(score), Components: c}
}

type FlexComponents struct {
	Cognitive  float64 `json:"cognitive"`
	Behavioral float64 `json:"behavioral"`
	Adaptation float64 `json:"adaptation"`
	Openness   float64 `json:"openness"`
}

type Flex struct {
	Score      float64        `json:"score"`
	Components FlexComponents `json:"components"`
}

func OmniFlex(c FlexComponents, w FlexWeights) Flex {
	c = FlexComponents{
		Cognitive:  pct(c.Cognitive),
		Behavioral: pct(c.Behavioral),
		Adaptation: pct(c.Adaptation),
		Openness:   pct(c.Openness),
	}
	score := w.Cognitive*c.Cognitive + w.Behavioral*c.Behavioral +
		w.Adaptation*c.Adaptation + w.Openness*c.Openness
	return Flex{Score: pct(score), Components: c}
}

// IntentFit scores clarity (share of the top category) 0.6 and richness
// (10 points per selection) 0.4. topShare may be a fraction or a percent.
func IntentFit(topShare float64, selections int) float64 {
	if topShare > 1 {
		topShare /= 100
	}
	clarity := clamp01(topShare) * 100
	richness := math.Min(100, 10*math.Max(0, float64(selections)))
	return pct(0.6*clarity + 0.4*richness)
}

// Preparedness scores planning notes: up to 60 for length (100 words fill it)
// and up to 40 for how recently the latest note was written.
func Preparedness(words int, lastNote, now time.Time) float64 {
	if words <= 0 && lastNote.IsZero() {
		return 0
	}
	length := math.Min(1, float64(words)/100) * 60
	recency := 0.0
	if !lastNote.IsZero() {
		recency = RecencyScore([]time.Time{lastNote}, now) * 0.4
	}
	return pct(length + recency)
}

// PlanRecency scores how recently the plan blocks were refreshed.
func PlanRecency(updated, now time.Time) float64 {
	if updated.IsZero() {
		return 0
	}
	d := now.Sub(updated)
	switch {
	case d <= 7*24*time.Hour:
		return 100
	case d <= 30*24*time.Hour:
		return 60
	default:
		return 20
	}
}

// Indices bundles every composite shown on the dashboard.
type Indices struct {
	Motivation          float64       `json:"motivation"`
	DirectionMotivation float64       `json:"directionMotivation"`
	Knowledge           KunoAggregate `json:"knowledge"`
	KnowledgeComposite  float64       `json:"knowledgeComposite"`
	SkillsIndex         float64       `json:"skillsIndex"`
	PracticeIndex       float64       `json:"practiceIndex"`
	Consistency         float64       `json:"consistency"`
	Consistency7        float64       `json:"consistency7"`
	Flow                Flow          `json:"flow"`
	Distribution        Distribution  `json:"distribution"`
	Weekly              []DayBucket   `json:"weekly"`
	ActionTrend         []DayBucket   `json:"actionTrend"`
	OmniScope           Scope         `json:"omniScope"`
	OmniFlex            Flex          `json:"omniFlex"`
	OmniIntelScore      float64       `json:"omniIntelScore"`
}

// Options tunes ComputeIndices.
type Options struct {
	Scope     ScopeWeights
	Flex      FlexWeights
	TrendDays int
	// FocusTag weights activity events in the action trend.
	FocusTag string
}

func DefaultOptions() Options {
	return Options{Scope: DefaultScopeWeights(), Flex: DefaultFlexWeights(), TrendDays: 7}
}

// MotivationFrom maps the stored block onto MotivationInput.
func MotivationFrom(m *progress.Motivation) MotivationInput {
	if m == nil {
		return MotivationInput{}
	}
	return MotivationInput{
		Urgency:         m.Urgency,
		Determination:   m.Determination,
		HoursPerWeek:    m.HoursPerWeek,
		LearnFromOthers: m.LearnFromOthers,
		ScheduleFit:     m.ScheduleFit,
		Budget:          m.BudgetLevel,
	}
}

// ActivityDates collects every timestamp that counts as activity.
func ActivityDates(f *progress.ProgressFact) []time.Time {
	if f == nil {
		return nil
	}
	out := sessionDates(f.PracticeSessions)
	for _, ev := range f.ActivityEvents {
		if !ev.StartedAt.IsZero() {
			out = append(out, ev.StartedAt.Time)
		}
	}
	for _, e := range f.RecentEntries {
		if !e.Timestamp.IsZero() {
			out = append(out, e.Timestamp.Time)
		}
	}
	return out
}

// ComputeIndices derives every dashboard index from f as of now. Days are
// taken in now's location.
func ComputeIndices(f *progress.ProgressFact, now time.Time, opts Options) Indices {
	if opts.TrendDays <= 0 {
		opts.TrendDays = 7
	}
	if f == nil {
		f = &progress.ProgressFact{}
	}
	omni := f.Omni
	if omni == nil {
		omni = &progress.Omni{}
	}
	var out Indices

	out.Motivation = MotivationIndex(MotivationFrom(f.Motivation))
	if f.Motivation != nil {
		out.DirectionMotivation = DirectionMotivationIndex(f.Motivation.Urgency, f.Motivation.Determination, f.Motivation.HoursPerWeek)
	} else if omni.Scope != nil {
		out.DirectionMotivation = pct(omni.Scope.DirectionMotivationIndex)
	}

	if k := omni.Kuno; k != nil {
		out.Knowledge = KunoAggregate{
			LastPercent: pct(k.KnowledgeIndex),
			RunsCount:   k.RunsCount,
			Mean:        pct(k.AveragePercent),
			EWMA:        pct(k.AveragePercent),
		}
		lessons := k.LessonsCompletedCount
		if k.Global != nil && k.Global.CompletedLessons > lessons {
			lessons = k.Global.CompletedLessons
		}
		base := k.AveragePercent
		if base == 0 {
			base = k.KnowledgeIndex
		}
		out.KnowledgeComposite = KnowledgeComposite(base, k.MasteryByCategory, lessons)
	}
	if f.Evaluation != nil && f.Evaluation.Knowledge != nil && out.Knowledge.RunsCount == 0 {
		out.Knowledge = Kuno([]float64{f.Evaluation.Knowledge.Percent}, DefaultAlpha)
		out.KnowledgeComposite = KnowledgeComposite(out.Knowledge.EWMA, nil, 0)
	}

	if a := omni.Abil; a != nil {
		out.SkillsIndex = pct(a.SkillsIndex)
		out.PracticeIndex = pct(a.PracticeIndex)
		if out.PracticeIndex == 0 {
			out.PracticeIndex = Ability(nil, a.ExercisesCompletedCount).PracticeIndex
		}
	}

	dates := ActivityDates(f)
	out.Consistency = ConsistencyIndex(dates, now)
	out.Consistency7 = ConsistencyIndexOver(dates, now, 7)
	out.Flow = FlowIndex(f.PracticeSessions, now, now)
	out.Distribution = ComputeDistribution(f.PracticeSessions)
	lang := ""
	if f.Intent != nil {
		lang = f.Intent.Lang
	}
	out.Weekly = WeeklyBuckets(f.PracticeSessions, now, lang)
	out.ActionTrend = ActionTrend(f.ActivityEvents, now, opts.TrendDays, opts.FocusTag)

	intentFit := 0.0
	if f.Intent != nil {
		selections := f.Intent.SelectionTotal
		if selections == 0 {
			selections = len(f.Intent.Tags)
		}
		intentFit = IntentFit(f.Intent.TopShare, selections)
	}
	words, lastNote := planningNotes(f)
	knowledge := out.KnowledgeComposite
	if knowledge == 0 && omni.Kuno != nil {
		knowledge = pct(omni.Kuno.KnowledgeIndex)
	}
	out.OmniScope = OmniScope(ScopeComponents{
		Motivation:  out.Motivation,
		Intent:      intentFit,
		Prepared:    Preparedness(words, lastNote, now),
		Knowledge:   knowledge,
		Consistency: out.Consistency7,
	}, opts.Scope)

	out.OmniFlex = OmniFlex(FlexComponents{
		Cognitive:  0.5*masteryBreadth(omni.Kuno) + 0.5*intentFit,
		Behavioral: practiceVariety(f),
		Adaptation: PlanRecency(planUpdated(f), now),
		Openness:   openness(f.Motivation),
	}, opts.Flex)

	out.OmniIntelScore = OmniIntelScore(knowledge, out.SkillsIndex, out.DirectionMotivation, out.Consistency)
	return out
}

// planningNotes counts words in the goal text and journal entries and
// returns the newest note time.
func planningNotes(f *progress.ProgressFact) (int, time.Time) {
	words := 0
	var last time.Time
	if f.Omni != nil && f.Omni.Scope != nil {
		s := f.Omni.Scope
		words += len(strings.Fields(s.GoalDescription)) + len(strings.Fields(s.MainPain)) + len(strings.Fields(s.IdealDay))
		if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() && words > 0 {
			last = s.UpdatedAt.Time
		}
	}
	for _, e := range f.RecentEntries {
		words += len(strings.Fields(e.Text))
		if e.Timestamp.After(last) {
			last = e.Timestamp.Time
		}
	}
	return words, last
}

func masteryBreadth(k *progress.OmniKuno) float64 {
	if k == nil || len(progress.Modules) == 0 {
		return 0
	}
	n := 0
	for _, v := range k.MasteryByCategory {
		if finite(v) && v > 0 {
			n++
		}
	}
	return pct(float64(n) / float64(len(progress.Modules)) * 100)
}

// practiceVariety is the share of the three practice types ever used.
func practiceVariety(f *progress.ProgressFact) float64 {
	used := map[progress.PracticeType]bool{}
	for _, s := range f.PracticeSessions {
		if s.Type.Valid() {
			used[s.Type] = true
		}
	}
	if st := f.Stats; st != nil {
		if st.ReflectionsCount > 0 {
			used[progress.PracticeReflection] = true
		}
		if st.BreathingCount > 0 {
			used[progress.PracticeBreathing] = true
		}
		if st.DrillsCount > 0 {
			used[progress.PracticeDrill] = true
		}
	}
	return pct(float64(len(used)) / 3 * 100)
}

func planUpdated(f *progress.ProgressFact) time.Time {
	var last time.Time
	for _, t := range []*progress.Time{
		intentUpdated(f.Intent), motivationUpdated(f.Motivation), recommendationUpdated(f.Recommendation),
	} {
		if t != nil && t.After(last) {
			last = t.Time
		}
	}
	return last
}

func intentUpdated(i *progress.Intent) *progress.Time {
	if i == nil {
		return nil
	}
	return i.UpdatedAt
}

func motivationUpdated(m *progress.Motivation) *progress.Time {
	if m == nil {
		return nil
	}
	return m.UpdatedAt
}

func recommendationUpdated(r *progress.Recommendation) *progress.Time {
	if r == nil {
		return nil
	}
	return r.UpdatedAt
}

func openness(m *progress.Motivation) float64 {
	if m == nil {
		return 0
	}
	return pct((clamp01(m.LearnFromOthers/10) + clamp01(m.ScheduleFit/10)) / 2 * 100)
}
