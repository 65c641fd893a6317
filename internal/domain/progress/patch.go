package progress

import "time"

// Patch is a partial update touching a closed set of sub-blocks. The set of
// implementations is fixed to this package; renderers switch over it
// exhaustively instead of accepting arbitrary key paths.
type Patch interface {
	// Blocks lists the top-level sub-blocks the patch writes.
	Blocks() []string
	sealed()
}

type IntentPatch struct{ Intent Intent }

type MotivationPatch struct{ Motivation Motivation }

type EvaluationPatch struct{ Evaluation Evaluation }

type RecommendationPatch struct {
	Recommendation Recommendation
	// Selected stamps selectedAt when a path was chosen.
	Selected bool
}

// QuestsPatch replaces the generated quest list and unlocks coaching.
type QuestsPatch struct{ Items []Quest }

// QuestCompletionPatch bumps the completed quest counter and unlocks abilities.
type QuestCompletionPatch struct{}

// PracticeCounterPatch increments one practice counter by Count.
type PracticeCounterPatch struct {
	Type  PracticeType
	Count int
}

// PracticeSessionPatch appends one session to the capped session log.
type PracticeSessionPatch struct{ Session PracticeSession }

type KnowledgeQuizPatch struct {
	Scores  KnowledgeScores
	TakenAt time.Time
	// AveragePercent and RunsCount are set when the assessment history was available.
	AveragePercent *float64
	RunsCount      *int
}

type KunoLessonPatch struct {
	ModuleID     string
	CompletedIDs []string
	Performance  *LessonPerformance
}

// OmniPatch deep-merges Fields into the omni block. Top-level keys must be
// members of OmniKeys.
type OmniPatch struct{ Fields map[string]any }

type QuickAssessmentPatch struct {
	Sliders Sliders
	Day     time.Time
}

type AbilityPracticePatch struct{ Exercise string }

type AbilityAssessmentPatch struct {
	SkillsIndex   *float64
	PracticeIndex float64
	RunsCount     int
}

type ConsistencyPingPatch struct{}

type DailyCheckinPatch struct {
	Sliders Sliders
	Day     time.Time
}

type TextSignalPatch struct {
	Indicators     map[string]float64
	Tokens         []string
	TextIndicators map[string]TextIndicator
}

type OnboardingPatch struct {
	Familiarity string
	Event       *OnboardingEvent
}

func (IntentPatch) Blocks() []string          { return []string{BlockIntent} }
func (MotivationPatch) Blocks() []string      { return []string{BlockMotivation} }
func (EvaluationPatch) Blocks() []string      { return []string{BlockEvaluation, BlockOmni} }
func (RecommendationPatch) Blocks() []string  { return []string{BlockRecommendation} }
func (QuestsPatch) Blocks() []string          { return []string{BlockQuests, BlockOmni} }
func (QuestCompletionPatch) Blocks() []string { return []string{BlockOmni} }
func (PracticeCounterPatch) Blocks() []string { return []string{BlockStats} }
func (PracticeSessionPatch) Blocks() []string { return []string{BlockPracticeSessions} }
func (KnowledgeQuizPatch) Blocks() []string   { return []string{BlockOmni} }
func (KunoLessonPatch) Blocks() []string      { return []string{BlockOmni} }
func (OmniPatch) Blocks() []string            { return []string{BlockOmni} }
func (QuickAssessmentPatch) Blocks() []string { return []string{BlockQuickAssessment, BlockOmni} }
func (AbilityPracticePatch) Blocks() []string { return []string{BlockAbilityLog, BlockOmni} }
func (AbilityAssessmentPatch) Blocks() []string {
	return []string{BlockOmni}
}
func (ConsistencyPingPatch) Blocks() []string { return []string{BlockOmni} }
func (DailyCheckinPatch) Blocks() []string    { return []string{BlockOmni} }
func (TextSignalPatch) Blocks() []string      { return []string{BlockAnalytics} }
func (OnboardingPatch) Blocks() []string      { return []string{BlockOnboarding} }

func (IntentPatch) sealed()            {}
func (MotivationPatch) sealed()        {}
func (EvaluationPatch) sealed()        {}
func (RecommendationPatch) sealed()    {}
func (QuestsPatch) sealed()            {}
func (QuestCompletionPatch) sealed()   {}
func (PracticeCounterPatch) sealed()   {}
func (PracticeSessionPatch) sealed()   {}
func (KnowledgeQuizPatch) sealed()     {}
func (KunoLessonPatch) sealed()        {}
func (OmniPatch) sealed()              {}
func (QuickAssessmentPatch) sealed()   {}
func (AbilityPracticePatch) sealed()   {}
func (AbilityAssessmentPatch) sealed() {}
func (ConsistencyPingPatch) sealed()   {}
func (DailyCheckinPatch) sealed()      {}
func (TextSignalPatch) sealed()        {}
func (OnboardingPatch) sealed()        {}
