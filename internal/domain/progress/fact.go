package progress

// Collections used by the progress engine.
const (
	CollectionFacts    = "userProgressFacts"
	CollectionProfiles = "userProfiles"

	// MirrorField is the profile field holding the denormalized aggregate copy.
	MirrorField = "progressFacts"
)

// Sub-block names as they appear in the stored document.
const (
	BlockIntent           = "intent"
	BlockMotivation       = "motivation"
	BlockEvaluation       = "evaluation"
	BlockRecommendation   = "recommendation"
	BlockQuests           = "quests"
	BlockOmni             = "omni"
	BlockRecentEntries    = "recentEntries"
	BlockPracticeSessions = "practiceSessions"
	BlockActivityEvents   = "activityEvents"
	BlockQuickAssessment  = "quickAssessment"
	BlockHabits           = "habits"
	BlockStats            = "stats"
	BlockAnalytics        = "analytics"
	BlockOnboarding       = "onboarding"
	BlockAbilityLog       = "abilityLog"
	FieldUpdatedAt        = "updatedAt"
)

// ProgressFact is the per-owner aggregate root. Every sub-block is merged
// independently and carries its own UpdatedAt.
type ProgressFact struct {
	Intent           *Intent           `json:"intent,omitempty"`
	Motivation       *Motivation       `json:"motivation,omitempty"`
	Evaluation       *Evaluation       `json:"evaluation,omitempty"`
	Recommendation   *Recommendation   `json:"recommendation,omitempty"`
	Quests           *Quests           `json:"quests,omitempty"`
	Omni             *Omni             `json:"omni,omitempty"`
	RecentEntries    []RecentEntry     `json:"recentEntries,omitempty"`
	PracticeSessions []PracticeSession `json:"practiceSessions,omitempty"`
	ActivityEvents   []ActivityEvent   `json:"activityEvents,omitempty"`
	QuickAssessment  *QuickAssessment  `json:"quickAssessment,omitempty"`
	Habits           *Habits           `json:"habits,omitempty"`
	Stats            *Stats            `json:"stats,omitempty"`
	Analytics        *Analytics        `json:"analytics,omitempty"`
	Onboarding       *Onboarding       `json:"onboarding,omitempty"`
	AbilityLog       *AbilityLog       `json:"abilityLog,omitempty"`
	UpdatedAt        *Time             `json:"updatedAt,omitempty"`
}

// Complete reports whether the blocks backfill cannot cheaply rebuild are present.
func (f *ProgressFact) Complete() bool {
	return f != nil && f.Intent != nil && f.Motivation != nil && f.Evaluation != nil
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Intent struct {
	Tags            []string        `json:"tags"`
	Categories      []CategoryCount `json:"categories"`
	Urgency         float64         `json:"urgency"`
	Lang            string          `json:"lang"`
	FirstExpression string          `json:"firstExpression,omitempty"`
	FirstCategory   string          `json:"firstCategory,omitempty"`
	SelectionTotal  int             `json:"selectionTotal,omitempty"`
	TopCategory     string          `json:"topCategory,omitempty"`
	TopShare        float64         `json:"topShare,omitempty"`
	UpdatedAt       *Time           `json:"updatedAt,omitempty"`
}

type Motivation struct {
	Urgency          float64 `json:"urgency"`
	TimeHorizon      string  `json:"timeHorizon,omitempty"`
	Determination    float64 `json:"determination"`
	HoursPerWeek     float64 `json:"hoursPerWeek"`
	BudgetLevel      string  `json:"budgetLevel,omitempty"`
	GoalType         string  `json:"goalType,omitempty"`
	EmotionalState   string  `json:"emotionalState,omitempty"`
	GroupComfort     float64 `json:"groupComfort"`
	LearnFromOthers  float64 `json:"learnFromOthers"`
	ScheduleFit      float64 `json:"scheduleFit"`
	FormatPreference string  `json:"formatPreference,omitempty"`
	CloudFocusCount  int     `json:"cloudFocusCount"`
	UpdatedAt        *Time   `json:"updatedAt,omitempty"`
}

// EvaluationScores holds the six psychometric totals.
type EvaluationScores struct {
	PSSTotal      float64 `json:"pssTotal"`
	GSETotal      float64 `json:"gseTotal"`
	MAASTotal     float64 `json:"maasTotal"`
	PanasPositive float64 `json:"panasPositive"`
	PanasNegative float64 `json:"panasNegative"`
	SVS           float64 `json:"svs"`
}

type ScorePart struct {
	Raw     float64 `json:"raw"`
	Max     float64 `json:"max"`
	Percent float64 `json:"percent"`
}

// KnowledgeScores is a knowledge-quiz result with a per-category breakdown.
type KnowledgeScores struct {
	Raw       float64              `json:"raw"`
	Max       float64              `json:"max"`
	Percent   float64              `json:"percent"`
	Breakdown map[string]ScorePart `json:"breakdown,omitempty"`
}

type Evaluation struct {
	Scores     EvaluationScores `json:"scores"`
	Knowledge  *KnowledgeScores `json:"knowledge"`
	StageValue string           `json:"stageValue"`
	Lang       string           `json:"lang"`
	UpdatedAt  *Time            `json:"updatedAt,omitempty"`
}

// DimensionScores is keyed by module id; Normalize gives it a fixed shape.
type DimensionScores map[string]float64

type Recommendation struct {
	SuggestedPath          string          `json:"suggestedPath,omitempty"`
	ReasonKey              string          `json:"reasonKey,omitempty"`
	SelectedPath           string          `json:"selectedPath,omitempty"`
	AcceptedRecommendation *bool           `json:"acceptedRecommendation"`
	DimensionScores        DimensionScores `json:"dimensionScores,omitempty"`
	AlgoVersion            string          `json:"algoVersion,omitempty"`
	FormatPreference       string          `json:"formatPreference,omitempty"`
	BadgeLabel             string          `json:"badgeLabel,omitempty"`
	SelectedAt             *Time           `json:"selectedAt,omitempty"`
	UpdatedAt              *Time           `json:"updatedAt,omitempty"`
}

type Quest struct {
	ID             string `json:"id"`
	ScriptID       string `json:"scriptId,omitempty"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Body           string `json:"body,omitempty"`
	CTALabel       string `json:"ctaLabel,omitempty"`
	Priority       int    `json:"priority"`
	ContextSummary string `json:"contextSummary,omitempty"`
	Completed      bool   `json:"completed"`
}

type Quests struct {
	GeneratedAt *Time   `json:"generatedAt,omitempty"`
	Items       []Quest `json:"items"`
}

type RecentEntry struct {
	Text        string `json:"text"`
	Timestamp   Time   `json:"timestamp"`
	TabID       string `json:"tabId,omitempty"`
	Theme       string `json:"theme,omitempty"`
	SourceBlock string `json:"sourceBlock,omitempty"`
	SourceType  string `json:"sourceType,omitempty"`
	ModuleID    string `json:"moduleId,omitempty"`
	LessonID    string `json:"lessonId,omitempty"`
	LessonTitle string `json:"lessonTitle,omitempty"`
	Sig         string `json:"sig,omitempty"`
}

type PracticeType string

const (
	PracticeReflection PracticeType = "reflection"
	PracticeBreathing  PracticeType = "breathing"
	PracticeDrill      PracticeType = "drill"
)

func (t PracticeType) Valid() bool {
	switch t {
	case PracticeReflection, PracticeBreathing, PracticeDrill:
		return true
	}
	return false
}

type PracticeSession struct {
	Type        PracticeType `json:"type"`
	StartedAt   Time         `json:"startedAt"`
	EndedAt     *Time        `json:"endedAt,omitempty"`
	DurationSec int          `json:"durationSec"`
}

type ActivityCategory string

const (
	ActivityKnowledge  ActivityCategory = "knowledge"
	ActivityPractice   ActivityCategory = "practice"
	ActivityReflection ActivityCategory = "reflection"
)

type ActivityEvent struct {
	ID          string           `json:"id,omitempty"`
	StartedAt   Time             `json:"startedAt"`
	Source      string           `json:"source"`
	Category    ActivityCategory `json:"category"`
	Units       int              `json:"units"`
	DurationMin *int             `json:"durationMin,omitempty"`
	FocusTag    string           `json:"focusTag,omitempty"`
}

// Sliders are 1-10 self-assessment values.
type Sliders struct {
	Energy     float64 `json:"energy"`
	Stress     float64 `json:"stress"`
	Sleep      float64 `json:"sleep"`
	Clarity    float64 `json:"clarity"`
	Confidence float64 `json:"confidence"`
	Focus      float64 `json:"focus"`
}

type QuickAssessment struct {
	Sliders
	UpdatedAt *Time `json:"updatedAt,omitempty"`
}

type Habits struct {
	// Ticks maps dYYYYMMDD -> habit key -> count.
	Ticks     map[string]map[string]int `json:"ticks,omitempty"`
	UpdatedAt *Time                     `json:"updatedAt,omitempty"`
}

// Stats holds the simple practice counters.
type Stats struct {
	ReflectionsCount int   `json:"reflectionsCount"`
	BreathingCount   int   `json:"breathingCount"`
	DrillsCount      int   `json:"drillsCount"`
	UpdatedAt        *Time `json:"updatedAt,omitempty"`
}

type TextIndicator struct {
	Count int      `json:"count"`
	Hits  []string `json:"hits,omitempty"`
}

type Analytics struct {
	Indicators     map[string]float64       `json:"indicators,omitempty"`
	LastTokens     []string                 `json:"lastTokens,omitempty"`
	TextIndicators map[string]TextIndicator `json:"textIndicators,omitempty"`
	UpdatedAt      *Time                    `json:"updatedAt,omitempty"`
}

type OnboardingEvent struct {
	Step      string `json:"step"`
	DwellMs   *int   `json:"dwellMs,omitempty"`
	Selection string `json:"selection,omitempty"`
	Skipped   *bool  `json:"skipped,omitempty"`
	At        *Time  `json:"at,omitempty"`
}

type Onboarding struct {
	FamiliarityMentalCoaching string            `json:"familiarityMentalCoaching,omitempty"`
	Events                    []OnboardingEvent `json:"events,omitempty"`
	UpdatedAt                 *Time             `json:"updatedAt,omitempty"`
}

type AbilityLog struct {
	LastExercise string `json:"lastExercise"`
	UpdatedAt    *Time  `json:"updatedAt,omitempty"`
}
