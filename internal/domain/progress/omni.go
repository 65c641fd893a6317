package progress

// Omni is the nested composite block. Its indices are derived values and may
// be recomputed from the raw blocks at any time.
type Omni struct {
	Scope          *OmniScope  `json:"scope,omitempty"`
	Kuno           *OmniKuno   `json:"kuno,omitempty"`
	Sensei         *OmniSensei `json:"sensei,omitempty"`
	Abil           *OmniAbil   `json:"abil,omitempty"`
	Daily          *OmniDaily  `json:"daily,omitempty"`
	Intel          *OmniIntel  `json:"intel,omitempty"`
	Flow           *OmniFlow   `json:"flow,omitempty"`
	OmniIntelScore float64     `json:"omniIntelScore"`
	OmniPoints     float64     `json:"omniPoints"`
	Level          int         `json:"level,omitempty"`
}

// Omni sub-block keys accepted by omni patches.
var OmniKeys = map[string]struct{}{
	"scope": {}, "kuno": {}, "sensei": {}, "abil": {}, "daily": {}, "intel": {},
	"flow": {}, "journal": {}, "initiation": {}, "omniIntelScore": {}, "omniPoints": {}, "level": {},
}

type DailySample struct {
	Clarity   float64 `json:"clarity"`
	Calm      float64 `json:"calm"`
	Energy    float64 `json:"energy"`
	UpdatedAt *Time   `json:"updatedAt,omitempty"`
}

type OmniScope struct {
	GoalDescription          string                 `json:"goalDescription,omitempty"`
	MainPain                 string                 `json:"mainPain,omitempty"`
	IdealDay                 string                 `json:"idealDay,omitempty"`
	WordCount                int                    `json:"wordCount,omitempty"`
	Tags                     []string               `json:"tags,omitempty"`
	DirectionMotivationIndex float64                `json:"directionMotivationIndex"`
	MotivationIndex          float64                `json:"motivationIndex,omitempty"`
	History                  map[string]DailySample `json:"history,omitempty"`
	UpdatedAt                *Time                  `json:"updatedAt,omitempty"`
}

type LessonPerformance struct {
	RecentScores    []float64 `json:"recentScores"`
	RecentTimeSpent []float64 `json:"recentTimeSpent"`
	DifficultyBias  float64   `json:"difficultyBias"`
}

type LessonProgress struct {
	CompletedIDs []string           `json:"completedIds,omitempty"`
	LastUpdated  *Time              `json:"lastUpdated,omitempty"`
	XP           float64            `json:"xp,omitempty"`
	Performance  *LessonPerformance `json:"performance,omitempty"`
}

type KunoExam struct {
	LastTakenAt int64              `json:"lastTakenAt,omitempty"`
	Score       float64            `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty"`
}

type KunoGlobal struct {
	TotalXP           float64 `json:"totalXp"`
	CompletedLessons  int     `json:"completedLessons"`
	CurrentDifficulty string  `json:"currentDifficulty,omitempty"`
}

type OmniKuno struct {
	CompletedTests        int                       `json:"completedTests"`
	TotalTestsAvailable   int                       `json:"totalTestsAvailable"`
	Scores                map[string]float64        `json:"scores,omitempty"`
	KnowledgeIndex        float64                   `json:"knowledgeIndex"`
	AveragePercent        float64                   `json:"averagePercent,omitempty"`
	RunsCount             int                       `json:"runsCount,omitempty"`
	GeneralIndex          float64                   `json:"generalIndex,omitempty"`
	LessonsCompletedCount int                       `json:"lessonsCompletedCount,omitempty"`
	MasteryByCategory     map[string]float64        `json:"masteryByCategory,omitempty"`
	Lessons               map[string]LessonProgress `json:"lessons,omitempty"`
	Modules               map[string]LessonProgress `json:"modules,omitempty"`
	RecommendedModuleID   string                    `json:"recommendedModuleId,omitempty"`
	Exam                  *KunoExam                 `json:"exam,omitempty"`
	Global                *KunoGlobal               `json:"global,omitempty"`
}

type OmniSensei struct {
	Unlocked             bool             `json:"unlocked"`
	ActiveQuests         []map[string]any `json:"activeQuests,omitempty"`
	CompletedQuestsCount int              `json:"completedQuestsCount"`
}

type OmniAbil struct {
	Unlocked                bool    `json:"unlocked"`
	ExercisesCompletedCount int     `json:"exercisesCompletedCount"`
	SkillsIndex             float64 `json:"skillsIndex"`
	PracticeIndex           float64 `json:"practiceIndex,omitempty"`
	RunsCount               int     `json:"runsCount,omitempty"`
}

type OmniDaily struct {
	StreakDays      int                `json:"streakDays,omitempty"`
	LastCheckinDate string             `json:"lastCheckinDate,omitempty"`
	Today           *Sliders           `json:"today,omitempty"`
	History         map[string]Sliders `json:"history,omitempty"`
}

type OmniIntel struct {
	Unlocked         bool    `json:"unlocked"`
	EvaluationsCount int     `json:"evaluationsCount"`
	ConsistencyIndex float64 `json:"consistencyIndex"`
}

type OmniFlow struct {
	FlowIndex     float64 `json:"flowIndex"`
	StreakCurrent int     `json:"streakCurrent"`
	StreakBest    int     `json:"streakBest"`
}
