package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IntentSnapshot is one submission of the initial intent questionnaire.
// ProfileID may be null for snapshots written before profiles existed; those
// are matched by OwnerUID.
type IntentSnapshot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID *string   `gorm:"column:profile_id;index" json:"profile_id,omitempty"`
	OwnerUID  string    `gorm:"column:owner_uid;index" json:"owner_uid,omitempty"`

	Tags            datatypes.JSON `gorm:"column:tags" json:"tags,omitempty"`
	Categories      datatypes.JSON `gorm:"column:categories" json:"categories,omitempty"`
	Urgency         *float64       `gorm:"column:urgency" json:"urgency,omitempty"`
	Lang            string         `gorm:"column:lang" json:"lang,omitempty"`
	FirstExpression string         `gorm:"column:first_expression" json:"first_expression,omitempty"`
	FirstCategory   string         `gorm:"column:first_category" json:"first_category,omitempty"`
	Stage           string         `gorm:"column:stage" json:"stage,omitempty"`

	// Evaluation holds the motivation answers.
	Evaluation datatypes.JSON `gorm:"column:evaluation" json:"evaluation,omitempty"`
	// Answers holds {scores, knowledge, stage}.
	Answers datatypes.JSON `gorm:"column:answers" json:"answers,omitempty"`
	Omni    datatypes.JSON `gorm:"column:omni" json:"omni,omitempty"`

	Recommendation          string         `gorm:"column:recommendation" json:"recommendation,omitempty"`
	RecommendationReasonKey string         `gorm:"column:recommendation_reason_key" json:"recommendation_reason_key,omitempty"`
	DimensionScores         datatypes.JSON `gorm:"column:dimension_scores" json:"dimension_scores,omitempty"`

	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (IntentSnapshot) TableName() string { return "intent_snapshots" }

// JourneyRecord is a recorded path choice.
type JourneyRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID string    `gorm:"column:profile_id;not null;index" json:"profile_id"`

	RecommendedPath         string         `gorm:"column:recommended_path" json:"recommended_path,omitempty"`
	Choice                  string         `gorm:"column:choice" json:"choice,omitempty"`
	AcceptedRecommendation  *bool          `gorm:"column:accepted_recommendation" json:"accepted_recommendation,omitempty"`
	RecommendationReasonKey string         `gorm:"column:recommendation_reason_key" json:"recommendation_reason_key,omitempty"`
	DimensionScores         datatypes.JSON `gorm:"column:dimension_scores" json:"dimension_scores,omitempty"`

	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (JourneyRecord) TableName() string { return "journey_records" }

// KnowledgeAssessment is one scored knowledge quiz run. Score holds
// {raw, max, percent, breakdown}.
type KnowledgeAssessment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID string         `gorm:"column:profile_id;not null;index" json:"profile_id"`
	Score     datatypes.JSON `gorm:"column:score" json:"score,omitempty"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (KnowledgeAssessment) TableName() string { return "knowledge_assessments" }

// AbilityAssessment is one scored ability assessment run. Result holds
// {total, probes: {id: {raw, scaled, maxRaw}}}.
type AbilityAssessment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID string         `gorm:"column:profile_id;not null;index" json:"profile_id"`
	Result    datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AbilityAssessment) TableName() string { return "ability_assessments" }

// Models lists every history table for migrations.
func Models() []any {
	return []any{&IntentSnapshot{}, &JourneyRecord{}, &KnowledgeAssessment{}, &AbilityAssessment{}}
}
