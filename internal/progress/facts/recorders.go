package facts

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/progress/metrics"
)

type IntentInput struct {
	Tags            []string                 `json:"tags" validate:"max=64,dive,required"`
	Categories      []progress.CategoryCount `json:"categories" validate:"max=64"`
	Urgency         float64                  `json:"urgency"`
	Lang            string                   `json:"lang" validate:"omitempty,oneof=ro en"`
	FirstExpression string                   `json:"firstExpression,omitempty"`
	FirstCategory   string                   `json:"firstCategory,omitempty"`
	SelectionTotal  *int                     `json:"selectionTotal,omitempty"`
	TopCategory     string                   `json:"topCategory,omitempty"`
	TopShare        *float64                 `json:"topShare,omitempty"`
}

// Intent fills the derived selection fields when the caller left them out.
// Urgency is clamped to 0-10 and the first expression truncated.
func (in IntentInput) Intent() progress.Intent {
	out := progress.Intent{
		Tags:            append([]string{}, in.Tags...),
		Categories:      append([]progress.CategoryCount{}, in.Categories...),
		Urgency:         progress.Clamp(in.Urgency, 0, 10),
		Lang:            in.Lang,
		FirstExpression: progress.TruncateRunes(strings.TrimSpace(in.FirstExpression), progress.MaxTextRunes),
		FirstCategory:   in.FirstCategory,
		TopCategory:     in.TopCategory,
	}
	if out.Lang == "" {
		out.Lang = "ro"
	}
	total := 0
	for _, c := range in.Categories {
		total += c.Count
	}
	if in.SelectionTotal != nil {
		out.SelectionTotal = max(0, *in.SelectionTotal)
	} else if total > 0 {
		out.SelectionTotal = total
	} else {
		out.SelectionTotal = len(in.Tags)
	}
	if out.TopCategory == "" {
		out.TopCategory = topCategory(in.Categories)
	}
	if in.TopShare != nil {
		out.TopShare = progress.Clamp(*in.TopShare, 0, 1)
	} else if total > 0 {
		for _, c := range in.Categories {
			if c.Category == out.TopCategory {
				out.TopShare = float64(c.Count) / float64(total)
				break
			}
		}
	}
	return out
}

// RecordIntent stores the intent block and, once written, upserts the
// derived active mission onto the owner's profile.
func (s *Service) RecordIntent(ctx context.Context, ownerID string, in IntentInput) progress.Result {
	if r, bad := invalid("facts.intent", in); bad {
		return r
	}
	intent := in.Intent()
	res := s.record(ctx, "intent", ownerID, progress.IntentPatch{Intent: intent})
	owner, ok := res.Owner()
	if !res.Written() || !ok {
		return res
	}
	if mission, ok := DeriveMission(intent); ok {
		s.upsertMission(ctx, owner, mission)
	}
	return res
}

func (s *Service) upsertMission(ctx context.Context, owner string, m ActiveMission) {
	if s.profiles == nil {
		return
	}
	doc := docstore.Document{"activeMission": docstore.Document{
		"moduleId":              m.ModuleID,
		"title":                 m.Title,
		"source":                m.Source,
		progress.FieldUpdatedAt: docstore.ServerTimestamp(),
	}}
	if err := s.profiles.MergeSet(context.WithoutCancel(ctxutil.Default(ctx)), progress.CollectionProfiles, owner, doc); err != nil {
		s.log.Warn("active mission upsert failed", "owner", owner, "error", err)
	}
}

type MotivationInput struct {
	Urgency          float64 `json:"urgency"`
	TimeHorizon      string  `json:"timeHorizon,omitempty"`
	Determination    float64 `json:"determination"`
	HoursPerWeek     float64 `json:"hoursPerWeek"`
	BudgetLevel      string  `json:"budgetLevel,omitempty" validate:"omitempty,oneof=low medium high"`
	GoalType         string  `json:"goalType,omitempty"`
	EmotionalState   string  `json:"emotionalState,omitempty"`
	GroupComfort     float64 `json:"groupComfort"`
	LearnFromOthers  float64 `json:"learnFromOthers"`
	ScheduleFit      float64 `json:"scheduleFit"`
	FormatPreference string  `json:"formatPreference,omitempty"`
	CloudFocusCount  int     `json:"cloudFocusCount"`
}

// RecordMotivation clamps every answer into its scale: urgency and the
// comfort sliders 0-10, determination 0-5, hours 0-168.
func (s *Service) RecordMotivation(ctx context.Context, ownerID string, in MotivationInput) progress.Result {
	if r, bad := invalid("facts.motivation", in); bad {
		return r
	}
	return s.record(ctx, "motivation", ownerID, progress.MotivationPatch{Motivation: progress.Motivation{
		Urgency:          progress.Clamp(in.Urgency, 0, 10),
		TimeHorizon:      in.TimeHorizon,
		Determination:    progress.Clamp(in.Determination, 0, 5),
		HoursPerWeek:     progress.Clamp(in.HoursPerWeek, 0, 168),
		BudgetLevel:      in.BudgetLevel,
		GoalType:         in.GoalType,
		EmotionalState:   in.EmotionalState,
		GroupComfort:     progress.Clamp(in.GroupComfort, 0, 10),
		LearnFromOthers:  progress.Clamp(in.LearnFromOthers, 0, 10),
		ScheduleFit:      progress.Clamp(in.ScheduleFit, 0, 10),
		FormatPreference: in.FormatPreference,
		CloudFocusCount:  max(0, in.CloudFocusCount),
	}})
}

type EvaluationInput struct {
	Scores     progress.EvaluationScores `json:"scores"`
	Knowledge  *progress.KnowledgeScores `json:"knowledge,omitempty"`
	StageValue string                    `json:"stageValue" validate:"required"`
	Lang       string                    `json:"lang" validate:"required,oneof=ro en"`
}

func (s *Service) RecordEvaluation(ctx context.Context, ownerID string, in EvaluationInput) progress.Result {
	if r, bad := invalid("facts.evaluation", in); bad {
		return r
	}
	return s.record(ctx, "evaluation", ownerID, progress.EvaluationPatch{Evaluation: progress.Evaluation{
		Scores:     in.Scores,
		Knowledge:  in.Knowledge,
		StageValue: in.StageValue,
		Lang:       in.Lang,
	}})
}

type RecommendationInput struct {
	SuggestedPath string `json:"suggestedPath,omitempty"`
	ReasonKey     string `json:"reasonKey,omitempty"`
	SelectedPath  string `json:"selectedPath,omitempty"`
	// Path is accepted as an alias of SelectedPath.
	Path                   string             `json:"path,omitempty"`
	AcceptedRecommendation *bool              `json:"acceptedRecommendation,omitempty"`
	DimensionScores        map[string]float64 `json:"dimensionScores,omitempty"`
	AlgoVersion            string             `json:"algoVersion,omitempty"`
	FormatPreference       string             `json:"formatPreference,omitempty"`
	BadgeLabel             string             `json:"badgeLabel,omitempty"`
}

// Accepted resolves acceptance: an explicit flag wins, otherwise it is
// inferred when both a suggestion and a selection are present.
func Accepted(explicit *bool, suggested, selected string) *bool {
	if explicit != nil {
		v := *explicit
		return &v
	}
	if suggested == "" || selected == "" {
		return nil
	}
	v := suggested == selected
	return &v
}

func (s *Service) RecordRecommendation(ctx context.Context, ownerID string, in RecommendationInput) progress.Result {
	selected := in.SelectedPath
	if selected == "" {
		selected = in.Path
	}
	return s.record(ctx, "recommendation", ownerID, progress.RecommendationPatch{
		Recommendation: progress.Recommendation{
			SuggestedPath:          in.SuggestedPath,
			ReasonKey:              in.ReasonKey,
			SelectedPath:           selected,
			AcceptedRecommendation: Accepted(in.AcceptedRecommendation, in.SuggestedPath, selected),
			DimensionScores:        progress.NormalizeDimensions(in.DimensionScores),
			AlgoVersion:            in.AlgoVersion,
			FormatPreference:       in.FormatPreference,
			BadgeLabel:             in.BadgeLabel,
		},
		Selected: selected != "",
	})
}

type QuestsInput struct {
	Quests []progress.Quest `json:"quests" validate:"max=50,dive"`
}

func (s *Service) RecordQuests(ctx context.Context, ownerID string, in QuestsInput) progress.Result {
	if r, bad := invalid("facts.quests", in); bad {
		return r
	}
	items := make([]progress.Quest, 0, len(in.Quests))
	for _, q := range in.Quests {
		if strings.TrimSpace(q.ID) == "" {
			return progress.Invalid(progress.Validation("facts.quests", "quest without id"))
		}
		items = append(items, q)
	}
	return s.record(ctx, "quests", ownerID, progress.QuestsPatch{Items: items})
}

func (s *Service) RecordQuestCompletion(ctx context.Context, ownerID string) progress.Result {
	return s.record(ctx, "quest_completion", ownerID, progress.QuestCompletionPatch{})
}

// RecordPracticeEvent bumps one practice counter; count below 1 counts as 1.
func (s *Service) RecordPracticeEvent(ctx context.Context, ownerID string, typ progress.PracticeType, count int) progress.Result {
	if !typ.Valid() {
		return progress.Invalid(progress.Validation("facts.practice_event", "unknown practice type %q", typ))
	}
	if count < 1 {
		count = 1
	}
	return s.record(ctx, "practice_event", ownerID, progress.PracticeCounterPatch{Type: typ, Count: count})
}

// RecordPracticeSession appends one timed session. A zero start means now;
// negative durations are stored as 0.
func (s *Service) RecordPracticeSession(ctx context.Context, ownerID string, typ progress.PracticeType, startedAt time.Time, durationSec float64) progress.Result {
	if !typ.Valid() {
		return progress.Invalid(progress.Validation("facts.practice_session", "unknown practice type %q", typ))
	}
	now := s.now().UTC()
	if startedAt.IsZero() {
		startedAt = now
	}
	dur := 0
	if !math.IsNaN(durationSec) && !math.IsInf(durationSec, 0) && durationSec > 0 {
		dur = int(math.Floor(durationSec))
	}
	return s.record(ctx, "practice_session", ownerID, progress.PracticeSessionPatch{Session: progress.PracticeSession{
		Type:        typ,
		StartedAt:   progress.Time{Time: startedAt.UTC()},
		EndedAt:     progress.At(now),
		DurationSec: dur,
	}})
}

type KnowledgeQuizInput struct {
	Scores progress.KnowledgeScores `json:"scores"`
	// TakenAt defaults to now.
	TakenAt time.Time `json:"takenAt"`
	// History holds earlier quiz percentages, oldest first. When present the
	// running average and run count are recomputed including this quiz.
	History []float64 `json:"history,omitempty"`
}

func (s *Service) RecordKnowledgeQuiz(ctx context.Context, ownerID string, in KnowledgeQuizInput) progress.Result {
	p := in.Scores.Percent
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 100 {
		return progress.Invalid(progress.Validation("facts.knowledge_quiz", "percent out of range"))
	}
	taken := in.TakenAt
	if taken.IsZero() {
		taken = s.now()
	}
	patch := progress.KnowledgeQuizPatch{Scores: in.Scores, TakenAt: taken}
	if in.History != nil {
		agg := metrics.Kuno(append(append([]float64{}, in.History...), p), metrics.DefaultAlpha)
		avg, runs := agg.EWMA, agg.RunsCount
		patch.AveragePercent, patch.RunsCount = &avg, &runs
	}
	return s.record(ctx, "knowledge_quiz", ownerID, patch)
}

type LessonProgressInput struct {
	ModuleID     string                      `json:"moduleId" validate:"required"`
	CompletedIDs []string                    `json:"completedIds" validate:"max=500"`
	Performance  *progress.LessonPerformance `json:"performance,omitempty"`
}

func (s *Service) RecordKunoLessonProgress(ctx context.Context, ownerID string, in LessonProgressInput) progress.Result {
	if r, bad := invalid("facts.lessons", in); bad {
		return r
	}
	if strings.Contains(in.ModuleID, ".") {
		return progress.Invalid(progress.Validation("facts.lessons", "module id must not contain dots"))
	}
	ids := append([]string{}, in.CompletedIDs...)
	sort.Strings(ids)
	return s.record(ctx, "lessons", ownerID, progress.KunoLessonPatch{
		ModuleID:     in.ModuleID,
		CompletedIDs: compact(ids),
		Performance:  in.Performance,
	})
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, v := range sorted {
		if v == "" || (i > 0 && v == sorted[i-1]) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// RecordOmniPatch deep-merges fields into the omni block.
func (s *Service) RecordOmniPatch(ctx context.Context, ownerID string, fields map[string]any) progress.Result {
	if len(fields) == 0 {
		return progress.Invalid(progress.Validation("facts.omni", "empty omni patch"))
	}
	return s.record(ctx, "omni", ownerID, progress.OmniPatch{Fields: fields})
}

type SlidersInput struct {
	Energy     float64 `json:"energy"`
	Stress     float64 `json:"stress"`
	Sleep      float64 `json:"sleep"`
	Clarity    float64 `json:"clarity"`
	Confidence float64 `json:"confidence"`
	Focus      float64 `json:"focus"`
}

// sliders clamps every value to 0-10.
func (in SlidersInput) sliders() progress.Sliders {
	c := func(v float64) float64 { return progress.Clamp(v, 0, 10) }
	return progress.Sliders{
		Energy: c(in.Energy), Stress: c(in.Stress), Sleep: c(in.Sleep),
		Clarity: c(in.Clarity), Confidence: c(in.Confidence), Focus: c(in.Focus),
	}
}

// RecordQuickAssessment stores the sliders and today's derived scope sample.
func (s *Service) RecordQuickAssessment(ctx context.Context, ownerID string, in SlidersInput) progress.Result {
	return s.record(ctx, "quick_assessment", ownerID, progress.QuickAssessmentPatch{Sliders: in.sliders(), Day: s.now()})
}

func (s *Service) RecordDailyCheckin(ctx context.Context, ownerID string, in SlidersInput) progress.Result {
	return s.record(ctx, "checkin", ownerID, progress.DailyCheckinPatch{Sliders: in.sliders(), Day: s.now()})
}

func (s *Service) RecordAbilityPractice(ctx context.Context, ownerID string, exercise string) progress.Result {
	exercise = strings.TrimSpace(exercise)
	if exercise == "" {
		return progress.Invalid(progress.Validation("facts.ability_practice", "exercise is required"))
	}
	return s.record(ctx, "ability_practice", ownerID, progress.AbilityPracticePatch{Exercise: exercise})
}

type AbilityAssessmentInput struct {
	// History is every ability assessment so far, including the new one.
	History            []metrics.AbilityAssessment `json:"history" validate:"max=500"`
	ExercisesCompleted int                         `json:"exercisesCompleted"`
	SkillsIndex        *float64                    `json:"skillsIndex,omitempty"`
}

// RecordAbilityAssessment recomputes the practice index from the full
// assessment history. Without an explicit skills index the assessment
// mean is used.
func (s *Service) RecordAbilityAssessment(ctx context.Context, ownerID string, in AbilityAssessmentInput) progress.Result {
	if r, bad := invalid("facts.ability_assessment", in); bad {
		return r
	}
	idx := metrics.Ability(in.History, max(0, in.ExercisesCompleted))
	patch := progress.AbilityAssessmentPatch{PracticeIndex: idx.PracticeIndex, RunsCount: idx.RunsCount}
	switch {
	case in.SkillsIndex != nil:
		v := progress.Clamp(*in.SkillsIndex, 0, 100)
		patch.SkillsIndex = &v
	case idx.RunsCount > 0:
		v := idx.AssessmentMean
		patch.SkillsIndex = &v
	}
	return s.record(ctx, "ability_assessment", ownerID, patch)
}

func (s *Service) RecordConsistencyPing(ctx context.Context, ownerID string) progress.Result {
	return s.record(ctx, "consistency", ownerID, progress.ConsistencyPingPatch{})
}

type TextSignalInput struct {
	Indicators     map[string]float64                `json:"indicators"`
	Tokens         []string                          `json:"tokens,omitempty"`
	TextIndicators map[string]progress.TextIndicator `json:"textIndicators,omitempty"`
}

var textIndicatorKeys = map[string]struct{}{
	"calm": {}, "focus": {}, "energy": {}, "relationships": {}, "performance": {},
}

// RecordTextSignal bumps the known indicator counters; unknown keys are
// ignored.
func (s *Service) RecordTextSignal(ctx context.Context, ownerID string, in TextSignalInput) progress.Result {
	indicators := make(map[string]float64, len(in.Indicators))
	for k, v := range in.Indicators {
		if _, ok := textIndicatorKeys[k]; ok {
			indicators[k] = v
		}
	}
	return s.record(ctx, "text_signal", ownerID, progress.TextSignalPatch{
		Indicators:     indicators,
		Tokens:         in.Tokens,
		TextIndicators: in.TextIndicators,
	})
}

type OnboardingInput struct {
	Familiarity string   `json:"familiarity,omitempty" validate:"omitempty,oneof=knew heard unknown"`
	Step        string   `json:"step,omitempty"`
	DwellMs     *float64 `json:"dwellMs,omitempty"`
	Selection   string   `json:"selection,omitempty"`
	Skipped     *bool    `json:"skipped,omitempty"`
}

// RecordOnboardingEvent stores the coaching familiarity and/or appends a
// wizard step event.
func (s *Service) RecordOnboardingEvent(ctx context.Context, ownerID string, in OnboardingInput) progress.Result {
	if r, bad := invalid("facts.onboarding", in); bad {
		return r
	}
	patch := progress.OnboardingPatch{Familiarity: in.Familiarity}
	if in.Step != "" || in.DwellMs != nil || in.Selection != "" || in.Skipped != nil {
		ev := &progress.OnboardingEvent{
			Step:      strings.TrimSpace(in.Step),
			Selection: in.Selection,
			Skipped:   in.Skipped,
		}
		if ev.Step == "" {
			ev.Step = "unknown"
		}
		if in.DwellMs != nil && !math.IsNaN(*in.DwellMs) && !math.IsInf(*in.DwellMs, 0) {
			d := int(math.Max(0, math.Round(*in.DwellMs)))
			ev.DwellMs = &d
		}
		patch.Event = ev
	}
	return s.record(ctx, "onboarding", ownerID, patch)
}
