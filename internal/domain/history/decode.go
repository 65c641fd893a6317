package history

import (
	"math"
	"strings"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

func decodeRaw(raw datatypes.JSON) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func decodeMap(raw datatypes.JSON) map[string]any {
	m, _ := decodeRaw(raw).(map[string]any)
	return m
}

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func numOr(v any, def float64) float64 {
	if n, ok := num(v); ok {
		return n
	}
	return def
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// TagList returns the string tags, skipping anything else.
func (s *IntentSnapshot) TagList() []string {
	arr, _ := decodeRaw(s.Tags).([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if t := str(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CategoryList returns {category, count} pairs with a non-empty category.
func (s *IntentSnapshot) CategoryList() []progress.CategoryCount {
	arr, _ := decodeRaw(s.Categories).([]any)
	out := make([]progress.CategoryCount, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		c := str(m["category"])
		if c == "" {
			continue
		}
		out = append(out, progress.CategoryCount{Category: c, Count: int(numOr(m["count"], 0))})
	}
	return out
}

// UrgencyValue defaults to 0.
func (s *IntentSnapshot) UrgencyValue() float64 {
	if s.Urgency == nil || math.IsNaN(*s.Urgency) {
		return 0
	}
	return *s.Urgency
}

// Language defaults to "ro".
func (s *IntentSnapshot) Language() string {
	if l := strings.TrimSpace(s.Lang); l != "" {
		return l
	}
	return "ro"
}

// MotivationAnswers decodes the evaluation answers into a motivation block.
func (s *IntentSnapshot) MotivationAnswers() (*progress.Motivation, bool) {
	m := decodeMap(s.Evaluation)
	if m == nil {
		return nil, false
	}
	return &progress.Motivation{
		Urgency:          numOr(m["urgency"], 0),
		TimeHorizon:      str(m["timeHorizon"]),
		Determination:    numOr(m["determination"], 0),
		HoursPerWeek:     numOr(m["hoursPerWeek"], 0),
		BudgetLevel:      str(m["budgetLevel"]),
		GoalType:         str(m["goalType"]),
		EmotionalState:   str(m["emotionalState"]),
		GroupComfort:     numOr(m["groupComfort"], 0),
		LearnFromOthers:  numOr(m["learnFromOthers"], 0),
		ScheduleFit:      numOr(m["scheduleFit"], 0),
		FormatPreference: str(m["formatPreference"]),
		CloudFocusCount:  int(numOr(m["cloudFocusCount"], 0)),
	}, true
}

// HasAnswers reports whether the snapshot carries an answers object.
func (s *IntentSnapshot) HasAnswers() bool {
	return decodeMap(s.Answers) != nil
}

// Scores returns answers.scores, zero-filled when missing or malformed.
func (s *IntentSnapshot) Scores() progress.EvaluationScores {
	sc, _ := decodeMap(s.Answers)["scores"].(map[string]any)
	return progress.EvaluationScores{
		PSSTotal:      numOr(sc["pssTotal"], 0),
		GSETotal:      numOr(sc["gseTotal"], 0),
		MAASTotal:     numOr(sc["maasTotal"], 0),
		PanasPositive: numOr(sc["panasPositive"], 0),
		PanasNegative: numOr(sc["panasNegative"], 0),
		SVS:           numOr(sc["svs"], 0),
	}
}

// Knowledge returns answers.knowledge or nil.
func (s *IntentSnapshot) Knowledge() *progress.KnowledgeScores {
	k, ok := decodeMap(s.Answers)["knowledge"].(map[string]any)
	if !ok {
		return nil
	}
	return knowledgeFrom(k)
}

// StageValue prefers answers.stage, then the row stage, then "t0".
func (s *IntentSnapshot) StageValue() string {
	if st := str(decodeMap(s.Answers)["stage"]); st != "" {
		return st
	}
	if st := strings.TrimSpace(s.Stage); st != "" {
		return st
	}
	return "t0"
}

// OmniBlock decodes the stored omni block. ok is false when absent or malformed.
func (s *IntentSnapshot) OmniBlock() (*progress.Omni, bool) {
	if decodeMap(s.Omni) == nil {
		return nil, false
	}
	var o progress.Omni
	if err := json.Unmarshal(s.Omni, &o); err != nil {
		return nil, false
	}
	return &o, true
}

// Dimensions returns the sanitized dimension scores or nil.
func (s *IntentSnapshot) Dimensions() progress.DimensionScores {
	return dimensionsFrom(s.DimensionScores)
}

// Dimensions returns the sanitized dimension scores or nil.
func (j *JourneyRecord) Dimensions() progress.DimensionScores {
	return dimensionsFrom(j.DimensionScores)
}

// Accepted returns the explicit flag, else whether the choice matched the
// recommendation when both are present.
func (j *JourneyRecord) Accepted() *bool {
	if j.AcceptedRecommendation != nil {
		v := *j.AcceptedRecommendation
		return &v
	}
	rec, choice := strings.TrimSpace(j.RecommendedPath), strings.TrimSpace(j.Choice)
	if rec == "" || choice == "" {
		return nil
	}
	v := rec == choice
	return &v
}

func dimensionsFrom(raw datatypes.JSON) progress.DimensionScores {
	m := decodeMap(raw)
	if m == nil {
		return nil
	}
	in := make(map[string]float64, len(m))
	for k, v := range m {
		if n, ok := num(v); ok {
			in[k] = n
		}
	}
	return progress.NormalizeDimensions(in)
}

func knowledgeFrom(k map[string]any) *progress.KnowledgeScores {
	out := &progress.KnowledgeScores{
		Raw:     numOr(k["raw"], 0),
		Max:     numOr(k["max"], 0),
		Percent: numOr(k["percent"], 0),
	}
	if bd, ok := k["breakdown"].(map[string]any); ok {
		out.Breakdown = make(map[string]progress.ScorePart, len(bd))
		for cat, v := range bd {
			p, ok := v.(map[string]any)
			if !ok {
				continue
			}
			out.Breakdown[cat] = progress.ScorePart{
				Raw:     numOr(p["raw"], 0),
				Max:     numOr(p["max"], 0),
				Percent: numOr(p["percent"], 0),
			}
		}
	}
	return out
}

// Percent returns score.percent when it is a finite number.
func (a *KnowledgeAssessment) Percent() (float64, bool) {
	return num(decodeMap(a.Score)["percent"])
}

// Probe is one scored ability probe.
type Probe struct {
	Raw    *float64
	Scaled *float64
	MaxRaw *float64
}

// AbilityResult is the decoded result of an ability assessment.
type AbilityResult struct {
	Total  *float64
	Probes map[string]Probe
}

func optNum(v any) *float64 {
	if n, ok := num(v); ok {
		return &n
	}
	return nil
}

// Parsed decodes the result tolerantly. Malformed probes are skipped.
func (a *AbilityAssessment) Parsed() AbilityResult {
	m := decodeMap(a.Result)
	out := AbilityResult{Total: optNum(m["total"])}
	probes, _ := m["probes"].(map[string]any)
	for id, v := range probes {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if out.Probes == nil {
			out.Probes = make(map[string]Probe, len(probes))
		}
		out.Probes[id] = Probe{Raw: optNum(p["raw"]), Scaled: optNum(p["scaled"]), MaxRaw: optNum(p["maxRaw"])}
	}
	return out
}
