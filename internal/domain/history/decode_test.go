package history

import (
	"testing"

	"gorm.io/datatypes"
)

func TestSnapshotDecodingToleratesMalformedFields(t *testing.T) {
	s := &IntentSnapshot{
		Tags:            datatypes.JSON(`["calm", 3, " focus "]`),
		Categories:      datatypes.JSON(`[{"category":"stress","count":2},{"count":1},"bad"]`),
		Evaluation:      datatypes.JSON(`not json`),
		Answers:         datatypes.JSON(`{"scores":{"pssTotal":12},"knowledge":{"percent":64,"breakdown":{"a":{"raw":1,"max":2,"percent":50}}}}`),
		Stage:           "t1",
		DimensionScores: datatypes.JSON(`{"emotional_balance":4,"focus":"x","bogus":9}`),
	}

	if tags := s.TagList(); len(tags) != 2 || tags[1] != "focus" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if cats := s.CategoryList(); len(cats) != 1 || cats[0].Count != 2 {
		t.Fatalf("unexpected categories %v", cats)
	}
	if _, ok := s.MotivationAnswers(); ok {
		t.Fatalf("expected malformed evaluation to be skipped")
	}
	if sc := s.Scores(); sc.PSSTotal != 12 || sc.SVS != 0 {
		t.Fatalf("unexpected scores %+v", sc)
	}
	if k := s.Knowledge(); k == nil || k.Percent != 64 || k.Breakdown["a"].Percent != 50 {
		t.Fatalf("unexpected knowledge %+v", k)
	}
	if st := s.StageValue(); st != "t1" {
		t.Fatalf("expected row stage fallback, got %q", st)
	}
	if s.Language() != "ro" || s.UrgencyValue() != 0 {
		t.Fatalf("unexpected defaults")
	}
	if _, ok := s.OmniBlock(); ok {
		t.Fatalf("expected missing omni")
	}
	d := s.Dimensions()
	if d == nil || d["emotional_balance"] != 4 {
		t.Fatalf("unexpected dimensions %v", d)
	}
}

func TestAbilityResultParsing(t *testing.T) {
	a := &AbilityAssessment{Result: datatypes.JSON(`{"total":55,"probes":{"p1":{"raw":3,"maxRaw":4},"p2":"bad","p3":{"scaled":80}}}`)}
	r := a.Parsed()
	if r.Total == nil || *r.Total != 55 {
		t.Fatalf("unexpected total %v", r.Total)
	}
	if len(r.Probes) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(r.Probes))
	}
	if p := r.Probes["p3"]; p.Scaled == nil || *p.Scaled != 80 {
		t.Fatalf("unexpected probe %+v", p)
	}
}
