package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/docstore/testutil"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	historyrepo "github.com/yungbote/progressfacts/internal/data/repos/history"
	types "github.com/yungbote/progressfacts/internal/domain/history"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

const owner = "owner-1"

var (
	t1  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2  = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
)

type countingReader struct {
	historyrepo.Reader
	snapshots int
}

func (c *countingReader) LatestIntentSnapshot(dbc dbctx.Context, ownerID string) (*types.IntentSnapshot, error) {
	c.snapshots++
	return c.Reader.LatestIntentSnapshot(dbc, ownerID)
}

type runSpy struct {
	statuses []string
	skipped  map[string]int
}

func (s *runSpy) IncRun(status string) { s.statuses = append(s.statuses, status) }

func (s *runSpy) IncSkipped(source string, n int) {
	if s.skipped == nil {
		s.skipped = map[string]int{}
	}
	s.skipped[source] += n
}

func seedHistory(t *testing.T) *historyrepo.MemoryRepo {
	t.Helper()
	repo := historyrepo.NewMemoryRepo()
	dbc := dbctx.Context{Ctx: context.Background()}
	pid := owner
	urgency := 7.0
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}
	must(repo.AppendIntentSnapshot(dbc, &types.IntentSnapshot{
		ProfileID:  &pid,
		Tags:       datatypes.JSON(`["claritate","energie","somn"]`),
		Categories: datatypes.JSON(`[{"category":"focus","count":2},{"category":"energy","count":1}]`),
		Urgency:    &urgency,
		Lang:       "ro",
		Evaluation: datatypes.JSON(`{"determination":4,"hoursPerWeek":3,"budgetLevel":"medium"}`),
		Answers:    datatypes.JSON(`{"scores":{"pssTotal":20},"knowledge":{"percent":60}}`),
		Timestamp:  t1,
	}))
	must(repo.AppendJourney(dbc, &types.JourneyRecord{
		ProfileID:       owner,
		RecommendedPath: "individual",
		Choice:          "group",
		Timestamp:       t1.Add(time.Hour),
	}))
	must(repo.AppendKnowledgeAssessment(dbc, &types.KnowledgeAssessment{
		ProfileID: owner, Score: datatypes.JSON(`{"percent":50}`), Timestamp: t1,
	}))
	must(repo.AppendKnowledgeAssessment(dbc, &types.KnowledgeAssessment{
		ProfileID: owner, Score: datatypes.JSON(`{"percent":"bad"}`), Timestamp: t1.Add(time.Minute),
	}))
	must(repo.AppendKnowledgeAssessment(dbc, &types.KnowledgeAssessment{
		ProfileID: owner, Score: datatypes.JSON(`{"percent":100}`), Timestamp: t2,
	}))
	must(repo.AppendAbilityAssessment(dbc, &types.AbilityAssessment{
		ProfileID: owner, Result: datatypes.JSON(`{"total":80}`), Timestamp: t2,
	}))
	return repo
}

func newReconciler(store docstore.Store, m mirror.Mirror, h historyrepo.Reader, opts ...Option) *Reconciler {
	opts = append([]Option{WithNow(func() time.Time { return now })}, opts...)
	return New(store, m, h, logger.Nop(), opts...)
}

func loadFact(t *testing.T, store docstore.Store) progress.ProgressFact {
	t.Helper()
	doc, err := store.Get(context.Background(), progress.CollectionFacts, owner)
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	var f progress.ProgressFact
	if err := docstore.Decode(doc, &f); err != nil {
		t.Fatalf("decode aggregate: %v", err)
	}
	return f
}

func seed(t *testing.T, store docstore.Store, collection string, doc docstore.Document) {
	t.Helper()
	if err := store.MergeSet(context.Background(), collection, owner, doc); err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCompleteAggregateIsReturnedUnchanged(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	seed(t, store, progress.CollectionFacts, docstore.Document{
		"intent":     map[string]any{"urgency": 5},
		"motivation": map[string]any{"determination": 2},
		"evaluation": map[string]any{"stageValue": "t1"},
	})
	reader := &countingReader{Reader: seedHistory(t)}
	spy := &runSpy{}
	r := newReconciler(store, mirror.NewStoreMirror(store), reader, WithHooks(spy))

	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rep.Status != StatusComplete {
		t.Fatalf("expected complete, got %q", rep.Status)
	}
	if reader.snapshots != 0 {
		t.Fatalf("history read on a complete aggregate")
	}
	if store.MergeCount() != 1 {
		t.Fatalf("expected only the seed write, got %d", store.MergeCount())
	}
	if rep.Fact == nil || rep.Fact.Evaluation.StageValue != "t1" {
		t.Fatalf("expected stored fact in report, got %#v", rep.Fact)
	}
	if len(spy.statuses) != 1 || spy.statuses[0] != StatusComplete {
		t.Fatalf("hooks: %v", spy.statuses)
	}
}

func TestNoHistoryWritesNothing(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	r := newReconciler(store, mirror.NewStoreMirror(store), historyrepo.NewMemoryRepo())
	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rep.Status != StatusNoHistory || rep.Fact != nil {
		t.Fatalf("unexpected report %#v", rep)
	}
	if store.MergeCount() != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestOwnerRequired(t *testing.T) {
	r := newReconciler(docstore.NewMemoryStore(), nil, historyrepo.NewMemoryRepo())
	_, err := r.Reconcile(context.Background(), " ")
	if !progress.IsCode(err, progress.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRebuildFromHistory(t *testing.T) {
	store := docstore.NewMemoryStore()
	spy := &runSpy{}
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t), WithHooks(spy))

	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rep.Status != StatusReconciled {
		t.Fatalf("expected reconciled, got %q", rep.Status)
	}
	if spy.skipped["knowledge"] != 1 {
		t.Fatalf("expected the malformed knowledge row counted, got %v", spy.skipped)
	}
	for _, b := range []string{"intent", "motivation", "evaluation", "recommendation", "omni"} {
		if !contains(rep.Rebuilt, b) {
			t.Fatalf("expected %s rebuilt, got %v", b, rep.Rebuilt)
		}
	}

	f := loadFact(t, store)
	if f.Intent == nil || f.Intent.Urgency != 7 || len(f.Intent.Tags) != 3 || f.Intent.TopCategory != "focus" {
		t.Fatalf("intent: %#v", f.Intent)
	}
	if !f.Intent.UpdatedAt.Equal(t1) {
		t.Fatalf("intent updatedAt should be the snapshot time, got %v", f.Intent.UpdatedAt)
	}
	if f.Motivation == nil || f.Motivation.Determination != 4 || f.Motivation.BudgetLevel != "medium" {
		t.Fatalf("motivation: %#v", f.Motivation)
	}
	if f.Evaluation == nil || f.Evaluation.Scores.PSSTotal != 20 || f.Evaluation.StageValue != "t0" {
		t.Fatalf("evaluation: %#v", f.Evaluation)
	}
	rec := f.Recommendation
	if rec == nil || rec.SuggestedPath != "individual" || rec.SelectedPath != "group" {
		t.Fatalf("recommendation: %#v", rec)
	}
	if rec.AcceptedRecommendation == nil || *rec.AcceptedRecommendation {
		t.Fatalf("expected acceptance inferred false, got %v", rec.AcceptedRecommendation)
	}

	o := f.Omni
	if o == nil || o.Kuno == nil || o.Abil == nil || o.Scope == nil || o.Intel == nil {
		t.Fatalf("omni not synthesized: %#v", o)
	}
	if o.Kuno.RunsCount != 2 || o.Kuno.AveragePercent != 70 || o.Kuno.KnowledgeIndex != 100 {
		t.Fatalf("kuno: %#v", o.Kuno)
	}
	if o.Kuno.GeneralIndex != 49 {
		t.Fatalf("general index: %v", o.Kuno.GeneralIndex)
	}
	if o.Abil.PracticeIndex != 56 || o.Abil.RunsCount != 1 || o.Abil.SkillsIndex != 80 {
		t.Fatalf("abil: %#v", o.Abil)
	}
	if o.Scope.MotivationIndex != 67 || o.Scope.DirectionMotivationIndex != 67 {
		t.Fatalf("scope: %#v", o.Scope)
	}
	if o.Intel.ConsistencyIndex != 10 || o.OmniIntelScore != 30 {
		t.Fatalf("intel: %#v score=%v", o.Intel, o.OmniIntelScore)
	}

	mirrored, err := mirror.NewStoreMirror(store).Load(context.Background(), owner)
	if err != nil {
		t.Fatalf("mirror load: %v", err)
	}
	if _, ok := docstore.AsMap(mirrored["intent"]); !ok {
		t.Fatalf("mirror missing intent: %#v", mirrored)
	}
}

func TestNewerStoredBlockWins(t *testing.T) {
	store := docstore.NewMemoryStore()
	seed(t, store, progress.CollectionFacts, docstore.Document{
		"evaluation": map[string]any{"stageValue": "t2", "updatedAt": t2.Format(time.RFC3339)},
		"motivation": map[string]any{
			"determination": 1,
			"goalType":      "old",
			"updatedAt":     t1.Add(-time.Hour).Format(time.RFC3339),
		},
	})
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))
	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !contains(rep.Kept, "evaluation") || !contains(rep.Rebuilt, "motivation") {
		t.Fatalf("kept=%v rebuilt=%v", rep.Kept, rep.Rebuilt)
	}
	f := loadFact(t, store)
	if f.Evaluation.StageValue != "t2" || !f.Evaluation.UpdatedAt.Equal(t2) {
		t.Fatalf("newer evaluation overwritten: %#v", f.Evaluation)
	}
	if f.Motivation.Determination != 4 {
		t.Fatalf("older motivation kept: %#v", f.Motivation)
	}
	if f.Motivation.GoalType != "" {
		t.Fatalf("rebuilt block should replace the stale one in full, goalType=%q", f.Motivation.GoalType)
	}
}

func TestMirrorIsFallbackSource(t *testing.T) {
	store := docstore.NewMemoryStore()
	seed(t, store, progress.CollectionProfiles, docstore.Document{
		progress.MirrorField: map[string]any{
			"evaluation": map[string]any{"stageValue": "t3", "updatedAt": t2.Format(time.RFC3339)},
		},
	})
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))
	if _, err := r.Reconcile(context.Background(), owner); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if f := loadFact(t, store); f.Evaluation == nil || f.Evaluation.StageValue != "t3" {
		t.Fatalf("mirror copy not carried into the aggregate: %#v", f.Evaluation)
	}
}

func session(typ string, at time.Time) map[string]any {
	return map[string]any{"type": typ, "startedAt": at.Format(time.RFC3339), "durationSec": 600}
}

func TestPracticeSessionsMergedByKey(t *testing.T) {
	store := docstore.NewMemoryStore()
	a, b, c := now.Add(-48*time.Hour), now.Add(-24*time.Hour), now.Add(-time.Hour)
	seed(t, store, progress.CollectionFacts, docstore.Document{
		"practiceSessions": []any{session("reflection", a), session("drill", b)},
	})
	seed(t, store, progress.CollectionProfiles, docstore.Document{
		progress.MirrorField: map[string]any{
			"practiceSessions": []any{session("drill", b), session("breathing", c)},
		},
	})
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))
	if _, err := r.Reconcile(context.Background(), owner); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	f := loadFact(t, store)
	if len(f.PracticeSessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(f.PracticeSessions))
	}
	order := []progress.PracticeType{progress.PracticeReflection, progress.PracticeDrill, progress.PracticeBreathing}
	for i, s := range f.PracticeSessions {
		if s.Type != order[i] {
			t.Fatalf("session %d: want %s got %s", i, order[i], s.Type)
		}
	}
	if f.Omni == nil || f.Omni.Flow == nil || f.Omni.Flow.StreakCurrent != 3 {
		t.Fatalf("flow should use the merged sessions: %#v", f.Omni)
	}
}

func TestExistingOmniKeepsLiveCounters(t *testing.T) {
	store := docstore.NewMemoryStore()
	seed(t, store, progress.CollectionFacts, docstore.Document{
		"omni": map[string]any{
			"sensei": map[string]any{"completedQuestsCount": 3, "unlocked": true},
			"abil":   map[string]any{"exercisesCompletedCount": 10, "skillsIndex": 40},
		},
	})
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))
	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !contains(rep.Kept, "omni") {
		t.Fatalf("omni should be kept, got kept=%v", rep.Kept)
	}
	o := loadFact(t, store).Omni
	if o.Sensei == nil || o.Sensei.CompletedQuestsCount != 3 {
		t.Fatalf("sensei counters lost: %#v", o.Sensei)
	}
	// 0.7*80 + 0.3*min(100, 3*10)
	if o.Abil.PracticeIndex != 65 || o.Abil.SkillsIndex != 40 || o.Abil.ExercisesCompletedCount != 10 {
		t.Fatalf("abil: %#v", o.Abil)
	}
	if o.Kuno == nil || o.Kuno.RunsCount != 2 {
		t.Fatalf("kuno: %#v", o.Kuno)
	}
}

func TestReadFailureOverwritesWithRebuilt(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	seed(t, store, progress.CollectionFacts, docstore.Document{
		"evaluation": map[string]any{"stageValue": "t2", "updatedAt": t2.Format(time.RFC3339)},
	})
	store.FailGets(docstore.ErrTransient)
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))

	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rep.Status != StatusOverwritten {
		t.Fatalf("expected overwritten, got %q", rep.Status)
	}
	if f := loadFact(t, store); f.Evaluation.StageValue != "t0" {
		t.Fatalf("expected rebuilt evaluation written unconditionally, got %q", f.Evaluation.StageValue)
	}
}

func TestPrimaryWriteFailureStillWritesMirror(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	store.FailMerges(docstore.ErrTransient)
	profiles := docstore.NewMemoryStore()
	spy := &runSpy{}
	r := newReconciler(store, mirror.NewStoreMirror(profiles), seedHistory(t), WithHooks(spy))

	rep, err := r.Reconcile(context.Background(), owner)
	if !errors.Is(err, docstore.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if rep.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", rep.Status)
	}
	if _, err := mirror.NewStoreMirror(profiles).Load(context.Background(), owner); err != nil {
		t.Fatalf("mirror write should proceed independently: %v", err)
	}
	if len(spy.statuses) != 1 || spy.statuses[0] != StatusFailed {
		t.Fatalf("hooks: %v", spy.statuses)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t), WithDryRun(true))
	rep, err := r.Reconcile(context.Background(), owner)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !rep.DryRun || rep.Fact == nil || rep.Fact.Intent == nil {
		t.Fatalf("dry run should still report the reconciled fact: %#v", rep)
	}
	if store.MergeCount() != 0 {
		t.Fatalf("dry run wrote %d documents", store.MergeCount())
	}
}

func TestReconcileAll(t *testing.T) {
	store := docstore.NewMemoryStore()
	r := newReconciler(store, mirror.NewStoreMirror(store), seedHistory(t))
	reps, err := r.ReconcileAll(context.Background(), []string{owner, "nobody"})
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(reps) != 2 || reps[0].Status != StatusReconciled || reps[1].Status != StatusNoHistory {
		t.Fatalf("reports: %#v", reps)
	}
}
