package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/docstore/testutil"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/ctxutil"
	"github.com/yungbote/progressfacts/internal/platform/logger"
	"github.com/yungbote/progressfacts/internal/progress/backfill"
)

var viewNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type backfillSpy struct {
	mu    sync.Mutex
	calls int
	rep   backfill.Report
	err   error
}

func (b *backfillSpy) Reconcile(ctx context.Context, ownerID string) (backfill.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	rep := b.rep
	rep.OwnerID = ownerID
	return rep, b.err
}

func newView(store docstore.Store, m mirror.Mirror, bf Backfiller) ProgressViewService {
	return NewProgressViewService(store, m, bf, logger.Nop(), WithViewClock(func() time.Time { return viewNow }))
}

func completeDoc() docstore.Document {
	return docstore.Document{
		"intent":     map[string]any{"urgency": 6, "tags": []any{"calm"}},
		"motivation": map[string]any{"determination": 4, "hoursPerWeek": 5},
		"evaluation": map[string]any{"stageValue": "t1"},
		"omni": map[string]any{
			"kuno":  map[string]any{"completedTests": 1},
			"intel": map[string]any{"evaluationsCount": 2},
		},
	}
}

func TestGetCompleteAggregateSkipsBackfill(t *testing.T) {
	store := docstore.NewMemoryStore()
	if err := store.MergeSet(context.Background(), progress.CollectionFacts, "u1", completeDoc()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	spy := &backfillSpy{}
	svc := newView(store, nil, spy)

	view, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if spy.calls != 0 {
		t.Fatalf("backfill ran %d times on a complete aggregate", spy.calls)
	}
	if view.Source != "aggregate" {
		t.Fatalf("expected aggregate source, got %q", view.Source)
	}
	if !view.Unlocks.Knowledge || !view.Unlocks.Coaching || !view.Unlocks.Insight {
		t.Fatalf("unexpected unlocks: %+v", view.Unlocks)
	}
	if view.Unlocks.Abilities {
		t.Fatalf("abilities should stay locked: %+v", view.Unlocks)
	}
	if view.Indices.Motivation <= 0 {
		t.Fatalf("expected a motivation index, got %v", view.Indices.Motivation)
	}
}

func TestGetBackfillsOncePerOwner(t *testing.T) {
	store := docstore.NewMemoryStore()
	rebuilt := &progress.ProgressFact{Intent: &progress.Intent{Urgency: 7}}
	spy := &backfillSpy{rep: backfill.Report{Status: backfill.StatusReconciled, Fact: rebuilt}}
	svc := newView(store, nil, spy)

	view, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Backfill != backfill.StatusReconciled {
		t.Fatalf("expected reconciled, got %q", view.Backfill)
	}
	if view.Fact.Intent == nil || view.Fact.Intent.Urgency != 7 {
		t.Fatalf("backfilled fact not used: %+v", view.Fact.Intent)
	}

	again, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if spy.calls != 1 {
		t.Fatalf("expected one backfill, got %d", spy.calls)
	}
	if again.Backfill != "" {
		t.Fatalf("second read should not report a backfill, got %q", again.Backfill)
	}
	if again.Fact.Intent != nil {
		t.Fatalf("second read should come from the store")
	}
}

func TestGetBackfillFailureStillAnswers(t *testing.T) {
	spy := &backfillSpy{rep: backfill.Report{Status: backfill.StatusFailed}, err: errors.New("boom")}
	svc := newView(docstore.NewMemoryStore(), nil, spy)

	view, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Backfill != backfill.StatusFailed {
		t.Fatalf("expected failed, got %q", view.Backfill)
	}
	if !view.Unlocks.Scope || view.Unlocks.Knowledge {
		t.Fatalf("unexpected unlocks for an empty aggregate: %+v", view.Unlocks)
	}
}

func TestGetFallsBackToMirror(t *testing.T) {
	profiles := docstore.NewMemoryStore()
	m := mirror.NewStoreMirror(profiles)
	if err := m.MergeFlat(context.Background(), "u1", completeDoc()); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}
	store := testutil.NewFaultyStore(nil)
	store.FailGets(docstore.ErrTransient)
	svc := newView(store, m, &backfillSpy{})

	view, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Source != "mirror" {
		t.Fatalf("expected mirror source, got %q", view.Source)
	}
	if view.Fact.Intent == nil || view.Fact.Intent.Urgency != 6 {
		t.Fatalf("mirror fact not decoded: %+v", view.Fact.Intent)
	}
}

func TestGetStoreAndMirrorDown(t *testing.T) {
	store := testutil.NewFaultyStore(nil)
	store.FailGets(docstore.ErrTransient)
	svc := newView(store, mirror.Noop{}, &backfillSpy{})

	if _, err := svc.Get(context.Background(), "u1"); !errors.Is(err, docstore.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGetOwnerFromContext(t *testing.T) {
	svc := newView(docstore.NewMemoryStore(), nil, nil)
	if _, err := svc.Get(context.Background(), ""); !progress.IsCode(err, progress.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	view, err := svc.Get(ctxutil.WithOwner(context.Background(), "ctx-owner"), "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.OwnerID != "ctx-owner" {
		t.Fatalf("expected ctx-owner, got %q", view.OwnerID)
	}
}

func TestBackfillAlwaysRuns(t *testing.T) {
	spy := &backfillSpy{rep: backfill.Report{Status: backfill.StatusNoHistory}}
	svc := newView(docstore.NewMemoryStore(), nil, spy)

	for i := 0; i < 2; i++ {
		rep, err := svc.Backfill(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Backfill: %v", err)
		}
		if rep.Status != backfill.StatusNoHistory || rep.OwnerID != "u1" {
			t.Fatalf("unexpected report: %+v", rep)
		}
	}
	if spy.calls != 2 {
		t.Fatalf("expected 2 runs, got %d", spy.calls)
	}
	if _, err := svc.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if spy.calls != 2 {
		t.Fatalf("Get after an explicit backfill should not run another")
	}
}
