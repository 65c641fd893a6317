package docstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	storetest "github.com/yungbote/progressfacts/internal/data/docstore/testutil"
	"github.com/yungbote/progressfacts/internal/data/testutil"
	"github.com/yungbote/progressfacts/internal/domain/progress"
)

type storeFactory func(t *testing.T, hooks docstore.Hooks) docstore.Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, _ docstore.Hooks) docstore.Store {
			return docstore.NewMemoryStore()
		},
		"sqlite": func(t *testing.T, hooks docstore.Hooks) docstore.Store {
			db := testutil.SQLite(t, &docstore.DocumentRow{})
			return docstore.NewGormStore(db, testutil.Logger(t), docstore.WithHooks(hooks), docstore.WithMaxAttempts(10))
		},
		"badger": func(t *testing.T, hooks docstore.Hooks) docstore.Store {
			s, err := docstore.OpenBadger(docstore.BadgerConfig{InMemory: true}, testutil.Logger(t),
				docstore.WithHooks(hooks), docstore.WithMaxAttempts(50))
			if err != nil {
				t.Fatalf("open badger: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, nil)
			_, err := s.Get(context.Background(), progress.CollectionFacts, "nobody")
			if !errors.Is(err, docstore.ErrNotFound) {
				t.Fatalf("want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreMergeSetDeepMerges(t *testing.T) {
	ctx := context.Background()
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, nil)
			if err := s.MergeSet(ctx, progress.CollectionFacts, "u1", docstore.Document{
				"intent":     map[string]any{"urgency": 7, "lang": "ro"},
				"motivation": map[string]any{"determination": 4},
				"updatedAt":  docstore.ServerTimestamp(),
			}); err != nil {
				t.Fatalf("merge 1: %v", err)
			}
			if err := s.MergeSet(ctx, progress.CollectionFacts, "u1", docstore.Document{
				"intent": map[string]any{"urgency": 9},
				"stats":  map[string]any{"drillsCount": docstore.Increment(2)},
			}); err != nil {
				t.Fatalf("merge 2: %v", err)
			}
			doc, err := s.Get(ctx, progress.CollectionFacts, "u1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			intent, _ := docstore.AsMap(doc["intent"])
			if intent["urgency"] != 9.0 || intent["lang"] != "ro" {
				t.Fatalf("intent mismatch: %#v", intent)
			}
			if _, ok := doc["motivation"]; !ok {
				t.Fatalf("motivation lost")
			}
			if _, ok := progress.ParseTime(doc["updatedAt"]); !ok {
				t.Fatalf("updatedAt not stored as time: %#v", doc["updatedAt"])
			}
			stats, _ := docstore.AsMap(doc["stats"])
			if stats["drillsCount"] != 2.0 {
				t.Fatalf("increment mismatch: %#v", stats)
			}
		})
	}
}

func TestStoreTransactionAbortWritesNothing(t *testing.T) {
	ctx := context.Background()
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, nil)
			err := s.RunTransaction(ctx, progress.CollectionFacts, "u1", func(cur docstore.Document) (docstore.Document, error) {
				if cur != nil {
					t.Fatalf("expected nil current document")
				}
				return nil, docstore.ErrAbort
			})
			if err != nil {
				t.Fatalf("abort should not surface: %v", err)
			}
			if _, err := s.Get(ctx, progress.CollectionFacts, "u1"); !errors.Is(err, docstore.ErrNotFound) {
				t.Fatalf("aborted tx wrote a document: %v", err)
			}
		})
	}
}

func TestStoreTransactionPropagatesCallbackError(t *testing.T) {
	boom := errors.New("boom")
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, nil)
			err := s.RunTransaction(context.Background(), progress.CollectionFacts, "u1", func(docstore.Document) (docstore.Document, error) {
				return nil, boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("want boom, got %v", err)
			}
		})
	}
}

func TestStoreConcurrentTransactionsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	const workers = 8
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			hooks := &storetest.HooksRecorder{}
			s := mk(t, hooks)
			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- s.RunTransaction(ctx, progress.CollectionFacts, "shared", func(cur docstore.Document) (docstore.Document, error) {
						n, _ := docstore.Number(cur["count"])
						return docstore.Document{"count": n + 1}, nil
					})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("transaction failed: %v", err)
				}
			}
			doc, err := s.Get(ctx, progress.CollectionFacts, "shared")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if doc["count"] != float64(workers) {
				t.Fatalf("lost update: want=%d got=%v (conflicts=%d)", workers, doc["count"], hooks.ConflictCount())
			}
		})
	}
}

func TestFaultyStoreInjectsErrors(t *testing.T) {
	s := storetest.NewFaultyStore(nil)
	quota := progress.NewError(progress.CodeQuotaExhausted, "test", "quota", nil)
	s.FailMerges(quota)

	err := s.MergeSet(context.Background(), progress.CollectionFacts, "u1", docstore.Document{"a": 1})
	if !docstore.IsQuota(err) {
		t.Fatalf("expected injected quota error, got %v", err)
	}
	if err := s.MergeSet(context.Background(), progress.CollectionFacts, "u1", docstore.Document{"a": 1}); err != nil {
		t.Fatalf("second merge should pass through: %v", err)
	}
	if s.MergeCount() != 2 {
		t.Fatalf("merge count: want=2 got=%d", s.MergeCount())
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := testutil.Postgres(t, &docstore.DocumentRow{})
	s := docstore.NewGormStore(db, testutil.Logger(t))
	ctx := context.Background()
	id := "pg-roundtrip"
	t.Cleanup(func() {
		db.Where("collection = ? AND doc_id = ?", progress.CollectionFacts, id).Delete(&docstore.DocumentRow{})
	})
	if err := s.MergeSet(ctx, progress.CollectionFacts, id, docstore.Document{"intent": map[string]any{"urgency": 3}}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	doc, err := s.Get(ctx, progress.CollectionFacts, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	intent, _ := docstore.AsMap(doc["intent"])
	if intent["urgency"] != 3.0 {
		t.Fatalf("urgency mismatch: %#v", intent)
	}
}
