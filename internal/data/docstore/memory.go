package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps canonical documents in process memory. Transactions are
// serialized, so they never conflict.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]Document
	clock *clock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]Document{}, clock: newClock(nil)}
}

// NewMemoryStoreWithClock pins the store clock, for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{docs: map[string]Document{}, clock: newClock(now)}
}

func memKey(collection, id string) string { return collection + "/" + id }

func (s *MemoryStore) Now() time.Time { return s.clock.Now() }

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, MapError("docstore.memory.get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[memKey(collection, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(doc), nil
}

func (s *MemoryStore) MergeSet(ctx context.Context, collection, id string, patch Document) error {
	return s.RunTransaction(ctx, collection, id, func(Document) (Document, error) {
		return patch, nil
	})
}

func (s *MemoryStore) RunTransaction(ctx context.Context, collection, id string, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return MapError("docstore.memory.tx", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(collection, id)
	next, write, err := runTx(s.docs[key], fn, s.clock.Now())
	if err != nil || !write {
		return err
	}
	norm, err := Normalize(next)
	if err != nil {
		return MapError("docstore.memory.tx", err)
	}
	s.docs[key] = norm
	return nil
}

// Len reports how many documents are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
