package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/progressfacts/internal/data/docstore"
)

// FaultyStore wraps a Store, counts calls per operation and injects errors.
type FaultyStore struct {
	Inner docstore.Store

	mu        sync.Mutex
	getErr    []error
	mergeErr  []error
	txErr     []error
	Gets      int
	Merges    int
	Txs       int
	Collected []MergeCall
}

// MergeCall records one MergeSet invocation.
type MergeCall struct {
	Collection string
	ID         string
	Patch      docstore.Document
	At         time.Time
}

var _ docstore.Store = (*FaultyStore)(nil)

func NewFaultyStore(inner docstore.Store) *FaultyStore {
	if inner == nil {
		inner = docstore.NewMemoryStore()
	}
	return &FaultyStore{Inner: inner}
}

// FailGets queues errors returned by the next Get calls, in order.
func (s *FaultyStore) FailGets(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = append(s.getErr, errs...)
}

// FailMerges queues errors returned by the next MergeSet calls, in order.
func (s *FaultyStore) FailMerges(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeErr = append(s.mergeErr, errs...)
}

// FailTxs queues errors returned by the next RunTransaction calls, in order.
func (s *FaultyStore) FailTxs(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErr = append(s.txErr, errs...)
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (s *FaultyStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	s.Gets++
	err := pop(&s.getErr)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Inner.Get(ctx, collection, id)
}

func (s *FaultyStore) MergeSet(ctx context.Context, collection, id string, patch docstore.Document) error {
	s.mu.Lock()
	s.Merges++
	s.Collected = append(s.Collected, MergeCall{Collection: collection, ID: id, Patch: docstore.Clone(patch), At: time.Now()})
	err := pop(&s.mergeErr)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Inner.MergeSet(ctx, collection, id, patch)
}

func (s *FaultyStore) RunTransaction(ctx context.Context, collection, id string, fn docstore.TxFunc) error {
	s.mu.Lock()
	s.Txs++
	err := pop(&s.txErr)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Inner.RunTransaction(ctx, collection, id, fn)
}

func (s *FaultyStore) Now() time.Time { return s.Inner.Now() }

// Calls returns a snapshot of the collected MergeSet calls.
func (s *FaultyStore) Calls() []MergeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MergeCall(nil), s.Collected...)
}

// MergeCount returns the number of MergeSet calls so far.
func (s *FaultyStore) MergeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Merges
}
