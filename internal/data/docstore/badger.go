package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// BadgerConfig selects an on-disk or in-memory badger database.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore keeps documents in an embedded badger database. badger's
// optimistic transactions report conflicting commits with ErrConflict, which
// RunTransaction retries.
type BadgerStore struct {
	db    *badger.DB
	log   *logger.Logger
	opts  options
	clock *clock
}

// badgerLogger adapts the zap wrapper to badger's Logger interface.
type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func OpenBadger(cfg BadgerConfig, baseLog *logger.Logger, opts ...Option) (*BadgerStore, error) {
	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, progress.Validation("docstore.badger.open", "path is required unless in-memory")
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	log := baseLog.With("repo", "BadgerDocumentStore")
	bopts = bopts.WithSyncWrites(cfg.SyncWrites).WithLogger(&badgerLogger{log: log})
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	o := buildOptions(opts)
	return &BadgerStore{db: db, log: log, opts: o, clock: newClock(o.now)}, nil
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func badgerKey(collection, id string) []byte {
	return []byte("doc/" + collection + "/" + id)
}

func (s *BadgerStore) Now() time.Time { return s.clock.Now() }

func (s *BadgerStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, MapError("docstore.badger.get", err)
	}
	start := time.Now()
	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d, err := unmarshalDocument(val)
			doc = d
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		err = ErrNotFound
	} else if err != nil {
		err = MapError("docstore.badger.get", err)
	}
	observe(s.opts.hooks, "badger.get", start, err)
	return doc, err
}

func (s *BadgerStore) MergeSet(ctx context.Context, collection, id string, patch Document) error {
	return s.RunTransaction(ctx, collection, id, func(Document) (Document, error) {
		return patch, nil
	})
}

func (s *BadgerStore) RunTransaction(ctx context.Context, collection, id string, fn TxFunc) error {
	start := time.Now()
	key := badgerKey(collection, id)
	err := retryConflicts(ctx, "badger.tx", s.opts.maxAttempts, s.opts.hooks, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			var current Document
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					d, err := unmarshalDocument(val)
					current = d
					return err
				}); err != nil {
					return MapError("docstore.badger.decode", err)
				}
			}
			next, write, err := runTx(current, fn, s.clock.Now())
			if err != nil || !write {
				return err
			}
			data, err := marshalDocument(next)
			if err != nil {
				return MapError("docstore.badger.encode", err)
			}
			return txn.Set(key, data)
		})
	})
	if err != nil {
		err = MapError("docstore.badger.tx", err)
		s.log.Debug("document transaction failed", "collection", collection, "doc_id", id, "error", err)
	}
	observe(s.opts.hooks, "badger.tx", start, err)
	return err
}
