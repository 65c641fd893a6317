package docstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progressfacts/internal/domain/progress"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

// DocumentRow is the relational representation of one document.
type DocumentRow struct {
	Collection string         `gorm:"column:collection;primaryKey;size:64" json:"collection"`
	DocID      string         `gorm:"column:doc_id;primaryKey;size:191" json:"doc_id"`
	Data       datatypes.JSON `gorm:"column:data;not null" json:"data"`
	Version    int64          `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt  time.Time      `gorm:"not null;default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:current_timestamp;index" json:"updated_at"`
}

func (DocumentRow) TableName() string { return "progress_documents" }

// TxRunner provides the transaction boundary for document writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return progress.NewError(progress.CodeInternal, "docstore.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// GormStore keeps documents as JSON rows guarded by a version column.
// Conflicting commits are detected by compare-and-set on the version and
// retried with exponential backoff.
type GormStore struct {
	db    *gorm.DB
	log   *logger.Logger
	tx    TxRunner
	opts  options
	clock *clock
}

func NewGormStore(db *gorm.DB, baseLog *logger.Logger, opts ...Option) *GormStore {
	o := buildOptions(opts)
	return &GormStore{
		db:    db,
		log:   baseLog.With("repo", "GormDocumentStore"),
		tx:    NewGormTxRunner(db),
		opts:  o,
		clock: newClock(o.now),
	}
}

// AutoMigrate creates the documents table.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DocumentRow{})
}

func (s *GormStore) Now() time.Time { return s.clock.Now() }

func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	doc, err := s.get(dbctx.Context{Ctx: ctx}, collection, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		err = MapError("docstore.gorm.get", err)
	}
	observe(s.opts.hooks, "gorm.get", start, err)
	return doc, err
}

func (s *GormStore) get(dbc dbctx.Context, collection, id string) (Document, error) {
	var row DocumentRow
	err := dbc.DB(s.db).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalDocument(row.Data)
}

func (s *GormStore) MergeSet(ctx context.Context, collection, id string, patch Document) error {
	return s.RunTransaction(ctx, collection, id, func(Document) (Document, error) {
		return patch, nil
	})
}

func (s *GormStore) RunTransaction(ctx context.Context, collection, id string, fn TxFunc) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return progress.Validation("docstore.gorm.tx", "collection and id are required")
	}
	start := time.Now()
	err := retryConflicts(ctx, "gorm.tx", s.opts.maxAttempts, s.opts.hooks, func() error {
		return s.tx.InTx(ctx, func(dbc dbctx.Context) error {
			return s.attempt(dbc, collection, id, fn)
		})
	})
	if err != nil {
		err = MapError("docstore.gorm.tx", err)
		s.log.Debug("document transaction failed", "collection", collection, "doc_id", id, "error", err)
	}
	observe(s.opts.hooks, "gorm.tx", start, err)
	return err
}

func (s *GormStore) attempt(dbc dbctx.Context, collection, id string, fn TxFunc) error {
	var row DocumentRow
	exists := true
	err := dbc.DB(s.db).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
	case err != nil:
		return err
	}
	var current Document
	if exists {
		current, err = unmarshalDocument(row.Data)
		if err != nil {
			return MapError("docstore.gorm.decode", err)
		}
	}
	now := s.clock.Now()
	next, write, err := runTx(current, fn, now)
	if err != nil || !write {
		return err
	}
	data, err := marshalDocument(next)
	if err != nil {
		return MapError("docstore.gorm.encode", err)
	}
	if !exists {
		res := dbc.DB(s.db).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&DocumentRow{
				Collection: collection,
				DocID:      id,
				Data:       datatypes.JSON(data),
				Version:    1,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	}
	ok, err := s.updateByVersion(dbc, collection, id, row.Version, map[string]any{
		"data":       datatypes.JSON(data),
		"version":    row.Version + 1,
		"updated_at": now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// updateByVersion updates a row only when key+version match.
func (s *GormStore) updateByVersion(dbc dbctx.Context, collection, id string, expected int64, updates map[string]any) (bool, error) {
	res := dbc.DB(s.db).
		Model(&DocumentRow{}).
		Where("collection = ? AND doc_id = ? AND version = ?", collection, id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IDs lists document ids in a collection, ordered.
func (s *GormStore) IDs(ctx context.Context, collection string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&DocumentRow{}).
		Where("collection = ?", collection).
		Order("doc_id ASC").
		Pluck("doc_id", &ids).Error
	if err != nil {
		return nil, MapError("docstore.gorm.ids", err)
	}
	return ids, nil
}
