package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/progressfacts/internal/data/db"
	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	historyrepo "github.com/yungbote/progressfacts/internal/data/repos/history"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

var (
	openSQL         = db.Open
	openBadger      = docstore.OpenBadger
	newRedisMirror  = mirror.NewRedisMirror
	migrateSQLStore = db.AutoMigrateAll
)

type StoreBootstrapErrorCode string

const (
	StoreBootstrapErrorInvalidDriver StoreBootstrapErrorCode = "invalid_driver"
	StoreBootstrapErrorConnectFailed StoreBootstrapErrorCode = "connect_failed"
	StoreBootstrapErrorMigrateFailed StoreBootstrapErrorCode = "migrate_failed"
)

type StoreBootstrapError struct {
	Code   StoreBootstrapErrorCode
	Kind   string
	Driver string
	Cause  error
}

func (e *StoreBootstrapError) Error() string {
	if e == nil {
		return "store bootstrap failed"
	}
	return fmt.Sprintf("%s bootstrap failed (code=%s driver=%q): %v", e.Kind, e.Code, e.Driver, e.Cause)
}

func (e *StoreBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func storeBootstrapErrorCode(err error) StoreBootstrapErrorCode {
	var bootstrapErr *StoreBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StoreBootstrapErrorConnectFailed
}

// Storage bundles the canonical store with the history it is rebuilt from.
type Storage struct {
	Store   docstore.Store
	History historyrepo.Repo
	SQL     *db.Service
	closers []func() error
}

func (s *Storage) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	s.closers = nil
}

// resolveStorage opens the store named by STORE_DRIVER. SQL drivers keep
// history in the same database; badger and memory keep it in process.
func resolveStorage(log *logger.Logger, cfg Config, opts ...docstore.Option) (*Storage, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	opts = append(opts, docstore.WithMaxAttempts(cfg.TxnMaxAttempts))
	log.Info("Selecting progress store", "driver", driver)

	fail := func(code StoreBootstrapErrorCode, cause error) error {
		err := &StoreBootstrapError{Code: code, Kind: "store", Driver: driver, Cause: cause}
		log.Error("Progress store bootstrap failed", "driver", driver, "error_code", code, "error", cause)
		return err
	}

	switch driver {
	case db.DriverPostgres, db.DriverSQLite:
		sqlSvc, err := openSQL(log, db.Config{Driver: driver, Postgres: cfg.Postgres, SQLitePath: cfg.SQLitePath})
		if err != nil {
			return nil, fail(StoreBootstrapErrorConnectFailed, err)
		}
		if err := migrateSQLStore(sqlSvc.DB()); err != nil {
			_ = sqlSvc.Close()
			return nil, fail(StoreBootstrapErrorMigrateFailed, err)
		}
		return &Storage{
			Store:   docstore.NewGormStore(sqlSvc.DB(), log, opts...),
			History: historyrepo.NewRepo(sqlSvc.DB(), log),
			SQL:     sqlSvc,
			closers: []func() error{sqlSvc.Close},
		}, nil
	case "badger":
		path := strings.TrimSpace(cfg.BadgerPath)
		store, err := openBadger(docstore.BadgerConfig{Path: path, InMemory: path == ""}, log, opts...)
		if err != nil {
			return nil, fail(StoreBootstrapErrorConnectFailed, err)
		}
		return &Storage{
			Store:   store,
			History: historyrepo.NewMemoryRepo(),
			closers: []func() error{store.Close},
		}, nil
	case "memory":
		return &Storage{
			Store:   docstore.NewMemoryStore(),
			History: historyrepo.NewMemoryRepo(),
		}, nil
	default:
		return nil, fail(StoreBootstrapErrorInvalidDriver, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver))
	}
}

// resolveMirror picks the best-effort copy named by MIRROR_DRIVER.
func resolveMirror(log *logger.Logger, cfg Config, store docstore.Store) (mirror.Mirror, func() error, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.MirrorDriver))
	noClose := func() error { return nil }
	switch driver {
	case "redis":
		m, err := newRedisMirror(log, mirror.RedisConfig{
			Addr:        cfg.RedisAddr,
			Prefix:      cfg.RedisMirrorPrefix,
			MaxAttempts: cfg.TxnMaxAttempts,
		})
		if err != nil {
			log.Error("Mirror bootstrap failed", "driver", driver, "error", err)
			return nil, noClose, &StoreBootstrapError{Code: StoreBootstrapErrorConnectFailed, Kind: "mirror", Driver: driver, Cause: err}
		}
		return m, m.Close, nil
	case "store":
		return mirror.NewStoreMirror(store), noClose, nil
	case "none", "":
		return mirror.Noop{}, noClose, nil
	default:
		return nil, noClose, &StoreBootstrapError{
			Code:   StoreBootstrapErrorInvalidDriver,
			Kind:   "mirror",
			Driver: driver,
			Cause:  fmt.Errorf("unsupported mirror driver %q", cfg.MirrorDriver),
		}
	}
}
