package app

import (
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/progressfacts/internal/data/db"
	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/data/mirror"
	historyrepo "github.com/yungbote/progressfacts/internal/data/repos/history"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.LogMode = "test"
	return cfg
}

func TestResolveStorageMemory(t *testing.T) {
	st, err := resolveStorage(logger.Nop(), testConfig())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer st.Close()
	if _, ok := st.Store.(*docstore.MemoryStore); !ok {
		t.Fatalf("store = %T", st.Store)
	}
	if _, ok := st.History.(*historyrepo.MemoryRepo); !ok {
		t.Fatalf("history = %T", st.History)
	}
}

func TestResolveStorageSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = db.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "progress.db")
	st, err := resolveStorage(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer st.Close()
	if _, ok := st.Store.(*docstore.GormStore); !ok {
		t.Fatalf("store = %T", st.Store)
	}
	if st.SQL == nil || st.SQL.Driver() != db.DriverSQLite {
		t.Fatalf("expected sqlite handle")
	}
}

func TestResolveStorageBadgerInMemory(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "badger"
	st, err := resolveStorage(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer st.Close()
	if _, ok := st.Store.(*docstore.BadgerStore); !ok {
		t.Fatalf("store = %T", st.Store)
	}
}

func TestResolveStorageInvalidDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "mongo"
	_, err := resolveStorage(logger.Nop(), cfg)
	var got *StoreBootstrapError
	if !errors.As(err, &got) || got.Code != StoreBootstrapErrorInvalidDriver {
		t.Fatalf("expected invalid_driver, got %v", err)
	}
}

func TestResolveStorageConnectFailed(t *testing.T) {
	orig := openSQL
	t.Cleanup(func() { openSQL = orig })
	openSQL = func(*logger.Logger, db.Config) (*db.Service, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	cfg := testConfig()
	cfg.StoreDriver = db.DriverPostgres
	_, err := resolveStorage(logger.Nop(), cfg)
	if code := storeBootstrapErrorCode(err); code != StoreBootstrapErrorConnectFailed {
		t.Fatalf("code = %q (%v)", code, err)
	}
}

func TestResolveStorageMigrateFailed(t *testing.T) {
	orig := migrateSQLStore
	t.Cleanup(func() { migrateSQLStore = orig })
	migrateSQLStore = func(*gorm.DB) error { return errors.New("permission denied") }
	cfg := testConfig()
	cfg.StoreDriver = db.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "progress.db")
	_, err := resolveStorage(logger.Nop(), cfg)
	if code := storeBootstrapErrorCode(err); code != StoreBootstrapErrorMigrateFailed {
		t.Fatalf("code = %q (%v)", code, err)
	}
}

func TestResolveMirror(t *testing.T) {
	store := docstore.NewMemoryStore()
	cfg := testConfig()

	m, _, err := resolveMirror(logger.Nop(), cfg, store)
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if _, ok := m.(mirror.Noop); !ok {
		t.Fatalf("mirror = %T", m)
	}

	cfg.MirrorDriver = "store"
	m, _, err = resolveMirror(logger.Nop(), cfg, store)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := m.(*mirror.StoreMirror); !ok {
		t.Fatalf("mirror = %T", m)
	}

	orig := newRedisMirror
	t.Cleanup(func() { newRedisMirror = orig })
	newRedisMirror = func(*logger.Logger, mirror.RedisConfig) (*mirror.RedisMirror, error) {
		return nil, errors.New("redis ping: refused")
	}
	cfg.MirrorDriver = "redis"
	if _, _, err := resolveMirror(logger.Nop(), cfg, store); storeBootstrapErrorCode(err) != StoreBootstrapErrorConnectFailed {
		t.Fatalf("expected connect_failed, got %v", err)
	}
}
