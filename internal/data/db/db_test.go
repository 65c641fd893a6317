package db

import (
	"path/filepath"
	"testing"

	"github.com/yungbote/progressfacts/internal/platform/logger"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	svc, err := Open(logger.Nop(), Config{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "progress.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"progress_documents", "intent_snapshots", "knowledge_assessments"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(logger.Nop(), Config{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(logger.Nop(), Config{Driver: DriverSQLite}); err == nil {
		t.Fatalf("expected error for missing sqlite path")
	}
}

func TestPostgresDSN(t *testing.T) {
	got := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "progress"}.DSN()
	if got != "postgres://u:p@db:5432/progress?sslmode=disable" {
		t.Fatalf("dsn = %q", got)
	}
}
