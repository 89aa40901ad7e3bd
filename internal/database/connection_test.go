package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/workaholic-kv/workaholic/internal/config"
)

func setupTestDB(t *testing.T) *Context {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("WORKAHOLIC_DIR", tmp)

	ctx, err := CreateDatabase("")
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}

	t.Cleanup(func() {
		if err := CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func setupMemoryDB(t *testing.T) *Context {
	t.Helper()
	ctx, err := CreateDatabase(MemoryPath)
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})
	return ctx
}

func TestDatabaseCreationAndMigration(t *testing.T) {
	ctx := setupTestDB(t)

	dbPath := config.GetDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file to exist at %s: %v", dbPath, err)
	}

	var version int
	var dirty bool
	if err := ctx.DB.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("failed to read schema_migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("expected clean schema version 1, got %d (dirty=%v)", version, dirty)
	}

	tables := []string{"kv", "builds", "build_tables"}
	for _, table := range tables {
		if !tableExists(t, ctx.DB, table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	first := setupMemoryDB(t)
	second := setupMemoryDB(t)

	repo := NewKVRepository(first)
	now := time.Now()
	if err := repo.Upsert(context.Background(), KVRecord{Namespace: "ns", Key: "a", Value: []byte("1"), UpdatedAt: now}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	assertCount(t, first.DB, "kv", 1)
	assertCount(t, second.DB, "kv", 0)
}

func TestClearDatabaseRemovesAllRows(t *testing.T) {
	ctx := setupTestDB(t)
	bg := context.Background()
	now := time.Now()

	if err := NewKVRepository(ctx).Upsert(bg, KVRecord{Namespace: "list", Key: "", Value: []byte("[]"), UpdatedAt: now}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	err := NewBuildRepository(ctx).Record(bg,
		BuildRecord{ID: "b1", StartedAt: now, FinishedAt: now, Status: "ok"},
		[]BuildTableRecord{{Namespace: "list", RowCount: 1, Digest: "d", Status: "ok"}},
	)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	assertCount(t, ctx.DB, "kv", 1)
	assertCount(t, ctx.DB, "builds", 1)
	assertCount(t, ctx.DB, "build_tables", 1)

	if err := ClearDatabase(ctx); err != nil {
		t.Fatalf("ClearDatabase returned error: %v", err)
	}

	assertCount(t, ctx.DB, "kv", 0)
	assertCount(t, ctx.DB, "builds", 0)
	assertCount(t, ctx.DB, "build_tables", 0)
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("tableExists query failed for %s: %v", table, err)
	}
	return true
}

func assertCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("count query failed for %s: %v", table, err)
	}
	if count != expected {
		t.Fatalf("expected %s to have %d rows, got %d", table, expected, count)
	}
}
