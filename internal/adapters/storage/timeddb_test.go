package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

// TestTimedDB_RecordsStatements verifies Exec, Query and QueryRow each record one entry.
func TestTimedDB_RecordsStatements(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()

	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	seen := map[string]bool{}
	for _, s := range snap.SlowestQueries {
		seen[s.Path] = true
	}
	if !seen["INSERT test"] || !seen["SELECT test"] {
		t.Errorf("labels = %v", seen)
	}
}

// TestTimedDB_NilCollector verifies TimedDB works without a collector.
func TestTimedDB_NilCollector(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil)
	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext with nil collector: %v", err)
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and still recorded.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL")
	}
	if _, err := tdb.QueryContext(ctx, "SELECT * FROM nonexistent_table"); err == nil {
		t.Fatal("expected error from invalid SQL")
	}
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "missing").Scan(&val); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if collector.TotalRecorded() != 3 {
		t.Errorf("TotalRecorded = %d, want 3", collector.TotalRecorded())
	}
}

// TestTimedDB_CancelledContext verifies a cancelled context errors and is still recorded.
func TestTimedDB_CancelledContext(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestStatementLabel tests grouping labels for statements.
func TestStatementLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"INSERT INTO staged_image (ref) VALUES (?)", "INSERT staged_image"},
		{"select data from staged_image where ref = ?", "SELECT staged_image"},
		{"DELETE FROM staged_image WHERE owner = ?", "DELETE staged_image"},
		{"SELECT COUNT(*) FROM staged_image", "SELECT staged_image"},
		{"PRAGMA journal_mode=WAL", "PRAGMA"},
		{"   ", "EMPTY"},
	}
	for _, tt := range tests {
		if got := statementLabel(tt.in); got != tt.want {
			t.Errorf("statementLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestTimedDB_ConcurrentMixedOps verifies no races under concurrent use.
func TestTimedDB_ConcurrentMixedOps(t *testing.T) {
	collector := perf.NewCollector(1000)
	tdb := NewTimedDB(openTimedTestDB(t), collector)
	ctx := context.Background()
	tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "seed", "data")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v string
			tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "seed").Scan(&v)
		}()
	}
	wg.Wait()

	if collector.TotalRecorded() != 21 {
		t.Errorf("TotalRecorded = %d, want 21", collector.TotalRecorded())
	}
}
