package storage

import (
	"context"
	"testing"
	"time"

	"coachportal/internal/adapters/http/perf"
)

func TestTimedDB_SatisfiesSQLDB(t *testing.T) {
	db := openTestDB(t)
	var sqldb SQLDB = NewTimedDB(db, nil)
	if sqldb == nil {
		t.Fatal("TimedDB does not satisfy SQLDB")
	}
}

func TestTimedDB_RecordsToCollector(t *testing.T) {
	db := openTestDB(t)
	collector := perf.NewCollector(16)
	timed := NewTimedDB(db, collector)

	if _, err := timed.ExecContext(context.Background(), "CREATE TABLE t (id TEXT)"); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	rows, err := timed.QueryContext(context.Background(), "SELECT id FROM t")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	rows.Close()

	if got := collector.TotalRecorded(); got != 2 {
		t.Errorf("collector entries = %d, want 2", got)
	}
	snap := collector.Snapshot(time.Time{}, 10)
	if len(snap.SlowestQueries) == 0 {
		t.Error("expected query stats in snapshot")
	}
}

func TestTimedDB_RawDB(t *testing.T) {
	db := openTestDB(t)
	timed := NewTimedDB(db, nil)
	if timed.RawDB() != db {
		t.Error("RawDB did not return the wrapped connection")
	}
}
