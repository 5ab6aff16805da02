package perf

import (
	"fmt"
	"testing"
	"time"
)

func TestCollector_RecordAndTotal(t *testing.T) {
	c := NewCollector(16)
	for i := 0; i < 5; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "/api/session", DurationMs: 1, Timestamp: time.Now()})
	}
	if got := c.TotalRecorded(); got != 5 {
		t.Errorf("TotalRecorded = %d, want 5", got)
	}
}

func TestCollector_RingOverwrite(t *testing.T) {
	c := NewCollector(4)
	for i := 0; i < 10; i++ {
		c.Record(Entry{Kind: KindRequest, Path: fmt.Sprintf("/p%d", i), DurationMs: 1, Timestamp: time.Now()})
	}
	snap := c.Snapshot(time.Time{}, 10)
	// Only the last 4 entries survive in the ring.
	total := 0
	for _, s := range snap.SlowestPaths {
		total += s.Count
	}
	if total != 4 {
		t.Errorf("entries in snapshot = %d, want 4", total)
	}
	if snap.TotalRequests != 10 {
		t.Errorf("TotalRequests = %d, want 10", snap.TotalRequests)
	}
}

func TestCollector_SnapshotPercentiles(t *testing.T) {
	c := NewCollector(128)
	now := time.Now()
	for i := 1; i <= 100; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "/api/session", DurationMs: float64(i), Timestamp: now})
	}
	snap := c.Snapshot(time.Time{}, 5)
	if snap.RequestP50Ms < 49 || snap.RequestP50Ms > 52 {
		t.Errorf("P50 = %f, want ~50", snap.RequestP50Ms)
	}
	if snap.RequestP95Ms < 94 || snap.RequestP95Ms > 97 {
		t.Errorf("P95 = %f, want ~95", snap.RequestP95Ms)
	}
}

func TestCollector_SnapshotSeparatesKinds(t *testing.T) {
	c := NewCollector(16)
	now := time.Now()
	c.Record(Entry{Kind: KindRequest, Path: "GET /api/session", DurationMs: 2, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "profile.GetByID", DurationMs: 8, Timestamp: now})

	snap := c.Snapshot(time.Time{}, 5)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "GET /api/session" {
		t.Errorf("unexpected request stats: %+v", snap.SlowestPaths)
	}
	if len(snap.SlowestQueries) != 1 || snap.SlowestQueries[0].Path != "profile.GetByID" {
		t.Errorf("unexpected query stats: %+v", snap.SlowestQueries)
	}
}

func TestCollector_SnapshotSinceFilter(t *testing.T) {
	c := NewCollector(16)
	old := time.Now().Add(-time.Hour)
	c.Record(Entry{Kind: KindRequest, Path: "/old", DurationMs: 1, Timestamp: old})
	c.Record(Entry{Kind: KindRequest, Path: "/new", DurationMs: 1, Timestamp: time.Now()})

	snap := c.Snapshot(time.Now().Add(-time.Minute), 5)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "/new" {
		t.Errorf("since filter failed: %+v", snap.SlowestPaths)
	}
}
