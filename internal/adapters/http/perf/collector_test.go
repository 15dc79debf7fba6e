package perf

import (
	"sync"
	"testing"
	"time"
)

func remote(service, path string, ms float64, failed bool, at time.Time) Entry {
	return Entry{Kind: KindRemote, Service: service, Path: service + " " + path, Failed: failed, DurationMs: ms, Timestamp: at}
}

// TestSnapshot_GroupsByKind tests that each kind lands in its own list.
func TestSnapshot_GroupsByKind(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	c.Record(Entry{Kind: KindRequest, Path: "GET /{$}", StatusCode: 200, DurationMs: 10, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /{$}", StatusCode: 200, DurationMs: 30, Timestamp: now})
	c.Record(remote("member_api", "GET /usuarios", 40, false, now))
	c.Record(remote("face_api", "POST /add_faces/{id}", 90, true, now))
	c.Record(Entry{Kind: KindQuery, Path: "INSERT staged_image", DurationMs: 5, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.TotalRecorded != 5 {
		t.Errorf("TotalRecorded = %d, want 5", snap.TotalRecorded)
	}
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].AvgMs != 20 || snap.SlowestPaths[0].MaxMs != 30 {
		t.Fatalf("SlowestPaths = %+v", snap.SlowestPaths)
	}
	if len(snap.SlowestRemote) != 2 || snap.SlowestRemote[0].Path != "face_api POST /add_faces/{id}" {
		t.Fatalf("SlowestRemote = %+v", snap.SlowestRemote)
	}
	if snap.RemoteFailures != 1 || len(snap.SlowestQueries) != 1 {
		t.Errorf("failures = %d queries = %+v", snap.RemoteFailures, snap.SlowestQueries)
	}
}

// TestSnapshot_Services tests the per-service summary.
func TestSnapshot_Services(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	for i := 1; i <= 20; i++ {
		c.Record(remote("member_api", "GET /usuarios", float64(i), false, now))
	}
	c.Record(remote("face_api", "GET /health", 2000, true, now))
	c.Record(remote("face_api", "GET /health", 15, false, now))

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if len(snap.Services) != 2 {
		t.Fatalf("Services = %+v", snap.Services)
	}
	face, members := snap.Services[0], snap.Services[1]
	if face.Service != "face_api" || face.Calls != 2 || face.Failures != 1 || face.FailureRate() != 0.5 {
		t.Errorf("face = %+v", face)
	}
	if members.Service != "member_api" || members.Failures != 0 || members.P95Ms < 19 || members.P95Ms > 20 {
		t.Errorf("members = %+v", members)
	}
	if (ServiceStat{}).FailureRate() != 0 {
		t.Error("empty service has a failure rate")
	}
}

// TestRecord_RingOverwritesOldest tests the bounded buffer.
func TestRecord_RingOverwritesOldest(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()
	for i := range 5 {
		c.Record(Entry{Kind: KindRequest, Path: "GET /x", DurationMs: float64(i), Timestamp: now})
	}

	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Count != 3 || snap.SlowestPaths[0].AvgMs != 3 {
		t.Errorf("SlowestPaths = %+v, want the last three entries", snap.SlowestPaths)
	}
}

func TestSnapshot_Percentiles(t *testing.T) {
	c := NewCollector(200)
	now := time.Now()
	for i := 1; i <= 100; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /p", DurationMs: float64(i), Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	tests := []struct {
		name     string
		got      float64
		min, max float64
	}{
		{"p50", snap.RequestP50Ms, 49, 51},
		{"p95", snap.RequestP95Ms, 94, 96},
		{"p99", snap.RequestP99Ms, 98, 100},
	}
	for _, tt := range tests {
		if tt.got < tt.min || tt.got > tt.max {
			t.Errorf("%s = %v, want within [%v, %v]", tt.name, tt.got, tt.min, tt.max)
		}
	}
}

// TestSnapshot_WindowAndTopN tests the since cut-off and the list bound.
func TestSnapshot_WindowAndTopN(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	c.Record(remote("member_api", "GET /usuarios", 100, false, now.Add(-2*time.Hour)))
	c.Record(remote("member_api", "DELETE /usuarios/{id}", 10, false, now))
	c.Record(Entry{Kind: KindRequest, Path: "GET /a", DurationMs: 1, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /b", DurationMs: 2, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /c", DurationMs: 3, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Hour), 2)
	if len(snap.SlowestRemote) != 1 || snap.SlowestRemote[0].Path != "member_api DELETE /usuarios/{id}" {
		t.Errorf("SlowestRemote = %+v", snap.SlowestRemote)
	}
	if len(snap.SlowestPaths) != 2 || snap.SlowestPaths[0].Path != "GET /c" || snap.SlowestPaths[1].Path != "GET /b" {
		t.Errorf("SlowestPaths = %+v", snap.SlowestPaths)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	c := NewCollector(1000)
	now := time.Now()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				c.Record(remote("face_api", "GET /health", float64(i), false, now))
			}
		}()
	}
	wg.Wait()
	if c.TotalRecorded() != 1000 {
		t.Errorf("TotalRecorded = %d, want 1000", c.TotalRecorded())
	}
}

func BenchmarkRecord(b *testing.B) {
	c := NewCollector(DefaultRingSize)
	e := Entry{Kind: KindRequest, Path: "GET /{$}", StatusCode: 200, DurationMs: 1.5, Timestamp: time.Now()}
	b.ReportAllocs()
	for b.Loop() {
		c.Record(e)
	}
}
