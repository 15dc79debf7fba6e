// Package perf keeps a bounded in-memory record of request, remote call and
// staging query timings for the /admin/perf page.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// EntryKind distinguishes where a timing came from.
type EntryKind uint8

const (
	// KindRequest is an inbound console request.
	KindRequest EntryKind = iota
	// KindRemote is an outbound call to the member or face service.
	KindRemote
	// KindQuery is a staging database statement.
	KindQuery
)

// Entry is a single timing record.
type Entry struct {
	Kind       EntryKind
	Service    string // remote calls only: member_api, face_api, webcam
	Path       string // "GET /members/{id}/edit", "member_api GET /usuarios/{id}" or "INSERT staged_image"
	StatusCode int    // 0 when no response was received
	Failed     bool   // transport error or 5xx
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring of entries. When full the oldest entry is
// overwritten; aggregation happens on read.
type Collector struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	total atomic.Int64
}

// NewCollector creates a collector holding the last size entries.
// POST: non-positive sizes fall back to DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{ring: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry once the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next = (c.next + 1) % len(c.ring)
	c.mu.Unlock()
	c.total.Add(1)
}

// TotalRecorded returns the number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.total.Load()
}

// Snapshot is the aggregated view over a time window.
type Snapshot struct {
	TotalRecorded  int64
	RequestP50Ms   float64
	RequestP95Ms   float64
	RequestP99Ms   float64
	RemoteFailures int
	Services       []ServiceStat
	SlowestPaths   []PathStat
	SlowestRemote  []PathStat
	SlowestQueries []PathStat
}

// PathStat aggregates one route, remote operation or statement.
type PathStat struct {
	Path    string
	AvgMs   float64
	MaxMs   float64
	Count   int
	Failed  int
	TotalMs float64
}

// ServiceStat summarises the calls made to one remote service, so an
// unreachable face service stands out from a slow member store.
type ServiceStat struct {
	Service  string
	Calls    int
	Failures int
	P95Ms    float64
}

// FailureRate returns the share of failed calls, 0 with no calls.
func (s ServiceStat) FailureRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Calls)
}

// window returns the entries recorded at or after since.
func (c *Collector) window(since time.Time) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.ring))
	for _, e := range c.ring {
		if !e.Timestamp.IsZero() && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot aggregates the entries recorded at or after since.
// PRE: topN > 0
// POST: each Slowest list holds at most topN stats, slowest average first
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	entries := c.window(since)

	byKind := map[EntryKind]map[string]*PathStat{
		KindRequest: {},
		KindRemote:  {},
		KindQuery:   {},
	}
	var requests []float64
	serviceDurations := map[string][]float64{}
	services := map[string]*ServiceStat{}
	snap := Snapshot{TotalRecorded: c.TotalRecorded()}

	for _, e := range entries {
		stats, ok := byKind[e.Kind]
		if !ok {
			continue
		}
		switch e.Kind {
		case KindRequest:
			requests = append(requests, e.DurationMs)
		case KindRemote:
			svc := services[e.Service]
			if svc == nil {
				svc = &ServiceStat{Service: e.Service}
				services[e.Service] = svc
			}
			svc.Calls++
			if e.Failed {
				svc.Failures++
				snap.RemoteFailures++
			}
			serviceDurations[e.Service] = append(serviceDurations[e.Service], e.DurationMs)
		}
		add(stats, e)
	}

	snap.SlowestPaths = slowest(byKind[KindRequest], topN)
	snap.SlowestRemote = slowest(byKind[KindRemote], topN)
	snap.SlowestQueries = slowest(byKind[KindQuery], topN)

	if len(requests) > 0 {
		slices.Sort(requests)
		snap.RequestP50Ms = percentile(requests, 50)
		snap.RequestP95Ms = percentile(requests, 95)
		snap.RequestP99Ms = percentile(requests, 99)
	}
	for name, svc := range services {
		d := serviceDurations[name]
		slices.Sort(d)
		svc.P95Ms = percentile(d, 95)
		snap.Services = append(snap.Services, *svc)
	}
	slices.SortFunc(snap.Services, func(a, b ServiceStat) int { return cmp.Compare(a.Service, b.Service) })
	return snap
}

func add(stats map[string]*PathStat, e Entry) {
	s := stats[e.Path]
	if s == nil {
		s = &PathStat{Path: e.Path}
		stats[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	s.MaxMs = max(s.MaxMs, e.DurationMs)
	if e.Failed {
		s.Failed++
	}
}

// percentile interpolates the p-th percentile of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// slowest returns up to n stats ordered by average duration, ties by path.
func slowest(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return list[:min(n, len(list))]
}
