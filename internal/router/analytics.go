package router

import (
	"sync"
	"time"
)

type cacheOutcome int

const (
	cacheSkip cacheOutcome = iota
	cacheHit
	cacheMiss
)

// RoutingSnapshot is a point-in-time copy of the routing counters with
// derived rates. Totals only move forward between explicit resets.
type RoutingSnapshot struct {
	TotalRoutes      int64            `json:"total_routes"`
	Categories       map[string]int64 `json:"categories"`
	AvgConfidence    float64          `json:"avg_confidence"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	HighConfidence   int64            `json:"high_confidence"`
	LowConfidence    int64            `json:"low_confidence"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	CacheHitRate     float64          `json:"cache_hit_rate"`
	Overrides        int64            `json:"overrides"`
	Fallbacks        int64            `json:"fallbacks"`
	ConfidenceHigh   int64            `json:"confidence_bucket_high"`
	ConfidenceMedium int64            `json:"confidence_bucket_medium"`
	ConfidenceLow    int64            `json:"confidence_bucket_low"`
	UptimeSeconds    float64          `json:"uptime_seconds"`
}

// routingTracker accumulates streaming counters over every Route call. All
// callers share one instance, so every mutation holds the mutex.
type routingTracker struct {
	mu            sync.Mutex
	startedAt     time.Time
	totalRoutes   int64
	categories    map[string]int64
	avgConfidence float64
	avgLatencyMs  float64
	highCount     int64
	lowCount      int64
	hits          int64
	misses        int64
	overrides     int64
	fallbacks     int64
	bucketHigh    int64
	bucketMedium  int64
	bucketLow     int64
}

func newRoutingTracker() *routingTracker {
	return &routingTracker{
		startedAt:  time.Now(),
		categories: make(map[string]int64),
	}
}

func (t *routingTracker) record(d RoutingDecision, latency time.Duration, outcome cacheOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalRoutes++
	n := float64(t.totalRoutes)
	t.categories[d.PrimaryCategory]++
	t.avgConfidence = (t.avgConfidence*(n-1) + d.Confidence) / n
	t.avgLatencyMs = (t.avgLatencyMs*(n-1) + float64(latency.Microseconds())/1000.0) / n

	if d.Confidence > 0.8 {
		t.highCount++
	}
	if d.Confidence < 0.5 {
		t.lowCount++
	}
	switch {
	case d.Confidence > 0.8:
		t.bucketHigh++
	case d.Confidence > 0.5:
		t.bucketMedium++
	default:
		t.bucketLow++
	}

	switch outcome {
	case cacheHit:
		t.hits++
	case cacheMiss:
		t.misses++
	}
	if d.OverrideApplied {
		t.overrides++
	}
	if d.IsFallback {
		t.fallbacks++
	}
}

func (t *routingTracker) snapshot() RoutingSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	categories := make(map[string]int64, len(t.categories))
	for k, v := range t.categories {
		categories[k] = v
	}
	s := RoutingSnapshot{
		TotalRoutes:      t.totalRoutes,
		Categories:       categories,
		AvgConfidence:    t.avgConfidence,
		AvgLatencyMs:     t.avgLatencyMs,
		HighConfidence:   t.highCount,
		LowConfidence:    t.lowCount,
		CacheHits:        t.hits,
		CacheMisses:      t.misses,
		Overrides:        t.overrides,
		Fallbacks:        t.fallbacks,
		ConfidenceHigh:   t.bucketHigh,
		ConfidenceMedium: t.bucketMedium,
		ConfidenceLow:    t.bucketLow,
		UptimeSeconds:    time.Since(t.startedAt).Seconds(),
	}
	if lookups := t.hits + t.misses; lookups > 0 {
		s.CacheHitRate = float64(t.hits) / float64(lookups)
	}
	return s
}

func (t *routingTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = time.Now()
	t.totalRoutes = 0
	t.categories = make(map[string]int64)
	t.avgConfidence = 0
	t.avgLatencyMs = 0
	t.highCount = 0
	t.lowCount = 0
	t.hits = 0
	t.misses = 0
	t.overrides = 0
	t.fallbacks = 0
	t.bucketHigh = 0
	t.bucketMedium = 0
	t.bucketLow = 0
}
