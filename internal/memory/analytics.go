package memory

import (
	"sync"
	"time"
)

// ExtractionSnapshot is a point-in-time copy of the extraction counters.
// Totals only move forward between explicit resets.
type ExtractionSnapshot struct {
	TotalExtractions     int64            `json:"total_extractions"`
	Categories           map[string]int64 `json:"categories"`
	AvgMemories          float64          `json:"avg_memories"`
	AvgTokens            float64          `json:"avg_tokens"`
	AvgLatencyMs         float64          `json:"avg_latency_ms"`
	FallbackExpansions   int64            `json:"fallback_expansions"`
	StoreErrors          int64            `json:"store_errors"`
	MarkAccessedFailures int64            `json:"mark_accessed_failures"`
	UptimeSeconds        float64          `json:"uptime_seconds"`
}

// extractionTracker accumulates streaming counters over every Extract call.
// All callers share one instance, so every mutation holds the mutex.
type extractionTracker struct {
	mu           sync.Mutex
	startedAt    time.Time
	total        int64
	categories   map[string]int64
	avgMemories  float64
	avgTokens    float64
	avgLatencyMs float64
	fallbacks    int64
	storeErrors  int64
	markFailures int64
}

func newExtractionTracker() *extractionTracker {
	return &extractionTracker{
		startedAt:  time.Now(),
		categories: make(map[string]int64),
	}
}

func (t *extractionTracker) record(category string, memories, tokens int, expanded bool, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	n := float64(t.total)
	t.categories[category]++
	t.avgMemories = (t.avgMemories*(n-1) + float64(memories)) / n
	t.avgTokens = (t.avgTokens*(n-1) + float64(tokens)) / n
	t.avgLatencyMs = (t.avgLatencyMs*(n-1) + float64(latency.Microseconds())/1000.0) / n
	if expanded {
		t.fallbacks++
	}
}

func (t *extractionTracker) recordStoreError() {
	t.mu.Lock()
	t.storeErrors++
	t.mu.Unlock()
}

func (t *extractionTracker) recordMarkFailure() {
	t.mu.Lock()
	t.markFailures++
	t.mu.Unlock()
}

func (t *extractionTracker) snapshot() ExtractionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	categories := make(map[string]int64, len(t.categories))
	for k, v := range t.categories {
		categories[k] = v
	}
	return ExtractionSnapshot{
		TotalExtractions:     t.total,
		Categories:           categories,
		AvgMemories:          t.avgMemories,
		AvgTokens:            t.avgTokens,
		AvgLatencyMs:         t.avgLatencyMs,
		FallbackExpansions:   t.fallbacks,
		StoreErrors:          t.storeErrors,
		MarkAccessedFailures: t.markFailures,
		UptimeSeconds:        time.Since(t.startedAt).Seconds(),
	}
}

func (t *extractionTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = time.Now()
	t.total = 0
	t.categories = make(map[string]int64)
	t.avgMemories = 0
	t.avgTokens = 0
	t.avgLatencyMs = 0
	t.fallbacks = 0
	t.storeErrors = 0
	t.markFailures = 0
}
