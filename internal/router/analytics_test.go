package router

import (
	"math"
	"testing"
	"time"
)

func TestTrackerStreamingMeans(t *testing.T) {
	tr := newRoutingTracker()
	confidences := []float64{0.9, 0.5, 0.7}
	for _, c := range confidences {
		tr.record(RoutingDecision{PrimaryCategory: "work_career", Confidence: c}, 10*time.Millisecond, cacheMiss)
	}

	s := tr.snapshot()
	if s.TotalRoutes != 3 {
		t.Fatalf("total=%d, want 3", s.TotalRoutes)
	}
	if math.Abs(s.AvgConfidence-0.7) > 1e-9 {
		t.Fatalf("avg confidence=%v, want 0.7", s.AvgConfidence)
	}
	if math.Abs(s.AvgLatencyMs-10.0) > 0.5 {
		t.Fatalf("avg latency=%v, want about 10ms", s.AvgLatencyMs)
	}
	if s.Categories["work_career"] != 3 {
		t.Fatalf("category count=%d, want 3", s.Categories["work_career"])
	}
}

func TestTrackerBucketsAndCounts(t *testing.T) {
	tr := newRoutingTracker()
	tr.record(RoutingDecision{PrimaryCategory: "a", Confidence: 0.9, OverrideApplied: true}, 0, cacheMiss)
	tr.record(RoutingDecision{PrimaryCategory: "a", Confidence: 0.6}, 0, cacheHit)
	tr.record(RoutingDecision{PrimaryCategory: "b", Confidence: 0.3, IsFallback: true}, 0, cacheSkip)

	s := tr.snapshot()
	if s.ConfidenceHigh != 1 || s.ConfidenceMedium != 1 || s.ConfidenceLow != 1 {
		t.Fatalf("buckets=%d/%d/%d, want 1/1/1", s.ConfidenceHigh, s.ConfidenceMedium, s.ConfidenceLow)
	}
	if s.HighConfidence != 1 {
		t.Fatalf("high count=%d, want 1", s.HighConfidence)
	}
	if s.LowConfidence != 1 {
		t.Fatalf("low count=%d, want 1", s.LowConfidence)
	}
	if s.CacheHits != 1 || s.CacheMisses != 1 {
		t.Fatalf("cache hits/misses=%d/%d, want 1/1", s.CacheHits, s.CacheMisses)
	}
	if math.Abs(s.CacheHitRate-0.5) > 1e-9 {
		t.Fatalf("hit rate=%v, want 0.5", s.CacheHitRate)
	}
	if s.Overrides != 1 {
		t.Fatalf("overrides=%d, want 1", s.Overrides)
	}
	if s.Fallbacks != 1 {
		t.Fatalf("fallbacks=%d, want 1", s.Fallbacks)
	}
}

func TestTrackerMonotonicUntilReset(t *testing.T) {
	tr := newRoutingTracker()
	tr.record(RoutingDecision{PrimaryCategory: "a", Confidence: 0.5}, 0, cacheMiss)
	before := tr.snapshot()
	tr.record(RoutingDecision{PrimaryCategory: "a", Confidence: 0.5}, 0, cacheMiss)
	after := tr.snapshot()
	if after.TotalRoutes < before.TotalRoutes || after.CacheMisses < before.CacheMisses {
		t.Fatal("counters decreased without reset")
	}

	tr.reset()
	s := tr.snapshot()
	if s.TotalRoutes != 0 || s.AvgConfidence != 0 || len(s.Categories) != 0 {
		t.Fatalf("reset left residue: %+v", s)
	}
}
