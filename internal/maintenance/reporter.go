// Package maintenance runs the periodic housekeeping of a long-lived recall
// process. Today that is a single cron job that logs the routing and
// extraction analytics snapshots, which gives deployments a usage trail
// without any metrics backend.
package maintenance

import (
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/router"
)

// Report bundles the two analytics snapshots one reporter tick emits.
type Report struct {
	Routing    router.RoutingSnapshot    `json:"routing"`
	Extraction memory.ExtractionSnapshot `json:"extraction"`
}

// Reporter logs a Report on a cron schedule. Schedules use the six-field
// form with a leading seconds column. OnReport supplies the snapshots; a
// nil OnReport makes ticks no-ops.
type Reporter struct {
	schedule string
	log      logging.Logger
	OnReport func() Report

	mu   sync.Mutex
	cron *rcron.Cron
}

func NewReporter(schedule string, log logging.Logger) *Reporter {
	if log == nil {
		log = logging.Nop{}
	}
	return &Reporter{schedule: schedule, log: log}
}

func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := rcron.New(rcron.WithSeconds())
	if _, err := c.AddFunc(r.schedule, r.emit); err != nil {
		return fmt.Errorf("schedule stats report: %w", err)
	}
	c.Start()
	r.cron = c
	r.log.Info("stats reporter started", "schedule", r.schedule)
	return nil
}

func (r *Reporter) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		r.log.Warn("stats reporter stop timeout")
	}
	r.log.Info("stats reporter stopped")
}

func (r *Reporter) emit() {
	if r.OnReport == nil {
		return
	}
	rep := r.OnReport()
	r.log.Info("routing stats",
		"total_routes", rep.Routing.TotalRoutes,
		"avg_confidence", rep.Routing.AvgConfidence,
		"avg_latency_ms", rep.Routing.AvgLatencyMs,
		"cache_hit_rate", rep.Routing.CacheHitRate,
		"overrides", rep.Routing.Overrides,
		"fallbacks", rep.Routing.Fallbacks,
	)
	r.log.Info("extraction stats",
		"total_extractions", rep.Extraction.TotalExtractions,
		"avg_memories", rep.Extraction.AvgMemories,
		"avg_tokens", rep.Extraction.AvgTokens,
		"avg_latency_ms", rep.Extraction.AvgLatencyMs,
		"fallback_expansions", rep.Extraction.FallbackExpansions,
		"store_errors", rep.Extraction.StoreErrors,
		"mark_accessed_failures", rep.Extraction.MarkAccessedFailures,
	)
}
