package maintenance

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/router"
)

func TestReporterEmit(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("maintenance", logging.Options{Output: &buf})

	r := NewReporter("0 0 * * * *", log)
	r.OnReport = func() Report {
		return Report{
			Routing:    router.RoutingSnapshot{TotalRoutes: 42, AvgConfidence: 0.75},
			Extraction: memory.ExtractionSnapshot{TotalExtractions: 7, AvgTokens: 120},
		}
	}

	r.emit()

	out := buf.String()
	if !strings.Contains(out, "routing stats") {
		t.Errorf("output missing routing stats line: %s", out)
	}
	if !strings.Contains(out, "\"total_routes\":42") {
		t.Errorf("output missing route count: %s", out)
	}
	if !strings.Contains(out, "extraction stats") {
		t.Errorf("output missing extraction stats line: %s", out)
	}
	if !strings.Contains(out, "\"total_extractions\":7") {
		t.Errorf("output missing extraction count: %s", out)
	}
}

func TestReporterEmit_NoSource(t *testing.T) {
	r := NewReporter("0 0 * * * *", logging.Nop{})
	// Should not panic when OnReport is nil.
	r.emit()
}

func TestReporterStart_InvalidSchedule(t *testing.T) {
	r := NewReporter("not a schedule", logging.Nop{})
	if err := r.Start(); err == nil {
		r.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestReporterStartStop(t *testing.T) {
	var ticks atomic.Int32

	// Every second, so a short wait observes at least one tick.
	r := NewReporter("*/1 * * * * *", logging.Nop{})
	r.OnReport = func() Report {
		ticks.Add(1)
		return Report{}
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for ticks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if ticks.Load() == 0 {
		r.Stop()
		t.Fatal("expected at least one tick before Stop")
	}

	r.Stop()
	after := ticks.Load()
	time.Sleep(1300 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("ticks continued after Stop; count changed from %d to %d", after, ticks.Load())
	}
}

func TestReporterStartTwice(t *testing.T) {
	r := NewReporter("0 0 * * * *", logging.Nop{})
	if err := r.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	r.Stop()
	// Stop again is a no-op.
	r.Stop()
}
