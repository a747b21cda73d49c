package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, d := range durations {
		tracker.Observe(d, i+1)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}

	p95 := tracker.Percentile(95)
	if p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if mean := tracker.MeanSteps(); mean != 3 {
		t.Fatalf("expected mean of 3 steps, got %f", mean)
	}
}

func TestLatencyTrackerBoundedWindow(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i)*time.Millisecond, 1)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected window of 3, got %d", tracker.Count())
	}
	// Samples 0-6 have been overwritten; only 7, 8, 9 ms remain.
	if min := tracker.Percentile(0); min != 7*time.Millisecond {
		t.Fatalf("expected oldest samples overwritten, min %v", min)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if tracker.Percentile(95) != 0 || tracker.MeanSteps() != 0 {
		t.Fatalf("empty tracker must report zeroes")
	}
}

func TestFaultKindOf(t *testing.T) {
	reasoningErr := NewReasoningFault("generate", "backend unreachable", nil)
	if kind := FaultKindOf(reasoningErr); kind != FaultReasoning {
		t.Fatalf("expected reasoning kind, got %q", kind)
	}

	storageErr := NewStorageFault("put", "persist analysis", nil)
	if kind := FaultKindOf(storageErr); kind != FaultStorage {
		t.Fatalf("expected storage kind, got %q", kind)
	}

	if kind := FaultKindOf(nil); kind != "" {
		t.Fatalf("expected empty kind for nil error, got %q", kind)
	}
}
