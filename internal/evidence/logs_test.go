package evidence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lumenstack/lumen-rca/internal/repo"
)

type fakeLogStore struct {
	lines []repo.LogLine
	err   error
}

func (f *fakeLogStore) QueryLines(ctx context.Context, functionID string, start, end time.Time, limit int) ([]repo.LogLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func logWindow(messages ...string) []repo.LogLine {
	now := time.Now()
	lines := make([]repo.LogLine, 0, len(messages))
	for i, msg := range messages {
		lines = append(lines, repo.LogLine{Timestamp: now.Add(time.Duration(i) * time.Second), Message: msg})
	}
	return lines
}

func TestLogWindowCompleteBracket(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R0",
		"unrelated warmup",
		"REPORT RequestId: R0 Duration: 3 ms",
		"START RequestId: R1",
		"loading payload",
		"KeyError: 'email'",
		"REPORT RequestId: R1 Duration: 12 ms",
		"START RequestId: R2",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if !result.OK {
		t.Fatalf("expected success, got failure: %s", result.Reason)
	}
	if result.Metadata.Partial {
		t.Fatalf("expected complete capture, got partial")
	}

	want := strings.Join([]string{
		"START RequestId: R1",
		"loading payload",
		"KeyError: 'email'",
		"REPORT RequestId: R1 Duration: 12 ms",
	}, "\n")
	if result.Payload != want {
		t.Fatalf("captured window mismatch:\n got: %q\nwant: %q", result.Payload, want)
	}
	if result.Metadata.Lines != 4 {
		t.Fatalf("expected 4 captured lines, got %d", result.Metadata.Lines)
	}
}

func TestLogWindowExcludesInterleavedInvocations(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R1",
		"step one",
		"START RequestId: R2",
		"line from the other invocation",
		"REPORT RequestId: R2 Duration: 5 ms",
		"step two",
		"REPORT RequestId: R1 Duration: 40 ms",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if !result.OK {
		t.Fatalf("expected success, got failure: %s", result.Reason)
	}
	if strings.Contains(result.Payload, "other invocation") {
		t.Fatalf("captured window leaked another invocation's line: %q", result.Payload)
	}
	if !strings.Contains(result.Payload, "step one") || !strings.Contains(result.Payload, "step two") {
		t.Fatalf("captured window dropped target lines: %q", result.Payload)
	}
}

func TestLogWindowExcludesInvocationOpenBeforeTarget(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R2",
		"START RequestId: R1",
		"line belonging to R2",
		"REPORT RequestId: R2 Duration: 5 ms",
		"REPORT RequestId: R1 Duration: 40 ms",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if !result.OK {
		t.Fatalf("expected success, got failure: %s", result.Reason)
	}
	if strings.Contains(result.Payload, "belonging to R2") {
		t.Fatalf("line from an invocation open before the target leaked: %q", result.Payload)
	}
	want := strings.Join([]string{
		"START RequestId: R1",
		"REPORT RequestId: R1 Duration: 40 ms",
	}, "\n")
	if result.Payload != want {
		t.Fatalf("captured window mismatch:\n got: %q\nwant: %q", result.Payload, want)
	}
}

func TestLogWindowMissingStartMarker(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R9",
		"unrelated",
		"REPORT RequestId: R9 Duration: 2 ms",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if result.OK {
		t.Fatalf("expected failure when start marker absent")
	}
	if result.Reason != "start marker not found" {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
}

func TestLogWindowMissingEndMarkerIsPartial(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R1",
		"still running",
		"last line in window",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if !result.OK {
		t.Fatalf("partial capture must be a success, got failure: %s", result.Reason)
	}
	if !result.Metadata.Partial {
		t.Fatalf("expected partial metadata flag")
	}
	if !strings.Contains(result.Payload, "last line in window") {
		t.Fatalf("partial capture should run to end of window: %q", result.Payload)
	}
}

func TestLogWindowEndMarkerAccepted(t *testing.T) {
	store := &fakeLogStore{lines: logWindow(
		"START RequestId: R1",
		"work",
		"END RequestId: R1",
	)}
	extractor := NewLogWindowExtractor(nil, store, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if !result.OK || result.Metadata.Partial {
		t.Fatalf("END marker should close the bracket: ok=%v partial=%v", result.OK, result.Metadata.Partial)
	}
}

func TestLogWindowQueryFailure(t *testing.T) {
	extractor := NewLogWindowExtractor(nil, &fakeLogStore{err: fmt.Errorf("connection refused")}, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if result.OK {
		t.Fatalf("expected failure on query error")
	}
	if result.Reason != "log store unavailable" {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
}

func TestLogWindowQueryTimeout(t *testing.T) {
	extractor := NewLogWindowExtractor(nil, &fakeLogStore{err: context.DeadlineExceeded}, time.Minute, 100)

	result := extractor.Fetch(context.Background(), "fn-1", "R1", time.Now())
	if result.OK {
		t.Fatalf("expected failure on timeout")
	}
	if result.Reason != "log store query timed out" {
		t.Fatalf("timeout should carry a distinct reason, got: %s", result.Reason)
	}
}
