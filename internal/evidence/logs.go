package evidence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/repo"
)

// LogQuerier is the backend required by the log window extractor.
type LogQuerier interface {
	QueryLines(ctx context.Context, functionID string, start, end time.Time, limit int) ([]repo.LogLine, error)
}

// LogWindowExtractor queries a time window around the failure and brackets
// the returned superset down to the target invocation's lines. The store
// interleaves concurrent invocations, so unmarked lines are only attributed
// to the target while no other invocation is open.
type LogWindowExtractor struct {
	logger   *slog.Logger
	logs     LogQuerier
	window   time.Duration
	maxLines int
}

// NewLogWindowExtractor constructs an extractor over the log store backend.
func NewLogWindowExtractor(logger *slog.Logger, logs LogQuerier, window time.Duration, maxLines int) *LogWindowExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogWindowExtractor{
		logger:   logger,
		logs:     logs,
		window:   window,
		maxLines: maxLines,
	}
}

// Fetch returns the target invocation's log lines. A window with no start
// marker is a failure; a start marker with no terminal marker inside the
// window yields a success flagged partial.
func (e *LogWindowExtractor) Fetch(ctx context.Context, functionID, requestID string, failedAt time.Time) models.ToolCallResult {
	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}
	start := failedAt.Add(-e.window)
	end := failedAt.Add(e.window / 4)

	lines, err := e.logs.QueryLines(ctx, functionID, start, end, e.maxLines)
	if err != nil {
		if timedOut(err) {
			return models.Failure(models.ToolFetchLogs, "log store query timed out")
		}
		e.logger.Debug("log query failed",
			slog.String("function_id", functionID), slog.String("request_id", requestID), slog.Any("error", err))
		return models.Failure(models.ToolFetchLogs, "log store unavailable")
	}

	captured, complete, found := bracketInvocation(lines, requestID)
	if !found {
		return models.Failure(models.ToolFetchLogs, "start marker not found")
	}

	md := models.ResultMetadata{
		Path:    models.PathPrimary,
		Lines:   len(captured),
		Partial: !complete,
	}
	return models.Success(models.ToolFetchLogs, strings.Join(captured, "\n"), md)
}

// markerKind classifies platform marker lines.
type markerKind int

const (
	markerNone markerKind = iota
	markerStart
	markerEnd
)

// parseMarker recognizes the platform invocation markers
// "START RequestId: <id>" and "REPORT RequestId: <id>" (END is accepted as
// a terminal synonym).
func parseMarker(message string) (markerKind, string) {
	trimmed := strings.TrimSpace(message)
	for _, prefix := range []string{"START RequestId: ", "START RequestId:"} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			return markerStart, firstField(rest)
		}
	}
	for _, prefix := range []string{"REPORT RequestId: ", "REPORT RequestId:", "END RequestId: ", "END RequestId:"} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			return markerEnd, firstField(rest)
		}
	}
	return markerNone, ""
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// bracketInvocation scans the window in order and keeps exactly the target
// invocation's lines. Marker lines attribute themselves; plain lines are
// attributed to the target only while it is the sole open invocation, since
// a plain line emitted while another invocation is open cannot be safely
// assigned to either. Foreign START/END markers are tracked from the first
// line of the window: an invocation that opened before the target's START is
// still open, and its plain lines must not leak into the capture.
func bracketInvocation(lines []repo.LogLine, requestID string) (captured []string, complete, found bool) {
	capturing := false
	openOther := make(map[string]struct{})

	for _, line := range lines {
		kind, id := parseMarker(line.Message)
		switch kind {
		case markerStart:
			if id == requestID {
				capturing = true
				found = true
				captured = append(captured, line.Message)
			} else {
				openOther[id] = struct{}{}
			}
		case markerEnd:
			if id == requestID {
				if capturing {
					captured = append(captured, line.Message)
					return captured, true, true
				}
			} else {
				delete(openOther, id)
			}
		default:
			if capturing && len(openOther) == 0 {
				captured = append(captured, line.Message)
			}
		}
	}
	return captured, false, found
}
