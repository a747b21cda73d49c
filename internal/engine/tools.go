package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/reasoning"
)

// SourceFetcher retrieves the failing function's implementation text.
type SourceFetcher interface {
	Fetch(ctx context.Context, functionID, version string) models.ToolCallResult
}

// LogFetcher retrieves the bracketed log window of one invocation.
type LogFetcher interface {
	Fetch(ctx context.Context, functionID, requestID string, failedAt time.Time) models.ToolCallResult
}

// KnowledgeFetcher searches the document index for an error signature.
type KnowledgeFetcher interface {
	Fetch(ctx context.Context, query string) models.ToolCallResult
}

// ToolSet is the fixed registry mapping declared tool names to evidence
// source clients. Requests are validated against the tool's schema before
// dispatch; nothing is invoked by arbitrary string lookup.
type ToolSet struct {
	Source    SourceFetcher
	Logs      LogFetcher
	Knowledge KnowledgeFetcher
}

// dispatch validates and runs one tool request. An undeclared tool or
// ill-formed arguments yield a Failure result, never an error: the loop
// records it and continues.
func (t ToolSet) dispatch(ctx context.Context, event models.FailureEvent, req reasoning.ToolRequest) models.ToolCallResult {
	switch models.ToolName(req.Name) {
	case models.ToolFetchSource:
		version, ok := optionalString(req.Args, "version")
		if !ok {
			return models.Failure(models.ToolFetchSource, "invalid arguments: version must be a string")
		}
		return t.Source.Fetch(ctx, event.FunctionID, version)

	case models.ToolFetchLogs:
		failedAt := invocationTime(event)
		return t.Logs.Fetch(ctx, event.FunctionID, event.RequestID, failedAt)

	case models.ToolSearchKnowledge:
		query, ok := requiredString(req.Args, "query")
		if !ok {
			return models.Failure(models.ToolSearchKnowledge, "invalid arguments: query must be a non-empty string")
		}
		return t.Knowledge.Fetch(ctx, query)

	default:
		return models.Failure(models.ToolName(req.Name), fmt.Sprintf("undeclared tool %q", req.Name))
	}
}

func optionalString(args map[string]any, key string) (string, bool) {
	raw, present := args[key]
	if !present || raw == nil {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}

func requiredString(args map[string]any, key string) (string, bool) {
	raw, present := args[key]
	if !present {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// invocationTime extracts the failure timestamp hint from the invocation
// context, falling back to now.
func invocationTime(event models.FailureEvent) time.Time {
	for _, key := range []string{"failed_at", "timestamp"} {
		if raw, ok := event.Invocation[key]; ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				return ts
			}
		}
	}
	return time.Now().UTC()
}
