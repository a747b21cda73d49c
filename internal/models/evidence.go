package models

import "time"

// ToolName enumerates the declared evidence tools.
type ToolName string

const (
	ToolFetchSource     ToolName = "fetchSourceCode"
	ToolFetchLogs       ToolName = "fetchExecutionLogs"
	ToolSearchKnowledge ToolName = "searchKnowledgeBase"
)

// RetrievalPath records which retrieval strategy satisfied a tool call.
type RetrievalPath string

const (
	PathPrimary  RetrievalPath = "primary"
	PathFallback RetrievalPath = "fallback"
	PathNone     RetrievalPath = "none"
)

// ResultMetadata carries retrieval provenance and size measures used by the
// confidence synthesizer.
type ResultMetadata struct {
	Path      RetrievalPath `json:"path"`
	Bytes     int           `json:"bytes"`
	Truncated bool          `json:"truncated,omitempty"`
	Partial   bool          `json:"partial,omitempty"`
	Lines     int           `json:"lines,omitempty"`
}

// KnowledgeDoc is one ranked snippet returned by the document index.
type KnowledgeDoc struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// ToolCallResult is the uniform outcome contract shared by all evidence
// source clients. Failures are values, never Go errors.
type ToolCallResult struct {
	Tool     ToolName       `json:"tool"`
	OK       bool           `json:"ok"`
	Payload  string         `json:"payload,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Docs     []KnowledgeDoc `json:"docs,omitempty"`
	Metadata ResultMetadata `json:"metadata"`
}

// Success constructs a successful result for the given tool.
func Success(tool ToolName, payload string, md ResultMetadata) ToolCallResult {
	if md.Bytes == 0 {
		md.Bytes = len(payload)
	}
	return ToolCallResult{Tool: tool, OK: true, Payload: payload, Metadata: md}
}

// Failure constructs a failed result carrying only the reason.
func Failure(tool ToolName, reason string) ToolCallResult {
	return ToolCallResult{Tool: tool, OK: false, Reason: reason, Metadata: ResultMetadata{Path: PathNone}}
}

// ToolCallRecord is one audit entry for a dispatched (or rejected) tool call.
type ToolCallRecord struct {
	Step      int            `json:"step"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    ToolCallResult `json:"result"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// EvidenceBundle accumulates at most one scoring result per tool plus the
// full ordered audit trail of every call made during a run.
type EvidenceBundle struct {
	Source *ToolCallResult  `json:"source,omitempty"`
	Logs   *ToolCallResult  `json:"logs,omitempty"`
	Docs   *ToolCallResult  `json:"docs,omitempty"`
	Calls  []ToolCallRecord `json:"calls,omitempty"`
}

// Record appends the call to the audit trail and updates the scoring slot
// for its tool. A later success replaces an earlier failure; a failure never
// displaces a success already in the slot.
func (b *EvidenceBundle) Record(rec ToolCallRecord) {
	b.Calls = append(b.Calls, rec)

	result := rec.Result
	slot := b.slot(result.Tool)
	if slot == nil {
		return
	}
	if *slot == nil || result.OK || !(*slot).OK {
		r := result
		*slot = &r
	}
}

func (b *EvidenceBundle) slot(tool ToolName) **ToolCallResult {
	switch tool {
	case ToolFetchSource:
		return &b.Source
	case ToolFetchLogs:
		return &b.Logs
	case ToolSearchKnowledge:
		return &b.Docs
	default:
		return nil
	}
}
