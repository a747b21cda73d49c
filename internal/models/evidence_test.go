package models

import "testing"

func rec(result ToolCallResult, step int) ToolCallRecord {
	return ToolCallRecord{Step: step, Tool: string(result.Tool), Result: result}
}

func TestBundleRecordKeepsAudit(t *testing.T) {
	var bundle EvidenceBundle
	bundle.Record(rec(Failure(ToolFetchLogs, "log store unavailable"), 1))
	bundle.Record(rec(Success(ToolFetchLogs, "lines", ResultMetadata{Path: PathPrimary}), 2))
	bundle.Record(rec(Success(ToolFetchSource, "code", ResultMetadata{Path: PathPrimary}), 3))

	if len(bundle.Calls) != 3 {
		t.Fatalf("expected 3 audit records, got %d", len(bundle.Calls))
	}
}

func TestBundleSuccessReplacesFailure(t *testing.T) {
	var bundle EvidenceBundle
	bundle.Record(rec(Failure(ToolFetchLogs, "timeout"), 1))
	bundle.Record(rec(Success(ToolFetchLogs, "lines", ResultMetadata{Path: PathPrimary}), 2))

	if bundle.Logs == nil || !bundle.Logs.OK {
		t.Fatalf("retry success should occupy the slot: %+v", bundle.Logs)
	}
}

func TestBundleFailureNeverDisplacesSuccess(t *testing.T) {
	var bundle EvidenceBundle
	bundle.Record(rec(Success(ToolFetchLogs, "lines", ResultMetadata{Path: PathPrimary}), 1))
	bundle.Record(rec(Failure(ToolFetchLogs, "timeout"), 2))

	if bundle.Logs == nil || !bundle.Logs.OK {
		t.Fatalf("failure displaced a success: %+v", bundle.Logs)
	}
	if len(bundle.Calls) != 2 {
		t.Fatalf("expected both calls audited, got %d", len(bundle.Calls))
	}
}

func TestBundleUnknownToolOnlyAudited(t *testing.T) {
	var bundle EvidenceBundle
	bundle.Record(rec(Failure(ToolName("deleteEverything"), "undeclared tool"), 1))

	if bundle.Source != nil || bundle.Logs != nil || bundle.Docs != nil {
		t.Fatalf("unknown tool must not occupy a scoring slot")
	}
	if len(bundle.Calls) != 1 {
		t.Fatalf("unknown tool call should still be audited, got %d", len(bundle.Calls))
	}
}

func TestSuccessFillsByteCount(t *testing.T) {
	result := Success(ToolFetchSource, "12345", ResultMetadata{Path: PathPrimary})
	if result.Metadata.Bytes != 5 {
		t.Fatalf("expected byte count 5, got %d", result.Metadata.Bytes)
	}

	preset := Success(ToolFetchSource, "12345", ResultMetadata{Path: PathPrimary, Bytes: 100})
	if preset.Metadata.Bytes != 100 {
		t.Fatalf("preset byte count must be kept, got %d", preset.Metadata.Bytes)
	}
}

func TestFailureEventSignature(t *testing.T) {
	cases := []struct {
		event FailureEvent
		want  string
	}{
		{FailureEvent{ErrorType: "KeyError", ErrorMessage: "'email'"}, "KeyError: 'email'"},
		{FailureEvent{ErrorType: "KeyError"}, "KeyError"},
		{FailureEvent{ErrorMessage: "'email'"}, "'email'"},
	}
	for _, tc := range cases {
		if got := tc.event.Signature(); got != tc.want {
			t.Errorf("Signature() = %q, want %q", got, tc.want)
		}
	}
}
