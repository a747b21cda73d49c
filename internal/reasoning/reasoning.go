// Package reasoning defines the tool-calling reasoning contract and its
// Gemini-backed implementation. The orchestration loop only sees the Decider
// and Run interfaces, so tests script the loop with fakes.
package reasoning

import (
	"context"

	"github.com/lumenstack/lumen-rca/internal/models"
)

// ToolRequest is the reasoning model's request to run one declared tool.
type ToolRequest struct {
	Name string
	Args map[string]any
}

// Decision is the structured outcome of one reasoning step: exactly one of
// Tool or Narrative is set. Trace carries opaque reasoning text which is
// logged and stored but never acted on.
type Decision struct {
	Tool      *ToolRequest
	Narrative string
	Trace     string
}

// Run is one analysis conversation. The loop alternates Next and Observe;
// implementations carry the accumulated conversation state so each Next sees
// every earlier tool outcome.
type Run interface {
	// Next asks for the next directive. Errors are fatal reasoning faults.
	Next(ctx context.Context) (Decision, error)
	// Observe feeds a dispatched tool's outcome back into the conversation.
	Observe(req ToolRequest, result models.ToolCallResult)
}

// Decider opens reasoning runs, one per failure event.
type Decider interface {
	NewRun(event models.FailureEvent) Run
}
