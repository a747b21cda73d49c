package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/utils"
)

const systemInstruction = `You are a root-cause analyst for failed serverless function invocations.
You are given one failure event. Use the declared tools to gather evidence:
the function's source code, the execution logs of the failing invocation, and
known failure patterns from the knowledge base. Call a tool when its evidence
would sharpen your diagnosis; do not call a tool whose result you already have.
When you have enough evidence, reply with plain text: the root cause followed
by a concrete suggested fix. Never reply with an empty message.`

// GeminiDecider is the production Decider backed by the Gemini API.
type GeminiDecider struct {
	logger  *slog.Logger
	client  *genai.Client
	model   string
	catalog []*genai.Tool
}

// NewGeminiDecider dials the Gemini API and declares the evidence tools.
func NewGeminiDecider(ctx context.Context, logger *slog.Logger, apiKey, model string) (*GeminiDecider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reasoning API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiDecider{
		logger:  logger,
		client:  client,
		model:   model,
		catalog: []*genai.Tool{{FunctionDeclarations: toolDeclarations()}},
	}, nil
}

func toolDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        string(models.ToolFetchSource),
			Description: "Fetch the source code of the failing function.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"version": {
						Type:        genai.TypeString,
						Description: "Optional function version to fetch; omit for the deployed version.",
					},
				},
			},
		},
		{
			Name:        string(models.ToolFetchLogs),
			Description: "Fetch the execution log lines of the failing invocation, bracketed to exactly that invocation.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{},
			},
		},
		{
			Name:        string(models.ToolSearchKnowledge),
			Description: "Search the knowledge base for documents about similar failures.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {
						Type:        genai.TypeString,
						Description: "Free-text error signature to search for.",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

// NewRun seeds a conversation with the failure event.
func (d *GeminiDecider) NewRun(event models.FailureEvent) Run {
	return &geminiRun{
		decider: d,
		contents: []*genai.Content{
			genai.NewContentFromText(renderEvent(event), genai.RoleUser),
		},
	}
}

type geminiRun struct {
	decider  *GeminiDecider
	contents []*genai.Content
	// Extra function calls from the last model turn: the model may request
	// several tools at once, but tools run one at a time, so only the first
	// is dispatched and the rest are answered when its result is observed.
	pending []*genai.FunctionCall
}

// Next generates one model turn and maps it to a Decision. Any backend or
// contract violation is a fatal reasoning fault.
func (r *geminiRun) Next(ctx context.Context) (Decision, error) {
	resp, err := r.decider.client.Models.GenerateContent(ctx, r.decider.model, r.contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Tools:             r.decider.catalog,
	})
	if err != nil {
		return Decision{}, utils.NewReasoningFault("generate", "reasoning backend unreachable", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Decision{}, utils.NewReasoningFault("generate", "empty reasoning response", nil)
	}

	content := resp.Candidates[0].Content
	r.contents = append(r.contents, content)
	return r.decode(content)
}

func (r *geminiRun) decode(content *genai.Content) (Decision, error) {
	var calls []*genai.FunctionCall
	var text, trace strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
			continue
		}
		if part.Thought {
			trace.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}

	if len(calls) > 0 {
		r.pending = calls[1:]
		return Decision{
			Tool: &ToolRequest{
				Name: calls[0].Name,
				Args: calls[0].Args,
			},
			Trace: strings.TrimSpace(trace.String()),
		}, nil
	}

	narrative := strings.TrimSpace(text.String())
	if narrative == "" {
		return Decision{}, utils.NewReasoningFault("generate", "response carried neither tool call nor narrative", nil)
	}
	return Decision{Narrative: narrative, Trace: strings.TrimSpace(trace.String())}, nil
}

// Observe appends the tool outcome so the next turn can see it. Every
// function call of the last turn gets a response part; undispatched extras
// are declined so the model re-requests them one per turn.
func (r *geminiRun) Observe(req ToolRequest, result models.ToolCallResult) {
	response := map[string]any{"ok": result.OK}
	if result.OK {
		response["content"] = result.Payload
		if result.Metadata.Partial {
			response["partial"] = true
		}
		if result.Metadata.Truncated {
			response["truncated"] = true
		}
	} else {
		response["error"] = result.Reason
	}

	parts := []*genai.Part{genai.NewPartFromFunctionResponse(req.Name, response)}
	for _, call := range r.pending {
		parts = append(parts, genai.NewPartFromFunctionResponse(call.Name, map[string]any{
			"ok":    false,
			"error": "tools run one at a time; call " + call.Name + " again in its own turn",
		}))
	}
	r.pending = nil
	r.contents = append(r.contents, genai.NewContentFromParts(parts, genai.RoleUser))
}

func renderEvent(event models.FailureEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A serverless function invocation failed.\n")
	fmt.Fprintf(&b, "Function: %s\n", event.FunctionID)
	fmt.Fprintf(&b, "Request ID: %s\n", event.RequestID)
	fmt.Fprintf(&b, "Error type: %s\n", event.ErrorType)
	fmt.Fprintf(&b, "Error message: %s\n", event.ErrorMessage)
	if event.StackTrace != "" {
		fmt.Fprintf(&b, "Stack trace:\n%s\n", event.StackTrace)
	}
	for key, value := range event.Invocation {
		fmt.Fprintf(&b, "Context %s: %s\n", key, value)
	}
	b.WriteString("Diagnose the root cause and suggest a fix.")
	return b.String()
}
