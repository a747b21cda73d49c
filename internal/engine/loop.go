// Package engine runs the bounded reasoning/tool loop that turns one failure
// event into one persisted analysis result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenstack/lumen-rca/internal/config"
	"github.com/lumenstack/lumen-rca/internal/metrics"
	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/reasoning"
	"github.com/lumenstack/lumen-rca/internal/store"
	"github.com/lumenstack/lumen-rca/internal/utils"
)

// Orchestrator drives analyses. Each Analyze call is independent; concurrent
// calls share nothing but the record store.
type Orchestrator struct {
	logger  *slog.Logger
	decider reasoning.Decider
	tools   ToolSet
	records store.RecordStore
	scorer  *Scorer
	latency *utils.LatencyTracker

	maxSteps      int
	stepTimeout   time.Duration
	toolTimeout   time.Duration
	overallBudget time.Duration

	persistSource bool
	persistLogs   bool
	persistDocs   bool
}

// NewOrchestrator wires the loop from its collaborators and configuration.
func NewOrchestrator(logger *slog.Logger, decider reasoning.Decider, tools ToolSet, records store.RecordStore, cfg *config.Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	maxSteps := cfg.Reasoning.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 8
	}
	stepTimeout := cfg.Reasoning.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	toolTimeout := cfg.Evidence.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = 10 * time.Second
	}
	overallBudget := cfg.Reasoning.OverallBudget
	if overallBudget <= 0 {
		overallBudget = 3 * time.Minute
	}

	return &Orchestrator{
		logger:        logger,
		decider:       decider,
		tools:         tools,
		records:       records,
		scorer:        NewScorer(cfg.Confidence),
		latency:       utils.NewLatencyTracker(512),
		maxSteps:      maxSteps,
		stepTimeout:   stepTimeout,
		toolTimeout:   toolTimeout,
		overallBudget: overallBudget,
		persistSource: cfg.Storage.PersistSource,
		persistLogs:   cfg.Storage.PersistLogs,
		persistDocs:   cfg.Storage.PersistDocs,
	}
}

// Latency exposes the run latency tracker for reporting surfaces.
func (o *Orchestrator) Latency() *utils.LatencyTracker {
	return o.latency
}

// Analyze runs the reasoning/tool loop for one failure event, scores the
// gathered evidence, and persists exactly one immutable AnalysisResult.
// Evidence failures are absorbed; only reasoning and storage faults abort
// the run, leaving the event to be redelivered.
func (o *Orchestrator) Analyze(ctx context.Context, event models.FailureEvent) (models.AnalysisResult, error) {
	started := time.Now()
	errorID := uuid.NewString()
	logger := o.logger.With(
		slog.String("error_id", errorID),
		slog.String("function_id", event.FunctionID),
		slog.String("request_id", event.RequestID),
	)
	logger.Info("analysis started", slog.String("error_type", event.ErrorType))

	runCtx, cancel := context.WithTimeout(ctx, o.overallBudget)
	defer cancel()

	run := o.decider.NewRun(event)

	var bundle models.EvidenceBundle
	var narrative string
	steps := 0

	// Up to maxSteps tool rounds plus one final narrative round. Exhausting
	// the loop or the wall-clock budget is a designed termination path, not
	// an error.
	for round := 1; round <= o.maxSteps+1; round++ {
		if ctx.Err() != nil {
			metrics.ObserveAnalysis(time.Since(started), steps, metrics.OutcomeError)
			return models.AnalysisResult{}, ctx.Err()
		}
		if runCtx.Err() != nil {
			logger.Warn("analysis budget exhausted", slog.Int("steps", steps))
			break
		}

		decision, err := o.nextDecision(runCtx, run)
		if err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				logger.Warn("analysis budget exhausted mid-step", slog.Int("steps", steps))
				break
			}
			if ctx.Err() != nil {
				metrics.ObserveAnalysis(time.Since(started), steps, metrics.OutcomeError)
				return models.AnalysisResult{}, ctx.Err()
			}
			logger.Error("reasoning step failed", slog.Int("steps", steps), slog.Any("error", err))
			metrics.ObserveAnalysis(time.Since(started), steps, metrics.OutcomeError)
			return models.AnalysisResult{}, err
		}
		steps = round

		if decision.Trace != "" {
			logger.Debug("reasoning trace", slog.String("trace", decision.Trace))
		}

		if decision.Tool == nil {
			narrative = decision.Narrative
			break
		}
		if round > o.maxSteps {
			// Final round spent on another tool request: out of budget.
			logger.Warn("step budget exhausted", slog.String("tool", decision.Tool.Name))
			break
		}

		record := o.dispatchTool(runCtx, logger, event, round, *decision.Tool)
		bundle.Record(record)
		run.Observe(*decision.Tool, record.Result)
	}

	if narrative == "" {
		narrative = fallbackNarrative(event, bundle)
	}

	score, level := o.scorer.Score(bundle)
	result := models.AnalysisResult{
		ErrorID:         errorID,
		Timestamp:       started.UTC(),
		FunctionID:      event.FunctionID,
		RequestID:       event.RequestID,
		ErrorType:       event.ErrorType,
		Narrative:       narrative,
		ConfidenceScore: score,
		ConfidenceLevel: level,
		Evidence:        o.redact(bundle),
		Steps:           steps,
		DurationMillis:  time.Since(started).Milliseconds(),
	}

	// Persist on the caller's context: the run budget bounds reasoning, not
	// the write of an already computed result.
	if err := o.records.Put(ctx, result); err != nil {
		logger.Error("analysis persistence failed", slog.Any("error", err))
		metrics.ObserveAnalysis(time.Since(started), steps, metrics.OutcomeError)
		return models.AnalysisResult{}, utils.NewStorageFault("put", "persist analysis "+errorID, err)
	}

	duration := time.Since(started)
	o.latency.Observe(duration, steps)
	metrics.ObserveAnalysis(duration, steps, metrics.OutcomeSuccess)
	logger.Info("analysis completed",
		slog.Float64("confidence", score),
		slog.String("level", string(level)),
		slog.Int("steps", steps),
		slog.Duration("duration", duration),
	)
	return result, nil
}

func (o *Orchestrator) nextDecision(runCtx context.Context, run reasoning.Run) (reasoning.Decision, error) {
	stepCtx, cancel := context.WithTimeout(runCtx, o.stepTimeout)
	defer cancel()
	return run.Next(stepCtx)
}

func (o *Orchestrator) dispatchTool(runCtx context.Context, logger *slog.Logger, event models.FailureEvent, step int, req reasoning.ToolRequest) models.ToolCallRecord {
	startedAt := time.Now()
	toolCtx, cancel := context.WithTimeout(runCtx, o.toolTimeout)
	defer cancel()

	result := o.tools.dispatch(toolCtx, event, req)
	duration := time.Since(startedAt)

	metrics.ObserveToolCall(req.Name, result.OK)
	if result.OK {
		logger.Debug("tool call succeeded",
			slog.String("tool", req.Name), slog.Int("step", step), slog.Duration("duration", duration))
	} else {
		logger.Warn("tool call failed",
			slog.String("tool", req.Name), slog.Int("step", step), slog.String("reason", result.Reason))
	}

	return models.ToolCallRecord{
		Step:      step,
		Tool:      req.Name,
		Arguments: req.Args,
		Result:    result,
		StartedAt: startedAt.UTC(),
		Duration:  duration,
	}
}

// redact applies the per-field persistence policy before storage: gated
// payloads are replaced by size markers so records stay bounded and raw
// source or logs are not stored by default.
func (o *Orchestrator) redact(bundle models.EvidenceBundle) models.EvidenceBundle {
	out := models.EvidenceBundle{
		Source: redactResult(bundle.Source, o.persistSource),
		Logs:   redactResult(bundle.Logs, o.persistLogs),
		Docs:   redactResult(bundle.Docs, o.persistDocs),
	}
	if len(bundle.Calls) > 0 {
		out.Calls = make([]models.ToolCallRecord, len(bundle.Calls))
		for i, call := range bundle.Calls {
			redacted := redactResult(&call.Result, o.persistPolicy(call.Result.Tool))
			call.Result = *redacted
			out.Calls[i] = call
		}
	}
	return out
}

func (o *Orchestrator) persistPolicy(tool models.ToolName) bool {
	switch tool {
	case models.ToolFetchSource:
		return o.persistSource
	case models.ToolFetchLogs:
		return o.persistLogs
	case models.ToolSearchKnowledge:
		return o.persistDocs
	default:
		return false
	}
}

func redactResult(r *models.ToolCallResult, persist bool) *models.ToolCallResult {
	if r == nil {
		return nil
	}
	redacted := *r
	if !persist && redacted.OK {
		redacted.Payload = fmt.Sprintf("[%d bytes redacted]", redacted.Metadata.Bytes)
		redacted.Docs = nil
	}
	return &redacted
}

// fallbackNarrative summarises gathered evidence when the loop terminates
// without a final narrative from the reasoning step.
func fallbackNarrative(event models.FailureEvent, bundle models.EvidenceBundle) string {
	var gathered []string
	if bundle.Source != nil && bundle.Source.OK {
		gathered = append(gathered, "function source code")
	}
	if bundle.Logs != nil && bundle.Logs.OK {
		if bundle.Logs.Metadata.Partial {
			gathered = append(gathered, "partial execution logs")
		} else {
			gathered = append(gathered, "execution logs")
		}
	}
	if bundle.Docs != nil && bundle.Docs.OK && len(bundle.Docs.Docs) > 0 {
		gathered = append(gathered, fmt.Sprintf("%d knowledge documents", len(bundle.Docs.Docs)))
	}

	summary := fmt.Sprintf("Analysis of %s in function %s ended before the reasoning step reached a conclusion.",
		event.Signature(), event.FunctionID)
	if len(gathered) == 0 {
		return summary + " No evidence could be gathered."
	}
	return summary + " Evidence gathered: " + strings.Join(gathered, ", ") + "."
}
