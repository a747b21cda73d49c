package patterns

import (
	"testing"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
)

func analysis(errorID, functionID, errorType string, score float64, at time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		ErrorID:         errorID,
		FunctionID:      functionID,
		ErrorType:       errorType,
		ConfidenceScore: score,
		Timestamp:       at,
	}
}

func TestMineAggregatesBySignature(t *testing.T) {
	base := time.Now()
	miner := NewMiner(nil)

	patterns := miner.Mine([]models.AnalysisResult{
		analysis("e1", "fn-a", "KeyError", 0.9, base),
		analysis("e2", "fn-a", "KeyError", 0.7, base.Add(time.Minute)),
		analysis("e3", "fn-a", "Timeout", 0.5, base.Add(2*time.Minute)),
		analysis("e4", "fn-b", "KeyError", 0.6, base.Add(3*time.Minute)),
	})

	if len(patterns) != 3 {
		t.Fatalf("expected 3 patterns, got %d", len(patterns))
	}

	top := patterns[0]
	if top.FunctionID != "fn-a" || top.ErrorType != "KeyError" {
		t.Fatalf("unexpected dominant pattern: %+v", top)
	}
	if top.Occurrences != 2 {
		t.Fatalf("expected 2 occurrences, got %d", top.Occurrences)
	}
	if top.Prevalence != 0.5 {
		t.Fatalf("expected prevalence 0.5, got %f", top.Prevalence)
	}
	if top.MeanConfidence != 0.8 {
		t.Fatalf("expected mean confidence 0.8, got %f", top.MeanConfidence)
	}
	if !top.LastSeen.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected last seen: %v", top.LastSeen)
	}
}

func TestMineEmptyHistory(t *testing.T) {
	miner := NewMiner(nil)
	if patterns := miner.Mine(nil); patterns != nil {
		t.Fatalf("expected nil for empty history, got %+v", patterns)
	}
}

func TestMineOrderingIsStable(t *testing.T) {
	base := time.Now()
	miner := NewMiner(nil)

	patterns := miner.Mine([]models.AnalysisResult{
		analysis("e1", "fn-a", "KeyError", 0.9, base),
		analysis("e2", "fn-b", "Timeout", 0.7, base),
	})

	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if patterns[0].ID > patterns[1].ID {
		t.Fatalf("equal prevalence must sort by id: %s, %s", patterns[0].ID, patterns[1].ID)
	}
}
