// Package patterns mines recurring failure signatures from analysis history.
package patterns

import (
	"log/slog"
	"sort"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
)

// Miner aggregates analysis records into frequency-based failure patterns.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

// Mine groups analyses by function and error type and returns one pattern
// per group, most prevalent first. Prevalence is the group's share of all
// supplied analyses.
func (m *Miner) Mine(analyses []models.AnalysisResult) []models.FailurePattern {
	if len(analyses) == 0 {
		return nil
	}

	groups := make(map[string]*patternAggregate)
	for _, analysis := range analyses {
		key := analysis.FunctionID + "\x00" + analysis.ErrorType
		agg, ok := groups[key]
		if !ok {
			agg = &patternAggregate{
				functionID: analysis.FunctionID,
				errorType:  analysis.ErrorType,
			}
			groups[key] = agg
		}
		agg.count++
		agg.confidenceSum += analysis.ConfidenceScore
		if analysis.Timestamp.After(agg.lastSeen) {
			agg.lastSeen = analysis.Timestamp
		}
	}

	patterns := make([]models.FailurePattern, 0, len(groups))
	for _, agg := range groups {
		patterns = append(patterns, models.FailurePattern{
			ID:             "pattern-" + agg.functionID + "-" + agg.errorType,
			FunctionID:     agg.functionID,
			ErrorType:      agg.errorType,
			Occurrences:    agg.count,
			Prevalence:     float64(agg.count) / float64(len(analyses)),
			MeanConfidence: agg.confidenceSum / float64(agg.count),
			LastSeen:       agg.lastSeen,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		return patterns[i].ID < patterns[j].ID
	})
	return patterns
}

type patternAggregate struct {
	functionID    string
	errorType     string
	count         int
	confidenceSum float64
	lastSeen      time.Time
}
