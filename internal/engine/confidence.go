package engine

import (
	"github.com/lumenstack/lumen-rca/internal/config"
	"github.com/lumenstack/lumen-rca/internal/models"
)

// knowledgeSaturation is the document count at which the knowledge component
// reaches its full weight.
const knowledgeSaturation = 3

// Scorer maps a final evidence bundle to a confidence score and level. Score
// is a pure function of the bundle: same bundle, same score.
type Scorer struct {
	cfg config.ConfidenceConfig
}

// NewScorer builds a scorer, filling unset weights and thresholds with the
// default calibration.
func NewScorer(cfg config.ConfidenceConfig) *Scorer {
	if cfg.KnowledgeWeight <= 0 {
		cfg.KnowledgeWeight = 0.4
	}
	if cfg.SourceWeight <= 0 {
		cfg.SourceWeight = 0.3
	}
	if cfg.LogsWeight <= 0 {
		cfg.LogsWeight = 0.3
	}
	if cfg.PartialLogsWeight <= 0 {
		cfg.PartialLogsWeight = cfg.LogsWeight / 2
	}
	if cfg.VeryHigh <= 0 {
		cfg.VeryHigh = 0.8
	}
	if cfg.High <= 0 {
		cfg.High = 0.6
	}
	if cfg.Medium <= 0 {
		cfg.Medium = 0.4
	}
	if cfg.Low <= 0 {
		cfg.Low = 0.2
	}
	return &Scorer{cfg: cfg}
}

// Score sums the per-tool components. A failed or absent slot contributes
// zero; more or better evidence never lowers the score.
func (s *Scorer) Score(bundle models.EvidenceBundle) (float64, models.ConfidenceLevel) {
	score := s.knowledgeComponent(bundle.Docs) + s.sourceComponent(bundle.Source) + s.logsComponent(bundle.Logs)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, s.level(score)
}

// knowledgeComponent scales with document count and relevance, saturating at
// knowledgeSaturation fully relevant documents. Zero documents contributes
// zero even on success.
func (s *Scorer) knowledgeComponent(docs *models.ToolCallResult) float64 {
	if docs == nil || !docs.OK {
		return 0
	}
	var sum float64
	for _, doc := range docs.Docs {
		rel := doc.Relevance
		if rel < 0 {
			rel = 0
		}
		if rel > 1 {
			rel = 1
		}
		sum += rel
	}
	if sum > knowledgeSaturation {
		sum = knowledgeSaturation
	}
	return s.cfg.KnowledgeWeight * sum / knowledgeSaturation
}

func (s *Scorer) sourceComponent(source *models.ToolCallResult) float64 {
	if source == nil || !source.OK || source.Payload == "" {
		return 0
	}
	return s.cfg.SourceWeight
}

func (s *Scorer) logsComponent(logs *models.ToolCallResult) float64 {
	if logs == nil || !logs.OK {
		return 0
	}
	if logs.Metadata.Partial {
		return s.cfg.PartialLogsWeight
	}
	return s.cfg.LogsWeight
}

func (s *Scorer) level(score float64) models.ConfidenceLevel {
	switch {
	case score >= s.cfg.VeryHigh:
		return models.ConfidenceVeryHigh
	case score >= s.cfg.High:
		return models.ConfidenceHigh
	case score >= s.cfg.Medium:
		return models.ConfidenceMedium
	case score >= s.cfg.Low:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}
