package models

import "time"

// ConfidenceLevel is the qualitative band mapped from a confidence score.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
)

// AnalysisResult is the immutable output of one analysis run. The record
// store never updates an existing ErrorID.
type AnalysisResult struct {
	ErrorID         string          `json:"error_id"`
	Timestamp       time.Time       `json:"timestamp"`
	FunctionID      string          `json:"function_id"`
	RequestID       string          `json:"request_id"`
	ErrorType       string          `json:"error_type"`
	Narrative       string          `json:"narrative"`
	ConfidenceScore float64         `json:"confidence_score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	Evidence        EvidenceBundle  `json:"evidence"`
	Steps           int             `json:"steps"`
	DurationMillis  int64           `json:"duration_millis"`
}
