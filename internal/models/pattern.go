package models

import "time"

// FailurePattern is a mined recurring error signature for one function.
type FailurePattern struct {
	ID             string    `json:"id"`
	FunctionID     string    `json:"function_id"`
	ErrorType      string    `json:"error_type"`
	Occurrences    int       `json:"occurrences"`
	Prevalence     float64   `json:"prevalence"`
	MeanConfidence float64   `json:"mean_confidence"`
	LastSeen       time.Time `json:"last_seen"`
}
