package models

// FailureEvent describes one failed serverless function invocation. It is
// published by the failure publisher and consumed exactly once per analysis.
type FailureEvent struct {
	FunctionID   string            `json:"function_id"`
	RequestID    string            `json:"request_id"`
	ErrorType    string            `json:"error_type"`
	ErrorMessage string            `json:"error_message"`
	StackTrace   string            `json:"stack_trace,omitempty"`
	Invocation   map[string]string `json:"invocation,omitempty"`
}

// Signature renders the error signature used as the knowledge-search query.
func (e FailureEvent) Signature() string {
	if e.ErrorType == "" {
		return e.ErrorMessage
	}
	if e.ErrorMessage == "" {
		return e.ErrorType
	}
	return e.ErrorType + ": " + e.ErrorMessage
}
