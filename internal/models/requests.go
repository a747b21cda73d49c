package models

// ListAnalysesRequest captures filters for analysis history reads.
type ListAnalysesRequest struct {
	FunctionID string `json:"function_id"`
	PageSize   int    `json:"page_size,omitempty"`
	PageToken  string `json:"page_token,omitempty"`
}

// ListAnalysesResponse contains history records ordered most recent first.
type ListAnalysesResponse struct {
	Analyses      []AnalysisResult `json:"analyses"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}
