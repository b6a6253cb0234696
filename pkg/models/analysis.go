package models

import "time"

// Analysis is a stored clustering result.
type Analysis struct {
	CreatedAt    time.Time        `json:"created_at"`
	Metrics      *QualityMetrics  `json:"metrics,omitempty"`
	Result       *ClusterResponse `json:"result,omitempty"`
	Params       map[string]any   `json:"params,omitempty"`
	ID           string           `json:"id"`
	Algorithm    string           `json:"algorithm"`
	TotalTexts   int              `json:"total_texts"`
	ClusterCount int              `json:"cluster_count"`
}

// NewAnalysis builds a storable analysis from a finished response.
func NewAnalysis(id string, req *ClusterRequest, resp *ClusterResponse) *Analysis {
	return &Analysis{
		ID:           id,
		Algorithm:    resp.AlgorithmUsed,
		Params:       req.Params,
		TotalTexts:   resp.TotalTexts,
		ClusterCount: len(resp.Clusters),
		Metrics:      resp.Metrics,
		Result:       resp,
		CreatedAt:    resp.CreatedAt,
	}
}

// Event types published to stream subscribers.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// AnalysisEvent announces a finished or failed clustering request.
type AnalysisEvent struct {
	Time       time.Time `json:"time"`
	Type       string    `json:"type"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	Algorithm  string    `json:"algorithm"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	TotalTexts int       `json:"total_texts"`
	Clusters   int       `json:"clusters"`
}
