// Package models contains the request, response and catalog types of textclust.
package models

import (
	"strings"
	"time"
)

// ClusterRequest asks for one corpus to be clustered.
type ClusterRequest struct {
	AlgorithmID string         `json:"algorithm_id,omitempty"`
	ModelID     string         `json:"model_id,omitempty"` // alias of AlgorithmID
	Preset      string         `json:"preset,omitempty"`
	Texts       []string       `json:"texts"`
	Params      map[string]any `json:"params,omitempty"`
}

// Algorithm returns the requested algorithm id, preferring AlgorithmID over
// the ModelID alias.
func (r *ClusterRequest) Algorithm() string {
	if id := strings.TrimSpace(r.AlgorithmID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ModelID)
}

// ClusterResult describes one cluster of a response.
type ClusterResult struct {
	Summary            string   `json:"summary"`
	RepresentativeText string   `json:"representative_text"`
	Texts              []string `json:"texts"`
	Keywords           []string `json:"keywords"`
	Indices            []int    `json:"indices"`
	ID                 int      `json:"id"`
	Size               int      `json:"size"`
	Percentage         float64  `json:"percentage"`
}

// QualityMetrics holds corpus-level cluster validity scores.
type QualityMetrics struct {
	Silhouette       float64 `json:"silhouette"`
	DaviesBouldin    float64 `json:"davies_bouldin"`
	CalinskiHarabasz float64 `json:"calinski_harabasz"`
}

// ClusterResponse is the result of a clustering request.
type ClusterResponse struct {
	CreatedAt      time.Time       `json:"created_at"`
	Metrics        *QualityMetrics `json:"metrics,omitempty"`
	AlgorithmUsed  string          `json:"algorithm_used"`
	Tokenizer      string          `json:"tokenizer"`
	AnalysisID     string          `json:"analysis_id,omitempty"`
	Clusters       []ClusterResult `json:"clusters"`
	DroppedIndices []int           `json:"dropped_indices"`
	NoiseIndices   []int           `json:"noise_indices"`
	TotalTexts     int             `json:"total_texts"`
	NoiseCount     int             `json:"noise_count"`
}

// ModelInfo is one entry of the algorithm catalog.
type ModelInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	MinDocuments int    `json:"min_documents"`
}
