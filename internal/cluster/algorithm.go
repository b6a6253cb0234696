// Package cluster assigns a cluster label to each row of a feature matrix.
//
// Algorithms form a closed set: each is selected by an AlgorithmID and
// configured by its own parameter struct implementing Spec.
package cluster

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/pkg/models"
)

// AlgorithmID names a clustering algorithm.
type AlgorithmID string

const (
	KMeans        AlgorithmID = "kmeans"
	Agglomerative AlgorithmID = "agglomerative"
	DBSCAN        AlgorithmID = "dbscan"
)

// Noise labels rows that belong to no cluster.
const Noise = -1

// MinDocuments is the smallest corpus any algorithm accepts.
const MinDocuments = 2

// MaxDefaultK caps the cluster count chosen by DefaultK.
const MaxDefaultK = 20

// DefaultK returns the cluster count used when a request gives none:
// n/5+1 clamped to [2, MaxDefaultK] and never more than n.
func DefaultK(n int) int {
	k := n/5 + 1
	k = max(k, 2)
	k = min(k, MaxDefaultK)
	return min(k, n)
}

// Spec is the parameter set of one algorithm. The interface is sealed; only
// KMeansParams, AgglomerativeParams and DBSCANParams implement it.
type Spec interface {
	Algorithm() AlgorithmID
	validate(rows int) error
	run(m *mat.Dense) []int
}

// Assignment maps every matrix row to a label, Noise for unassigned rows.
// Labels are numbered from 0 in order of first appearance.
type Assignment struct {
	Labels []int
}

// Clusters returns the number of distinct non-noise labels.
func (a Assignment) Clusters() int {
	n := 0
	for _, l := range a.Labels {
		if l >= n {
			n = l + 1
		}
	}
	return n
}

// Members returns the rows carrying label, in row order.
func (a Assignment) Members(label int) []int {
	var out []int
	for i, l := range a.Labels {
		if l == label {
			out = append(out, i)
		}
	}
	return out
}

// NoiseRows returns the rows labelled Noise.
func (a Assignment) NoiseRows() []int {
	return a.Members(Noise)
}

// Run clusters the rows of m as described by spec.
func Run(m *mat.Dense, spec Spec) (Assignment, error) {
	rows, _ := m.Dims()
	if rows < MinDocuments {
		return Assignment{}, failure.New(failure.InsufficientCorpusSize,
			"%s needs at least %d documents, got %d", spec.Algorithm(), MinDocuments, rows)
	}
	if err := spec.validate(rows); err != nil {
		return Assignment{}, err
	}
	return Assignment{Labels: relabel(spec.run(m))}, nil
}

// relabel renumbers labels by first appearance, leaving Noise untouched, so
// equal partitions always produce equal label slices.
func relabel(labels []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		id, ok := mapping[l]
		if !ok {
			id = len(mapping)
			mapping[l] = id
		}
		out[i] = id
	}
	return out
}

var catalog = []models.ModelInfo{
	{
		ID:           string(KMeans),
		Name:         "K-Means Clustering",
		Description:  "Uses TF-IDF text vectorization with K-means clustering",
		MinDocuments: MinDocuments,
	},
	{
		ID:           string(Agglomerative),
		Name:         "Agglomerative Clustering",
		Description:  "Hierarchical clustering using TF-IDF text vectorization",
		MinDocuments: MinDocuments,
	},
	{
		ID:           string(DBSCAN),
		Name:         "DBSCAN Clustering",
		Description:  "Density-based clustering using TF-IDF text vectorization",
		MinDocuments: MinDocuments,
	},
}

// Catalog returns the supported algorithms.
func Catalog() []models.ModelInfo {
	out := make([]models.ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves an algorithm id, case-insensitively.
func Lookup(id string) (AlgorithmID, error) {
	switch a := AlgorithmID(strings.ToLower(strings.TrimSpace(id))); a {
	case KMeans, Agglomerative, DBSCAN:
		return a, nil
	default:
		return "", failure.New(failure.UnknownAlgorithm, "unknown algorithm %q", id)
	}
}
