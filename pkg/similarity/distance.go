// Package similarity provides vector distance and similarity measures.
package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Metric measures the distance between two equal-length vectors.
type Metric func(a, b []float64) float64

// Metric names accepted by MetricByName.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// MetricByName resolves a metric name.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "", MetricEuclidean:
		return Euclidean, nil
	case MetricCosine:
		return CosineDistance, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// SquaredEuclidean returns the squared L2 distance between a and b.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths, empty vectors and zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Centroid returns the component-wise mean of rows. It returns nil for no rows.
func Centroid(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	c := make([]float64, len(rows[0]))
	for _, r := range rows {
		floats.Add(c, r)
	}
	floats.Scale(1/float64(len(rows)), c)
	return c
}

// Nearest returns the index of the row closest to target under m. Ties
// resolve to the lowest index; -1 is returned for no rows.
func Nearest(target []float64, rows [][]float64, m Metric) int {
	best, bestDist := -1, math.Inf(1)
	for i, r := range rows {
		if d := m(target, r); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
