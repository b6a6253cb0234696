package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/pkg/similarity"
)

// DBSCANParams configures density-based clustering.
type DBSCANParams struct {
	Eps        float64
	MinSamples int    // neighbourhood size, the point itself included, that makes a core point
	Metric     string // similarity.MetricEuclidean or similarity.MetricCosine
}

// DefaultDBSCANParams returns the defaults.
func DefaultDBSCANParams() DBSCANParams {
	return DBSCANParams{Eps: 0.3, MinSamples: 2, Metric: similarity.MetricEuclidean}
}

func (DBSCANParams) Algorithm() AlgorithmID { return DBSCAN }

func (p DBSCANParams) validate(int) error {
	if p.Eps <= 0 || math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) {
		return failure.New(failure.DegenerateInput, "eps must be a positive number, got %v", p.Eps)
	}
	if p.MinSamples < 1 {
		return failure.New(failure.DegenerateInput, "min_samples must be at least 1, got %d", p.MinSamples)
	}
	if _, err := similarity.MetricByName(p.Metric); err != nil {
		return failure.Wrap(failure.DegenerateInput, err, "invalid metric")
	}
	return nil
}

const unvisited = -2

// run labels clusters in discovery order. A border point joins the first
// cluster that reaches it; points reachable from no core point are Noise.
func (p DBSCANParams) run(m *mat.Dense) []int {
	points := rowViews(m)
	metric, _ := similarity.MetricByName(p.Metric)

	neighbours := func(i int) []int {
		var out []int
		for j, pt := range points {
			if metric(points[i], pt) <= p.Eps {
				out = append(out, j)
			}
		}
		return out
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbours(i)
		if len(seeds) < p.MinSamples {
			labels[i] = Noise
			continue
		}

		c := next
		next++
		labels[i] = c
		for q := 0; q < len(seeds); q++ {
			j := seeds[q]
			if labels[j] == Noise {
				labels[j] = c
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = c
			if more := neighbours(j); len(more) >= p.MinSamples {
				seeds = append(seeds, more...)
			}
		}
	}
	return labels
}
