package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/pkg/similarity"
)

// Linkage is the rule for the distance between two merged clusters.
type Linkage string

const (
	LinkageWard     Linkage = "ward"
	LinkageAverage  Linkage = "average"
	LinkageComplete Linkage = "complete"
	LinkageSingle   Linkage = "single"
)

// AgglomerativeParams configures bottom-up hierarchical clustering.
type AgglomerativeParams struct {
	K       int
	Linkage Linkage
}

// DefaultAgglomerativeParams returns the defaults for rows documents.
func DefaultAgglomerativeParams(rows int) AgglomerativeParams {
	return AgglomerativeParams{K: DefaultK(rows), Linkage: LinkageWard}
}

func (AgglomerativeParams) Algorithm() AlgorithmID { return Agglomerative }

func (p AgglomerativeParams) validate(rows int) error {
	switch p.Linkage {
	case LinkageWard, LinkageAverage, LinkageComplete, LinkageSingle:
	default:
		return failure.New(failure.DegenerateInput, "unknown linkage %q", p.Linkage)
	}
	if p.K < 1 {
		return failure.New(failure.DegenerateInput, "k must be at least 1, got %d", p.K)
	}
	if p.K > rows {
		return failure.New(failure.DegenerateInput, "k=%d exceeds the %d documents available", p.K, rows)
	}
	return nil
}

// run merges the closest pair of active clusters until K remain, updating
// distances with the Lance-Williams recurrence. Ward works on squared
// Euclidean distances, the other linkages on plain Euclidean distances.
// Ties go to the pair with the lowest indices.
func (p AgglomerativeParams) run(m *mat.Dense) []int {
	points := rowViews(m)
	n := len(points)

	metric := similarity.Euclidean
	if p.Linkage == LinkageWard {
		metric = similarity.SquaredEuclidean
	}
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, metric(points[i], points[j]))
		}
	}

	active := make([]bool, n)
	size := make([]int, n)
	owner := make([]int, n) // representative cluster of each point
	for i := range active {
		active[i], size[i], owner[i] = true, 1, i
	}

	for clusters := n; clusters > p.K; clusters-- {
		a, b := closestPair(dist, active)
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			dist.SetSym(a, k, p.merged(dist.At(a, k), dist.At(b, k), dist.At(a, b), size[a], size[b], size[k]))
		}
		active[b] = false
		size[a] += size[b]
		for i, o := range owner {
			if o == b {
				owner[i] = a
			}
		}
	}
	return owner
}

func closestPair(dist *mat.SymDense, active []bool) (int, int) {
	n := len(active)
	a, b, best := -1, -1, math.Inf(1)
	for i := 0; i < n; i++ {
		if !active[i] {
			continue
		}
		for j := i + 1; j < n; j++ {
			if active[j] && dist.At(i, j) < best {
				a, b, best = i, j, dist.At(i, j)
			}
		}
	}
	return a, b
}

// merged is the Lance-Williams distance from cluster k to the union of a and b.
func (p AgglomerativeParams) merged(dak, dbk, dab float64, na, nb, nk int) float64 {
	switch p.Linkage {
	case LinkageSingle:
		return math.Min(dak, dbk)
	case LinkageComplete:
		return math.Max(dak, dbk)
	case LinkageAverage:
		return (float64(na)*dak + float64(nb)*dbk) / float64(na+nb)
	default:
		total := float64(na + nb + nk)
		return (float64(na+nk)*dak + float64(nb+nk)*dbk - float64(nk)*dab) / total
	}
}
