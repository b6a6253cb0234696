package cluster

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/pkg/similarity"
)

// Upper bounds on the k-means work one request may ask for.
const (
	MaxKMeansIter  = 10000
	MaxKMeansNInit = 100
)

// KMeansParams configures Lloyd's k-means.
type KMeansParams struct {
	K       int
	Seed    uint64
	MaxIter int
	NInit   int     // independent initialisations, the lowest inertia wins
	Tol     float64 // stop when the summed squared centroid shift drops below
}

// DefaultKMeansParams returns the defaults for a corpus of rows documents.
func DefaultKMeansParams(rows int) KMeansParams {
	return KMeansParams{
		K:       DefaultK(rows),
		Seed:    42,
		MaxIter: 300,
		NInit:   10,
		Tol:     1e-4,
	}
}

func (KMeansParams) Algorithm() AlgorithmID { return KMeans }

func (p KMeansParams) validate(rows int) error {
	switch {
	case p.K < 1:
		return failure.New(failure.DegenerateInput, "k must be at least 1, got %d", p.K)
	case p.K > rows:
		return failure.New(failure.DegenerateInput, "k=%d exceeds the %d documents available", p.K, rows)
	case p.MaxIter < 1:
		return failure.New(failure.DegenerateInput, "max_iter must be at least 1, got %d", p.MaxIter)
	case p.MaxIter > MaxKMeansIter:
		return failure.New(failure.DegenerateInput, "max_iter must be at most %d, got %d", MaxKMeansIter, p.MaxIter)
	case p.NInit < 1:
		return failure.New(failure.DegenerateInput, "n_init must be at least 1, got %d", p.NInit)
	case p.NInit > MaxKMeansNInit:
		return failure.New(failure.DegenerateInput, "n_init must be at most %d, got %d", MaxKMeansNInit, p.NInit)
	case p.Tol < 0 || math.IsNaN(p.Tol):
		return failure.New(failure.DegenerateInput, "tol must not be negative")
	}
	return nil
}

// run executes NInit initialisations and keeps the one with the lowest
// inertia. The first initialisation seeds deterministically with
// farthest-point traversal, the rest with k-means++ sampling.
func (p KMeansParams) run(m *mat.Dense) []int {
	points := rowViews(m)
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for attempt := 0; attempt < p.NInit; attempt++ {
		var centroids [][]float64
		if attempt == 0 {
			centroids = farthestFirst(points, p.K)
		} else {
			centroids = plusPlus(points, p.K, rng)
		}
		labels, inertia := lloyd(points, centroids, p.MaxIter, p.Tol)
		if inertia < bestInertia-1e-12 {
			best, bestInertia = labels, inertia
		}
	}
	return best
}

func rowViews(m *mat.Dense) [][]float64 {
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = m.RawRowView(i)
	}
	return out
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// farthestFirst starts at the first point and repeatedly adds the point whose
// nearest chosen centroid is farthest away. Ties go to the lowest index.
func farthestFirst(points [][]float64, k int) [][]float64 {
	chosen := make([]bool, len(points))
	centroids := [][]float64{clone(points[0])}
	chosen[0] = true
	minDist := make([]float64, len(points))
	for i, pt := range points {
		minDist[i] = similarity.SquaredEuclidean(pt, points[0])
	}

	for len(centroids) < k {
		next, far := -1, -1.0
		for i, d := range minDist {
			if !chosen[i] && d > far {
				next, far = i, d
			}
		}
		chosen[next] = true
		centroids = append(centroids, clone(points[next]))
		for i, pt := range points {
			minDist[i] = math.Min(minDist[i], similarity.SquaredEuclidean(pt, points[next]))
		}
	}
	return centroids
}

// plusPlus draws centroids with probability proportional to the squared
// distance from the nearest centroid already drawn.
func plusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	first := rng.IntN(len(points))
	centroids := [][]float64{clone(points[first])}
	minDist := make([]float64, len(points))
	for i, pt := range points {
		minDist[i] = similarity.SquaredEuclidean(pt, points[first])
	}

	for len(centroids) < k {
		total := floats.Sum(minDist)
		next := -1
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range minDist {
				target -= d
				if target <= 0 && d > 0 {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// every remaining point coincides with a centroid
			next = rng.IntN(len(points))
		}
		centroids = append(centroids, clone(points[next]))
		for i, pt := range points {
			minDist[i] = math.Min(minDist[i], similarity.SquaredEuclidean(pt, points[next]))
		}
	}
	return centroids
}

// lloyd alternates assignment and centroid updates until labels stop
// changing, the centroid shift falls under tol, or maxIter is reached.
func lloyd(points, centroids [][]float64, maxIter int, tol float64) ([]int, float64) {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := assign(points, centroids, labels)
		shift := update(points, centroids, labels)
		if !changed || shift <= tol {
			break
		}
	}
	assign(points, centroids, labels)
	return labels, inertia(points, centroids, labels)
}

func assign(points, centroids [][]float64, labels []int) bool {
	changed := false
	for i, pt := range points {
		c := similarity.Nearest(pt, centroids, similarity.SquaredEuclidean)
		if c != labels[i] {
			labels[i] = c
			changed = true
		}
	}
	return changed
}

// update recomputes centroids as member means and returns the summed squared
// shift. An empty cluster is re-seeded with the point farthest from its own
// centroid.
func update(points, centroids [][]float64, labels []int) float64 {
	k := len(centroids)
	dim := len(points[0])
	sums := make([][]float64, k)
	sizes := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, pt := range points {
		floats.Add(sums[labels[i]], pt)
		sizes[labels[i]]++
	}

	var shift float64
	for c := 0; c < k; c++ {
		if sizes[c] == 0 {
			far := farthestFromOwnCentroid(points, centroids, labels, sizes)
			if far < 0 {
				continue
			}
			sizes[labels[far]]--
			floats.Sub(sums[labels[far]], points[far])
			labels[far] = c
			sizes[c] = 1
			copy(sums[c], points[far])
		}
	}
	for c := 0; c < k; c++ {
		if sizes[c] == 0 {
			continue
		}
		floats.Scale(1/float64(sizes[c]), sums[c])
		shift += similarity.SquaredEuclidean(centroids[c], sums[c])
		copy(centroids[c], sums[c])
	}
	return shift
}

func farthestFromOwnCentroid(points, centroids [][]float64, labels, sizes []int) int {
	best, bestDist := -1, -1.0
	for i, pt := range points {
		if sizes[labels[i]] <= 1 {
			continue
		}
		if d := similarity.SquaredEuclidean(pt, centroids[labels[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func inertia(points, centroids [][]float64, labels []int) float64 {
	var sum float64
	for i, pt := range points {
		sum += similarity.SquaredEuclidean(pt, centroids[labels[i]])
	}
	return sum
}
