package report

import (
	"math"

	"github.com/thebtf/textclust/pkg/models"
	"github.com/thebtf/textclust/pkg/similarity"
)

// Metrics scores an assignment over the non-noise rows of points. It returns
// nil when fewer than two clusters exist, when every point forms its own
// cluster, or when any score is not finite.
func Metrics(points [][]float64, labels []int) *models.QualityMetrics {
	var (
		pts  [][]float64
		labs []int
	)
	k := 0
	for i, l := range labels {
		if l < 0 {
			continue
		}
		pts = append(pts, points[i])
		labs = append(labs, l)
		k = max(k, l+1)
	}
	groups := groupRows(labs, k)
	if len(groups) < 2 || len(pts) <= len(groups) {
		return nil
	}

	m := &models.QualityMetrics{
		Silhouette:       silhouette(pts, groups),
		DaviesBouldin:    daviesBouldin(pts, groups),
		CalinskiHarabasz: calinskiHarabasz(pts, groups),
	}
	for _, v := range []float64{m.Silhouette, m.DaviesBouldin, m.CalinskiHarabasz} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	return m
}

// groupRows returns the member rows of each non-empty label, in label order.
func groupRows(labels []int, k int) [][]int {
	byLabel := make([][]int, k)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	out := byLabel[:0]
	for _, g := range byLabel {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func centroids(pts [][]float64, groups [][]int) [][]float64 {
	out := make([][]float64, len(groups))
	for c, g := range groups {
		rows := make([][]float64, len(g))
		for i, r := range g {
			rows[i] = pts[r]
		}
		out[c] = similarity.Centroid(rows)
	}
	return out
}

// silhouette is the mean over points of (b-a)/max(a,b), where a is the mean
// distance to the point's own cluster and b the smallest mean distance to
// another cluster. Points alone in their cluster score 0.
func silhouette(pts [][]float64, groups [][]int) float64 {
	groupOf := make([]int, len(pts))
	for g, rows := range groups {
		for _, r := range rows {
			groupOf[r] = g
		}
	}

	var total float64
	for i, p := range pts {
		own := groups[groupOf[i]]
		if len(own) == 1 {
			continue
		}
		a, b := 0.0, math.Inf(1)
		for g, rows := range groups {
			var sum float64
			for _, r := range rows {
				sum += similarity.Euclidean(p, pts[r])
			}
			if g == groupOf[i] {
				a = sum / float64(len(rows)-1)
			} else {
				b = math.Min(b, sum/float64(len(rows)))
			}
		}
		if d := math.Max(a, b); d > 0 {
			total += (b - a) / d
		}
	}
	return total / float64(len(pts))
}

// daviesBouldin averages, over clusters, the worst ratio of summed scatter
// to centroid separation. Coincident centroids count as infinitely far
// apart, so that pair contributes nothing.
func daviesBouldin(pts [][]float64, groups [][]int) float64 {
	cents := centroids(pts, groups)
	scatter := make([]float64, len(groups))
	for c, rows := range groups {
		for _, r := range rows {
			scatter[c] += similarity.Euclidean(pts[r], cents[c])
		}
		scatter[c] /= float64(len(rows))
	}

	var total float64
	for i := range groups {
		worst := 0.0
		for j := range groups {
			if i == j {
				continue
			}
			sep := similarity.Euclidean(cents[i], cents[j])
			if sep == 0 {
				continue
			}
			worst = math.Max(worst, (scatter[i]+scatter[j])/sep)
		}
		total += worst
	}
	return total / float64(len(groups))
}

// calinskiHarabasz is the ratio of between-cluster to within-cluster
// dispersion, each normalised by its degrees of freedom. A perfectly tight
// clustering scores 1.
func calinskiHarabasz(pts [][]float64, groups [][]int) float64 {
	n, k := len(pts), len(groups)
	overall := similarity.Centroid(pts)
	cents := centroids(pts, groups)

	var between, within float64
	for c, rows := range groups {
		between += float64(len(rows)) * similarity.SquaredEuclidean(cents[c], overall)
		for _, r := range rows {
			within += similarity.SquaredEuclidean(pts[r], cents[c])
		}
	}
	if within == 0 {
		return 1
	}
	return (between / float64(k-1)) / (within / float64(n-k))
}
