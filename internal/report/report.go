// Package report describes each cluster of an assignment and scores the
// assignment as a whole.
package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/cluster"
	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/textproc"
	"github.com/thebtf/textclust/internal/vectorize"
	"github.com/thebtf/textclust/pkg/models"
	"github.com/thebtf/textclust/pkg/similarity"
)

// Summary styles.
const (
	SummaryFirst    = "first"
	SummaryKeywords = "keywords"
)

const (
	DefaultTopKeywords     = 5
	DefaultMinKeywordRunes = 2
	summaryKeywordCount    = 3
)

// Options controls keyword extraction and summaries.
type Options struct {
	TopKeywords     int
	MinKeywordRunes int
	SummaryStyle    string
}

// DefaultOptions returns the options used when a request sets none.
func DefaultOptions() Options {
	return Options{
		TopKeywords:     DefaultTopKeywords,
		MinKeywordRunes: DefaultMinKeywordRunes,
		SummaryStyle:    SummaryFirst,
	}
}

// Validate rejects unusable option values.
func (o Options) Validate() error {
	if o.TopKeywords < 0 {
		return fmt.Errorf("top_keywords must not be negative, got %d", o.TopKeywords)
	}
	if o.MinKeywordRunes < 0 {
		return fmt.Errorf("min_keyword_length must not be negative, got %d", o.MinKeywordRunes)
	}
	switch o.SummaryStyle {
	case "", SummaryFirst, SummaryKeywords:
		return nil
	default:
		return fmt.Errorf("unknown summary style %q", o.SummaryStyle)
	}
}

// Report is the per-cluster breakdown and quality of one assignment.
type Report struct {
	Clusters []models.ClusterResult
	Metrics  *models.QualityMetrics
	Noise    []int // original indices of noise documents
}

// Build assembles the report. Clusters appear in label order and list their
// members in corpus order. Percentages are relative to corpus.OriginalSize,
// which counts noise and documents dropped during normalization.
func Build(corpus *textproc.Corpus, m *mat.Dense, vocab *vectorize.Vocabulary, a cluster.Assignment, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, failure.Wrap(failure.DegenerateInput, err, "invalid report options")
	}
	rows, _ := m.Dims()
	if rows != corpus.Len() || len(a.Labels) != rows {
		return nil, failure.New(failure.Vectorization,
			"matrix has %d rows for %d documents and %d labels", rows, corpus.Len(), len(a.Labels))
	}

	points := make([][]float64, rows)
	for i := range points {
		points[i] = m.RawRowView(i)
	}

	r := &Report{Clusters: make([]models.ClusterResult, 0, a.Clusters())}
	for label := 0; label < a.Clusters(); label++ {
		members := a.Members(label)
		if len(members) == 0 {
			continue
		}
		r.Clusters = append(r.Clusters, describe(corpus, points, vocab, label, members, opts))
	}
	for _, row := range a.NoiseRows() {
		r.Noise = append(r.Noise, corpus.Documents[row].Index)
	}
	r.Metrics = Metrics(points, a.Labels)
	return r, nil
}

func describe(corpus *textproc.Corpus, points [][]float64, vocab *vectorize.Vocabulary, label int, members []int, opts Options) models.ClusterResult {
	docs := make([]textproc.Document, len(members))
	texts := make([]string, len(members))
	indices := make([]int, len(members))
	rows := make([][]float64, len(members))
	for i, row := range members {
		docs[i] = corpus.Documents[row]
		texts[i] = docs[i].Text
		indices[i] = docs[i].Index
		rows[i] = points[row]
	}

	keywords := Keywords(vocab, docs, opts.TopKeywords, opts.MinKeywordRunes)
	rep := similarity.Nearest(similarity.Centroid(rows), rows, similarity.Euclidean)

	return models.ClusterResult{
		ID:                 label,
		Summary:            summarize(texts[0], keywords, opts.SummaryStyle),
		Texts:              texts,
		Indices:            indices,
		Size:               len(members),
		Percentage:         float64(len(members)) / float64(corpus.OriginalSize) * 100,
		Keywords:           keywords,
		RepresentativeText: texts[rep],
	}
}

func summarize(first string, keywords []string, style string) string {
	if style != SummaryKeywords || len(keywords) == 0 {
		return first
	}
	top := keywords[:min(summaryKeywordCount, len(keywords))]
	return phrase(top) + ": " + first
}
