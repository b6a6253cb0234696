// Package vectorize turns a normalized corpus into TF-IDF feature vectors.
//
// Fit is a pure function: every call builds its own vocabulary and matrix,
// nothing fitted is retained between calls.
package vectorize

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/textproc"
)

// IDFSmoothing is added to both the document count and each term's document
// frequency, as if one extra document contained every term once.
const IDFSmoothing = 1.0

// idf returns ln((s+n)/(s+df)) + 1 with s = IDFSmoothing.
func idf(n, df int) float64 {
	return math.Log((IDFSmoothing+float64(n))/(IDFSmoothing+float64(df))) + 1
}

func termFrequency(count int, sublinear bool) float64 {
	if sublinear {
		return 1 + math.Log(float64(count))
	}
	return float64(count)
}

// Fit builds the vocabulary of corpus and its L2-normalised TF-IDF matrix.
// Rows follow corpus.Documents order; columns follow Vocabulary indices.
func Fit(corpus *textproc.Corpus, opts Options) (*mat.Dense, *Vocabulary, error) {
	if corpus == nil || corpus.Len() == 0 {
		return nil, nil, failure.New(failure.EmptyCorpus, "no documents to vectorize")
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, failure.Wrap(failure.DegenerateInput, err, "invalid vectorizer options")
	}
	opts = opts.withDefaults()

	n := corpus.Len()
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, doc := range corpus.Documents {
		counts[i] = make(map[string]int)
		for _, term := range features(doc, opts) {
			counts[i][term]++
		}
		for term := range counts[i] {
			df[term]++
		}
	}

	minDocs := opts.MinDF.documents(n)
	maxDocs := opts.MaxDF.documents(n)
	if maxDocs < minDocs {
		return nil, nil, failure.New(failure.Vectorization,
			"max_df=%s keeps fewer documents than min_df=%s", opts.MaxDF, opts.MinDF)
	}

	weights := make(map[string]float64)
	for term, d := range df {
		if float64(d) < minDocs || float64(d) > maxDocs {
			continue
		}
		weights[term] = idf(n, d)
	}
	if len(weights) == 0 {
		return nil, nil, failure.New(failure.Vectorization,
			"vocabulary is empty after document frequency filtering (min_df=%s, max_df=%s, %d documents)",
			opts.MinDF, opts.MaxDF, n)
	}

	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	if opts.MaxFeatures > 0 && len(terms) > opts.MaxFeatures {
		terms = topTerms(terms, counts, weights, opts)
	}
	sort.Strings(terms)

	vocab := newVocabulary(terms, weights, n, opts)
	m := mat.NewDense(n, len(terms), nil)
	for i := range corpus.Documents {
		row := m.RawRowView(i)
		for term, c := range counts[i] {
			j, ok := vocab.index[term]
			if !ok {
				continue
			}
			row[j] = termFrequency(c, opts.Sublinear) * vocab.idf[j]
		}
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, failure.New(failure.Vectorization, "non-finite weight in document %d", corpus.Documents[i].Index)
			}
		}
	}
	return m, vocab, nil
}

// topTerms keeps the MaxFeatures terms with the largest summed weight over
// the corpus, ties broken alphabetically.
func topTerms(terms []string, counts []map[string]int, idfs map[string]float64, opts Options) []string {
	total := make(map[string]float64, len(terms))
	for _, doc := range counts {
		for term, c := range doc {
			if w, ok := idfs[term]; ok {
				total[term] += termFrequency(c, opts.Sublinear) * w
			}
		}
	}
	sort.Slice(terms, func(a, b int) bool {
		if total[terms[a]] != total[terms[b]] {
			return total[terms[a]] > total[terms[b]]
		}
		return terms[a] < terms[b]
	})
	return terms[:opts.MaxFeatures]
}
