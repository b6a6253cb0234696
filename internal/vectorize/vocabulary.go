package vectorize

import (
	"github.com/thebtf/textclust/internal/textproc"
)

// Vocabulary maps feature terms to matrix columns and holds their IDF weights.
// It is built by Fit and is read-only afterwards.
type Vocabulary struct {
	terms []string
	index map[string]int
	idf   []float64
	docs  int
	opts  Options
}

func newVocabulary(terms []string, idfs map[string]float64, docs int, opts Options) *Vocabulary {
	v := &Vocabulary{
		terms: terms,
		index: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
		docs:  docs,
		opts:  opts,
	}
	for i, term := range terms {
		v.index[term] = i
		v.idf[i] = idfs[term]
	}
	return v
}

// Len returns the number of features.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Terms returns the features in column order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Index returns the column of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// IDF returns the inverse document frequency of term.
func (v *Vocabulary) IDF(term string) (float64, bool) {
	i, ok := v.index[term]
	if !ok {
		return 0, false
	}
	return v.idf[i], true
}

// Documents returns the number of documents the vocabulary was fitted on.
func (v *Vocabulary) Documents() int {
	return v.docs
}

// TermScore is a term's weight within a scored text.
type TermScore struct {
	Term   string
	Weight float64
	First  int // position of the first occurrence in the scored feature stream
}

// Score re-weights the concatenation of docs with the fitted IDF values.
// Terms outside the vocabulary are ignored. Results are in first-occurrence
// order.
func (v *Vocabulary) Score(docs []textproc.Document) []TermScore {
	counts := make(map[string]int)
	first := make(map[string]int)
	var order []string
	pos := 0
	for _, doc := range docs {
		for _, term := range features(doc, v.opts) {
			if _, ok := v.index[term]; ok {
				if _, seen := first[term]; !seen {
					first[term] = pos
					order = append(order, term)
				}
				counts[term]++
			}
			pos++
		}
	}

	out := make([]TermScore, 0, len(order))
	for _, term := range order {
		out = append(out, TermScore{
			Term:   term,
			Weight: termFrequency(counts[term], v.opts.Sublinear) * v.idf[v.index[term]],
			First:  first[term],
		})
	}
	return out
}
