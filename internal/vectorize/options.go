package vectorize

import (
	"fmt"
	"math"
)

// Analyzer selects the unit features are built from.
type Analyzer string

const (
	// AnalyzerWord builds features from tokenizer output.
	AnalyzerWord Analyzer = "word"
	// AnalyzerChar builds features from character n-grams of the cleaned text.
	AnalyzerChar Analyzer = "char"
)

// DefaultMaxFeatures caps the vocabulary when callers do not choose a size.
const DefaultMaxFeatures = 1000

// MaxNGram is the longest n-gram Fit accepts.
const MaxNGram = 10

// Threshold is a document-frequency bound given either as a proportion of
// the corpus or as an absolute document count.
type Threshold struct {
	Value      float64
	Proportion bool
}

// Count returns an absolute document-count threshold.
func Count(n int) Threshold {
	return Threshold{Value: float64(n)}
}

// Proportion returns a threshold relative to corpus size.
func Proportion(p float64) Threshold {
	return Threshold{Value: p, Proportion: true}
}

// ParseThreshold interprets v the way request parameters express it: a
// fractional value in (0, 1) is a proportion, 1.0 given as float is "all
// documents", and whole numbers above 1 are counts.
func ParseThreshold(v float64, isFloat bool) (Threshold, error) {
	switch {
	case math.IsNaN(v) || v < 0:
		return Threshold{}, fmt.Errorf("document frequency threshold %v out of range", v)
	case isFloat && v <= 1:
		return Proportion(v), nil
	case v != math.Trunc(v):
		return Threshold{}, fmt.Errorf("document frequency count %v is not a whole number", v)
	default:
		return Count(int(v)), nil
	}
}

// documents resolves the threshold against a corpus of n documents.
func (t Threshold) documents(n int) float64 {
	if t.Proportion {
		return t.Value * float64(n)
	}
	return t.Value
}

func (t Threshold) String() string {
	if t.Proportion {
		return fmt.Sprintf("%.2f", t.Value)
	}
	return fmt.Sprintf("%d", int(t.Value))
}

// Options configures Fit. The zero value is usable: it keeps every term that
// occurs in at least one document, with unigram word features.
type Options struct {
	MaxFeatures   int // 0 keeps every term
	MinDF         Threshold
	MaxDF         Threshold
	NGramMin      int
	NGramMax      int
	Analyzer      Analyzer
	KeepStopWords bool
	Sublinear     bool // use 1+ln(tf) instead of raw counts
}

// DefaultOptions returns the options used when a request sets none.
func DefaultOptions() Options {
	return Options{
		MaxFeatures: DefaultMaxFeatures,
		MinDF:       Count(1),
		MaxDF:       Proportion(1),
		NGramMin:    1,
		NGramMax:    1,
		Analyzer:    AnalyzerWord,
	}
}

// withDefaults fills unset fields. A MaxDF with a zero value is unset and
// means no upper limit; request parsing rejects an explicit zero.
func (o Options) withDefaults() Options {
	if o.Analyzer == "" {
		o.Analyzer = AnalyzerWord
	}
	if o.MinDF.Value == 0 {
		o.MinDF = Count(1)
	}
	if o.MaxDF.Value == 0 && !o.MaxDF.Proportion {
		o.MaxDF = Proportion(1)
	}
	if o.NGramMin <= 0 && o.NGramMax <= 0 {
		if o.Analyzer == AnalyzerChar {
			o.NGramMin, o.NGramMax = 2, 3
		} else {
			o.NGramMin, o.NGramMax = 1, 1
		}
	}
	if o.NGramMin <= 0 {
		o.NGramMin = 1
	}
	if o.NGramMax < o.NGramMin {
		o.NGramMax = o.NGramMin
	}
	return o
}

// Validate reports option combinations that can never produce features.
func (o Options) Validate() error {
	if o.MaxFeatures < 0 {
		return fmt.Errorf("max_features must not be negative, got %d", o.MaxFeatures)
	}
	if o.Analyzer != "" && o.Analyzer != AnalyzerWord && o.Analyzer != AnalyzerChar {
		return fmt.Errorf("unknown analyzer %q", o.Analyzer)
	}
	if o.NGramMin < 0 || o.NGramMax < 0 || (o.NGramMax > 0 && o.NGramMax < o.NGramMin) {
		return fmt.Errorf("invalid n-gram range (%d, %d)", o.NGramMin, o.NGramMax)
	}
	if o.NGramMin > MaxNGram || o.NGramMax > MaxNGram {
		return fmt.Errorf("n-gram range (%d, %d) exceeds the maximum length %d", o.NGramMin, o.NGramMax, MaxNGram)
	}
	if o.MinDF.Proportion && o.MinDF.Value > 1 || o.MaxDF.Proportion && o.MaxDF.Value > 1 {
		return fmt.Errorf("document frequency proportions must be within [0, 1]")
	}
	return nil
}
