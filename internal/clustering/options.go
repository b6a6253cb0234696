package clustering

import (
	"fmt"

	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/params"
	"github.com/thebtf/textclust/internal/report"
	"github.com/thebtf/textclust/internal/textproc"
	"github.com/thebtf/textclust/internal/vectorize"
)

// Parameter keys read by the pipeline itself. Algorithm parameters are
// parsed by cluster.ParseSpec.
const (
	ParamTokenizer        = "tokenizer"
	ParamKeepMarkup       = "keep_markup"
	ParamMaxFeatures      = "max_features"
	ParamMinDF            = "min_df"
	ParamMaxDF            = "max_df"
	ParamNGramRange       = "ngram_range"
	ParamAnalyzer         = "analyzer"
	ParamSublinearTF      = "sublinear_tf"
	ParamKeepStopWords    = "keep_stop_words"
	ParamTopKeywords      = "top_keywords"
	ParamMinKeywordLength = "min_keyword_length"
	ParamSummaryStyle     = "summary_style"
)

// stageOptions holds the per-stage options derived from one request.
type stageOptions struct {
	text   textproc.Options
	vector vectorize.Options
	report report.Options
}

func (p *Pipeline) parseOptions(m params.Map) (stageOptions, error) {
	opts := stageOptions{
		vector: vectorize.DefaultOptions(),
		report: report.Options{
			TopKeywords:     p.defaults.TopKeywords,
			MinKeywordRunes: p.defaults.MinKeywordRunes,
			SummaryStyle:    p.defaults.SummaryStyle,
		},
	}
	if err := readTextOptions(m, &opts.text); err != nil {
		return opts, failure.New(failure.DegenerateInput, "invalid text options: %v", err)
	}
	if err := readVectorOptions(m, &opts.vector); err != nil {
		return opts, failure.New(failure.DegenerateInput, "invalid vectorizer options: %v", err)
	}
	if err := readReportOptions(m, &opts.report); err != nil {
		return opts, failure.New(failure.DegenerateInput, "invalid report options: %v", err)
	}
	return opts, nil
}

func readTextOptions(m params.Map, o *textproc.Options) error {
	if v, ok, err := m.String(ParamTokenizer); err != nil {
		return err
	} else if ok {
		o.Tokenizer = v
	}
	if v, ok, err := m.Bool(ParamKeepMarkup); err != nil {
		return err
	} else if ok {
		o.KeepMarkup = v
	}
	return nil
}

func readVectorOptions(m params.Map, o *vectorize.Options) error {
	if v, ok, err := m.Int(ParamMaxFeatures); err != nil {
		return err
	} else if ok {
		o.MaxFeatures = v
	}
	for key, dst := range map[string]*vectorize.Threshold{ParamMinDF: &o.MinDF, ParamMaxDF: &o.MaxDF} {
		v, isFloat, ok, err := m.Number(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		t, err := vectorize.ParseThreshold(v, isFloat)
		if err != nil {
			return err
		}
		if key == ParamMaxDF && t.Value == 0 {
			// a zero Threshold means unset to Fit
			return fmt.Errorf("%s must be greater than 0", ParamMaxDF)
		}
		*dst = t
	}
	if lo, hi, ok, err := m.IntPair(ParamNGramRange); err != nil {
		return err
	} else if ok {
		o.NGramMin, o.NGramMax = lo, hi
	}
	if v, ok, err := m.String(ParamAnalyzer); err != nil {
		return err
	} else if ok {
		o.Analyzer = vectorize.Analyzer(v)
		if !m.Has(ParamNGramRange) {
			// let the analyzer pick its own n-gram range
			o.NGramMin, o.NGramMax = 0, 0
		}
	}
	if v, ok, err := m.Bool(ParamSublinearTF); err != nil {
		return err
	} else if ok {
		o.Sublinear = v
	}
	if v, ok, err := m.Bool(ParamKeepStopWords); err != nil {
		return err
	} else if ok {
		o.KeepStopWords = v
	}
	return nil
}

func readReportOptions(m params.Map, o *report.Options) error {
	if v, ok, err := m.Int(ParamTopKeywords); err != nil {
		return err
	} else if ok {
		o.TopKeywords = v
	}
	if v, ok, err := m.Int(ParamMinKeywordLength); err != nil {
		return err
	} else if ok {
		o.MinKeywordRunes = v
	}
	if v, ok, err := m.String(ParamSummaryStyle); err != nil {
		return err
	} else if ok {
		o.SummaryStyle = v
	}
	return nil
}
