package vectorize

import (
	"strings"

	"github.com/thebtf/textclust/internal/textproc"
)

// features expands a document into its feature terms, in text order.
func features(doc textproc.Document, o Options) []string {
	if o.Analyzer == AnalyzerChar {
		return charNGrams(doc.Clean, o.NGramMin, o.NGramMax)
	}

	tokens := doc.Tokens
	if !o.KeepStopWords {
		kept := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if !textproc.IsStopWord(tok) {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	return wordNGrams(tokens, o.NGramMin, o.NGramMax)
}

// wordNGrams returns contiguous token spans with lengths in [lo, hi]. Spans
// starting at the same token are emitted shortest first.
func wordNGrams(tokens []string, lo, hi int) []string {
	if lo == 1 && hi == 1 {
		return tokens
	}
	if lo > len(tokens) {
		return nil
	}
	out := make([]string, 0, len(tokens)*(min(hi, len(tokens))-lo+1))
	for i := range tokens {
		for n := lo; n <= hi && i+n <= len(tokens); n++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// charNGrams returns rune n-grams inside each whitespace separated chunk.
// Chunks shorter than lo are kept whole so short words still count.
func charNGrams(text string, lo, hi int) []string {
	var out []string
	for _, chunk := range strings.Fields(strings.ToLower(text)) {
		runes := []rune(chunk)
		if len(runes) < lo {
			out = append(out, chunk)
			continue
		}
		for i := range runes {
			for n := lo; n <= hi && i+n <= len(runes); n++ {
				out = append(out, string(runes[i:i+n]))
			}
		}
	}
	return out
}
