package textproc

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
)

// CJKTokenizer emits overlapping character bigrams for runs of logographic
// script and falls back to word segmentation for everything else. A run of a
// single character yields that character as a unigram.
type CJKTokenizer struct{}

func (CJKTokenizer) Name() string { return TokenizerCJK }

func (CJKTokenizer) Tokenize(text string) []string {
	var (
		out []string
		run []rune
	)
	flush := func() {
		out = appendBigrams(out, run)
		run = run[:0]
	}

	tokens := words.FromString(text)
	for tokens.Next() {
		tok := tokens.Value()
		if HasLogographic(tok) {
			for _, r := range tok {
				if IsLogographic(r) {
					run = append(run, r)
					continue
				}
				flush()
			}
			continue
		}
		flush()
		if isWordToken(tok) {
			out = append(out, strings.ToLower(strings.Trim(tok, "'-.")))
		}
	}
	flush()
	return out
}

func appendBigrams(out []string, run []rune) []string {
	switch len(run) {
	case 0:
		return out
	case 1:
		return append(out, string(run))
	}
	for i := 0; i+1 < len(run); i++ {
		out = append(out, string(run[i:i+2]))
	}
	return out
}
