package textproc

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/words"
)

// WordTokenizer segments text on Unicode word boundaries (UAX #29).
type WordTokenizer struct{}

func (WordTokenizer) Name() string { return TokenizerWord }

func (WordTokenizer) Tokenize(text string) []string {
	var out []string
	tokens := words.FromString(text)
	for tokens.Next() {
		tok := tokens.Value()
		if !isWordToken(tok) {
			continue
		}
		out = append(out, strings.ToLower(strings.Trim(tok, "'-.")))
	}
	return out
}
