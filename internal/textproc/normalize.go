// Package textproc cleans raw input texts and splits them into tokens.
package textproc

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/thebtf/textclust/internal/failure"
)

// Document is one input text after cleaning.
type Document struct {
	Index  int      // position in the original request
	Text   string   // original text, unchanged
	Clean  string   // normalized text used for vectorization
	Tokens []string // tokens produced from Clean
}

// Corpus is the ordered set of documents that survived cleaning.
type Corpus struct {
	Documents    []Document
	Dropped      []int // original indices of documents that had no tokens
	OriginalSize int
	Tokenizer    string
}

// Len returns the number of surviving documents.
func (c *Corpus) Len() int {
	return len(c.Documents)
}

// Options controls normalization.
type Options struct {
	// Tokenizer is one of the names returned by Names. Empty means auto.
	Tokenizer string
	// KeepMarkup disables stripping of markup, URLs, and e-mail addresses.
	KeepMarkup bool
}

// fullWidthPunct holds the full-width sentence marks and brackets of CJK
// text. NFKC would fold them to ASCII.
var fullWidthPunct = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0xff01, Hi: 0xff01, Stride: 1}, // ！
		{Lo: 0xff08, Hi: 0xff09, Stride: 1}, // （）
		{Lo: 0xff0c, Hi: 0xff0c, Stride: 1}, // ，
		{Lo: 0xff1a, Hi: 0xff1b, Stride: 1}, // ：；
		{Lo: 0xff1f, Hi: 0xff1f, Stride: 1}, // ？
	},
}

// nfkc folds compatibility forms except full-width CJK punctuation.
func nfkc(text string) string {
	out, _, err := transform.String(runes.If(runes.NotIn(fullWidthPunct), norm.NFKC, nil), text)
	if err != nil {
		return norm.NFKC.String(text)
	}
	return out
}

// Clean applies Unicode and punctuation normalization to a single text.
func Clean(text string, keepMarkup bool) string {
	text = nfkc(text)
	if !keepMarkup {
		text = StripMarkup(text)
	}
	return CollapseSpace(CleanRunes(text))
}

// Normalize cleans and tokenizes texts. Documents without any token are
// dropped and their indices recorded in Corpus.Dropped. It fails with
// failure.EmptyCorpus when nothing survives.
func Normalize(texts []string, opts Options) (*Corpus, error) {
	if len(texts) == 0 {
		return nil, failure.New(failure.EmptyCorpus, "no texts provided")
	}

	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = Clean(text, opts.KeepMarkup)
	}

	tok, err := resolveTokenizer(opts.Tokenizer, cleaned)
	if err != nil {
		return nil, err
	}

	corpus := &Corpus{
		Documents:    make([]Document, 0, len(texts)),
		OriginalSize: len(texts),
		Tokenizer:    tok.Name(),
	}
	for i, text := range texts {
		tokens := tok.Tokenize(cleaned[i])
		if len(tokens) == 0 {
			corpus.Dropped = append(corpus.Dropped, i)
			continue
		}
		corpus.Documents = append(corpus.Documents, Document{
			Index:  i,
			Text:   text,
			Clean:  cleaned[i],
			Tokens: tokens,
		})
	}

	if len(corpus.Documents) == 0 {
		return nil, failure.New(failure.EmptyCorpus, "all %d texts are empty after cleaning", len(texts))
	}
	return corpus, nil
}

func resolveTokenizer(name string, cleaned []string) (Tokenizer, error) {
	if name == "" || name == TokenizerAuto {
		return Detect(cleaned), nil
	}
	tok, err := Lookup(name)
	switch {
	case errors.Is(err, ErrUnknownTokenizer):
		return nil, failure.Wrap(failure.DegenerateInput, err, "tokenizer %q is not supported", name)
	case err != nil:
		return nil, failure.Wrap(failure.Vectorization, err, "tokenizer %q unavailable", name)
	}
	return tok, nil
}

// String is used in log lines.
func (c *Corpus) String() string {
	return fmt.Sprintf("corpus(%d/%d docs, tokenizer=%s)", len(c.Documents), c.OriginalSize, c.Tokenizer)
}
