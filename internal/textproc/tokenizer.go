package textproc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Tokenizer names accepted by Lookup.
const (
	TokenizerAuto = "auto"
	TokenizerWord = "word"
	TokenizerCJK  = "cjk"
	TokenizerBPE  = "bpe"
)

// ErrUnknownTokenizer is returned by Lookup for unregistered names.
var ErrUnknownTokenizer = errors.New("unknown tokenizer")

// logographicShare is the fraction of letter runes above which a corpus is
// tokenized as a script without whitespace word boundaries.
const logographicShare = 0.3

// Tokenizer splits cleaned text into lowercase feature tokens.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	Name() string
	Tokenize(text string) []string
}

// Lookup returns the tokenizer registered under name. TokenizerAuto is not
// accepted here; use Detect to resolve it against a corpus.
func Lookup(name string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TokenizerWord:
		return WordTokenizer{}, nil
	case TokenizerCJK:
		return CJKTokenizer{}, nil
	case TokenizerBPE:
		return NewBPETokenizer()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTokenizer, name)
	}
}

// Names lists the selectable tokenizer names.
func Names() []string {
	return []string{TokenizerAuto, TokenizerWord, TokenizerCJK, TokenizerBPE}
}

// Detect picks a tokenizer for texts from the share of logographic letters.
func Detect(texts []string) Tokenizer {
	var letters, logographic int
	for _, text := range texts {
		for _, r := range text {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if IsLogographic(r) {
				logographic++
			}
		}
	}
	if letters > 0 && float64(logographic)/float64(letters) >= logographicShare {
		return CJKTokenizer{}
	}
	return WordTokenizer{}
}

// IsLogographic reports whether r belongs to a script written without
// spaces between words.
func IsLogographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai, unicode.Lao, unicode.Khmer, unicode.Myanmar)
}

// HasLogographic reports whether s contains any logographic rune.
func HasLogographic(s string) bool {
	for _, r := range s {
		if IsLogographic(r) {
			return true
		}
	}
	return false
}

// isWordToken reports whether tok contains a letter or a digit.
func isWordToken(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
