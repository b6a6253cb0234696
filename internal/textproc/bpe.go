package textproc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// loadCodec loads the cl100k_base encoding once per process. The codec is
// read-only after loading.
var loadCodec = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.Get(tokenizer.Cl100kBase)
})

// BPETokenizer splits text into byte-pair-encoding pieces. Useful for mixed
// or unknown scripts where neither word boundaries nor bigrams fit.
type BPETokenizer struct {
	codec tokenizer.Codec
}

// NewBPETokenizer returns a tokenizer backed by the cl100k_base encoding.
func NewBPETokenizer() (*BPETokenizer, error) {
	codec, err := loadCodec()
	if err != nil {
		return nil, fmt.Errorf("load bpe codec: %w", err)
	}
	return &BPETokenizer{codec: codec}, nil
}

func (t *BPETokenizer) Name() string { return TokenizerBPE }

func (t *BPETokenizer) Tokenize(text string) []string {
	_, pieces, err := t.codec.Encode(strings.ToLower(text))
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" || !isWordToken(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
