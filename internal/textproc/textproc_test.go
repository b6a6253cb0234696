package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/textclust/internal/failure"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses whitespace",
			input:    "  Hello   world \n",
			expected: "Hello world",
		},
		{
			name:     "strips markup",
			input:    "<p>Hello <b>world</b></p>",
			expected: "Hello world",
		},
		{
			name:     "strips script blocks",
			input:    "before<script>alert(1)</script>after",
			expected: "before after",
		},
		{
			name:     "strips urls",
			input:    "see https://example.com/x?y=1 now",
			expected: "see now",
		},
		{
			name:     "strips emails",
			input:    "mail me@example.com please",
			expected: "mail please",
		},
		{
			name:     "drops format runes",
			input:    "a\u200bb",
			expected: "ab",
		},
		{
			name:     "replaces decorative punctuation",
			input:    "stars *** and #tags",
			expected: "stars and tags",
		},
		{
			name:     "keeps word punctuation",
			input:    "don't stop-words.",
			expected: "don't stop-words.",
		},
		{
			name:     "drops emoji",
			input:    "great 👍 job",
			expected: "great job",
		},
		{
			name:     "preserves ideographic full stop",
			input:    "你好。再见、朋友",
			expected: "你好。再见、朋友",
		},
		{
			name:     "preserves full-width sentence marks",
			input:    "你好！请问订单？退款；地址：北京、上海。",
			expected: "你好！请问订单？退款；地址：北京、上海。",
		},
		{
			name:     "preserves full-width comma and brackets",
			input:    "订单（已付款），请稍等",
			expected: "订单（已付款），请稍等",
		},
		{
			name:     "folds full-width digits",
			input:    "订单１２３",
			expected: "订单123",
		},
		{
			name:     "folds full-width letters",
			input:    "ｈｅｌｌｏ",
			expected: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input, false))
		})
	}
}

func TestCleanKeepMarkup(t *testing.T) {
	assert.Equal(t, "b x b", Clean("<b>x</b>", true))
}

func TestWordTokenizer(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"The cat sat, quickly.", []string{"the", "cat", "sat", "quickly"}},
		{"Don't panic", []string{"don't", "panic"}},
		{"version 2 released", []string{"version", "2", "released"}},
		{"... !!!", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, WordTokenizer{}.Tokenize(tt.input))
		})
	}
}

func TestCJKTokenizer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"bigrams", "价格太贵", []string{"价格", "格太", "太贵"}},
		{"punctuation splits runs", "价格。好", []string{"价格", "好"}},
		{"mixed scripts", "我爱Go语言", []string{"我爱", "go", "语言"}},
		{"latin only", "hello world", []string{"hello", "world"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CJKTokenizer{}.Tokenize(tt.input))
		})
	}
}

func TestBPETokenizer(t *testing.T) {
	tok, err := Lookup(TokenizerBPE)
	require.NoError(t, err)
	assert.Equal(t, TokenizerBPE, tok.Name())

	tokens := tok.Tokenize("Hello World")
	require.NotEmpty(t, tokens)
	for _, token := range tokens {
		assert.NotContains(t, token, " ")
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, TokenizerWord, Detect([]string{"hello world"}).Name())
	assert.Equal(t, TokenizerCJK, Detect([]string{"价格太贵了"}).Name())
	assert.Equal(t, TokenizerCJK, Detect([]string{"hi 价格太贵"}).Name())
	assert.Equal(t, TokenizerWord, Detect([]string{"", "123"}).Name())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownTokenizer)
}

func TestNormalizeDropsEmptyDocuments(t *testing.T) {
	corpus, err := Normalize([]string{"the cat", "", "!!!", "dog"}, Options{})
	require.NoError(t, err)

	require.Equal(t, 2, corpus.Len())
	assert.Equal(t, 0, corpus.Documents[0].Index)
	assert.Equal(t, 3, corpus.Documents[1].Index)
	assert.Equal(t, "dog", corpus.Documents[1].Text)
	assert.Equal(t, []string{"the", "cat"}, corpus.Documents[0].Tokens)
	assert.Equal(t, []int{1, 2}, corpus.Dropped)
	assert.Equal(t, 4, corpus.OriginalSize)
	assert.Equal(t, TokenizerWord, corpus.Tokenizer)
}

func TestNormalizeEmptyCorpus(t *testing.T) {
	_, err := Normalize(nil, Options{})
	assert.True(t, failure.IsKind(err, failure.EmptyCorpus))

	_, err = Normalize([]string{"", "   ", "<br/>"}, Options{})
	assert.True(t, failure.IsKind(err, failure.EmptyCorpus))
}

func TestNormalizeUnknownTokenizer(t *testing.T) {
	_, err := Normalize([]string{"text"}, Options{Tokenizer: "klingon"})
	assert.True(t, failure.IsKind(err, failure.DegenerateInput))
}

func TestNormalizeChinese(t *testing.T) {
	corpus, err := Normalize([]string{"这个产品质量很好，我很满意", "物流太慢了，等了一个星期"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, TokenizerCJK, corpus.Tokenizer)
	assert.Contains(t, corpus.Documents[0].Tokens, "产品")
	assert.Contains(t, corpus.Documents[1].Tokens, "物流")
}
