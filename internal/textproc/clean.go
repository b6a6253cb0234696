package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// scriptBlockRegex matches <script>...</script> and <style>...</style> blocks
	scriptBlockRegex = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)

	// markupTagRegex matches any remaining HTML/XML tag
	markupTagRegex = regexp.MustCompile(`(?s)<[^<>]{1,256}>`)

	// urlRegex matches http(s) and www URLs
	urlRegex = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

	// emailRegex matches e-mail addresses
	emailRegex = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)

	// entityRegex matches the common HTML character entities
	entityRegex = regexp.MustCompile(`&(?:amp|lt|gt|quot|apos|nbsp|#\d{1,6});`)
)

// StripMarkup removes markup, URLs, and e-mail addresses from text.
func StripMarkup(text string) string {
	text = scriptBlockRegex.ReplaceAllString(text, " ")
	text = markupTagRegex.ReplaceAllString(text, " ")
	text = entityRegex.ReplaceAllString(text, " ")
	text = urlRegex.ReplaceAllString(text, " ")
	return emailRegex.ReplaceAllString(text, " ")
}

// keptASCIIPunct is ASCII punctuation that stays in cleaned text because it
// shapes words or sentences.
const keptASCIIPunct = `'-.,!?;:`

// CleanRunes drops control and format runes and replaces decorative
// punctuation and symbols with spaces. Punctuation outside ASCII, such as
// full-width CJK sentence marks, is preserved.
func CleanRunes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case unicode.Is(unicode.Cc, r), unicode.Is(unicode.Cf, r):
			// dropped
		case r < unicode.MaxASCII && unicode.IsPunct(r) && !strings.ContainsRune(keptASCIIPunct, r):
			b.WriteRune(' ')
		case r < unicode.MaxASCII && unicode.IsSymbol(r):
			b.WriteRune(' ')
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpace collapses runs of whitespace into one space and trims the ends.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
