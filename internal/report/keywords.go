package report

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/thebtf/textclust/internal/textproc"
	"github.com/thebtf/textclust/internal/vectorize"
)

// Keywords returns up to n terms of docs ranked by their TF-IDF weight in the
// concatenated text, highest first, ties broken by first occurrence. Terms
// shorter than minRunes are skipped unless they contain logographic script.
func Keywords(vocab *vectorize.Vocabulary, docs []textproc.Document, n, minRunes int) []string {
	if n <= 0 {
		return []string{}
	}
	scores := vocab.Score(docs)
	kept := scores[:0]
	for _, s := range scores {
		if keepKeyword(s.Term, minRunes) {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Weight != kept[j].Weight {
			return kept[i].Weight > kept[j].Weight
		}
		return kept[i].First < kept[j].First
	})

	out := make([]string, 0, min(n, len(kept)))
	seen := make(map[string]bool, n)
	for _, s := range kept {
		if len(out) == n {
			break
		}
		if seen[s.Term] {
			continue
		}
		seen[s.Term] = true
		out = append(out, s.Term)
	}
	return out
}

func keepKeyword(term string, minRunes int) bool {
	if strings.TrimSpace(term) == "" {
		return false
	}
	if textproc.HasLogographic(term) {
		return true
	}
	return utf8.RuneCountInString(term) >= minRunes
}

// phrase renders terms as "a", "a and b" or "a, b and c".
func phrase(terms []string) string {
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	default:
		return strings.Join(terms[:len(terms)-1], ", ") + " and " + terms[len(terms)-1]
	}
}
