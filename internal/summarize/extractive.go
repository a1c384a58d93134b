package summarize

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches a period that ends a sentence: one followed by
// whitespace or the end of the text. Periods inside abbreviations ("U.S")
// and decimals ("2.5") are not boundaries.
var sentenceBoundary = regexp.MustCompile(`\.(?:\s+|$)`)

// Sentences splits text at sentence boundaries, trims each fragment and its
// trailing periods, and drops empty ones.
func Sentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(p), "."))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CopiedSentences returns the sentences of summary that appear verbatim as
// sentences of input, in summary order.
func CopiedSentences(input, summary string) []string {
	inputSet := make(map[string]struct{})
	for _, s := range Sentences(input) {
		inputSet[s] = struct{}{}
	}

	var copied []string
	for _, s := range Sentences(summary) {
		if _, ok := inputSet[s]; ok {
			copied = append(copied, s)
		}
	}
	return copied
}
