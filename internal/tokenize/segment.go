package tokenize

import "regexp"

// tokenRegex extracts Latin word runs (with one optional internal
// apostrophe), decimal numbers, and single CJK ideographs.
var tokenRegex = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?|\d+(?:\.\d+)?|[\x{4e00}-\x{9fff}]`)

// Segmenter splits a single sentence into tokens. Implementations must be
// deterministic and safe for concurrent use.
type Segmenter interface {
	Segment(sentence string) []string
}

// RunSegmenter extracts tokens by pattern matching: Latin runs, numbers,
// and individual CJK ideographs. This is the fallback strategy of the
// pipeline and requires no dictionary.
type RunSegmenter struct{}

// Segment returns the pattern-matched tokens of sentence.
func (RunSegmenter) Segment(sentence string) []string {
	return tokenRegex.FindAllString(sentence, -1)
}

// BigramSegmenter is the script-aware strategy: Latin runs and numbers are
// extracted as whole tokens while consecutive CJK ideographs are expanded
// into overlapping bigrams, which approximate word segmentation without a
// dictionary. A CJK run of length one yields the single ideograph.
type BigramSegmenter struct{}

// Segment returns the script-aware tokens of sentence.
func (BigramSegmenter) Segment(sentence string) []string {
	var tokens []string

	runes := []rune(sentence)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case isCJK(r):
			start := i
			for i < len(runes) && isCJK(runes[i]) {
				i++
			}
			tokens = append(tokens, cjkBigrams(runes[start:i])...)
		case isLatinLetter(r) || isDigit(r):
			start := i
			for i < len(runes) && (isLatinLetter(runes[i]) || isDigit(runes[i]) ||
				runes[i] == '\'' || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, tokenRegex.FindAllString(string(runes[start:i]), -1)...)
		default:
			i++
		}
	}

	return tokens
}

// cjkBigrams expands a run of CJK runes into overlapping bigrams.
func cjkBigrams(run []rune) []string {
	if len(run) == 0 {
		return nil
	}
	if len(run) == 1 {
		return []string{string(run)}
	}
	out := make([]string, 0, len(run)-1)
	for i := 0; i+2 <= len(run); i++ {
		out = append(out, string(run[i:i+2]))
	}
	return out
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

func isLatinLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
