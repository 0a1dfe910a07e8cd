// Package tokenize turns raw document text (plain text or Markdown) into a
// normalized token sequence for MinHash fingerprinting. The pipeline strips
// Markdown structure while keeping visible text, segments the result into
// sentences on Chinese/English clause punctuation, and extracts tokens per
// sentence with a pluggable segmentation strategy.
package tokenize

import (
	"regexp"
	"strings"
)

var (
	// A line consisting solely of pipe-delimited dashes/colons is a table
	// separator row and carries no text.
	tableSepRegex = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

	imageRegex   = regexp.MustCompile(`!\[(.*?)\]\(.*?\)`)
	linkRegex    = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	fenceRegex   = regexp.MustCompile("(?s)```.*?```")
	listRegex    = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	orderedRegex = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	headingRegex = regexp.MustCompile(`(?m)^\s*#{1,6}\s+`)
	decorRegex   = regexp.MustCompile("[`*_~>]+")
	hspaceRegex  = regexp.MustCompile(`[ \t]+`)
)

// sentenceBoundaries are the Chinese and English sentence/clause marks that
// terminate a segment. Newlines are handled separately.
const sentenceBoundaries = "。！？；：，,;:.!?"

// Tokenizer converts raw text into tokens using the configured segmenter.
// The zero value is not usable; construct with New.
type Tokenizer struct {
	seg Segmenter
}

// New creates a Tokenizer with the given sentence segmenter.
func New(seg Segmenter) *Tokenizer {
	return &Tokenizer{seg: seg}
}

// Tokenize runs the full pipeline: Markdown cleanup, sentence segmentation,
// and per-sentence token extraction. Empty input yields no tokens; that is a
// valid degenerate document, not an error.
func (t *Tokenizer) Tokenize(text string) []string {
	text = stripTables(text)
	text = stripMarkdown(text)

	var tokens []string
	for _, sentence := range splitSentences(text) {
		var extracted []string
		if containsCJK(sentence) {
			extracted = t.seg.Segment(sentence)
		} else {
			extracted = tokenRegex.FindAllString(sentence, -1)
		}
		for _, tok := range extracted {
			if strings.TrimSpace(tok) != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

// stripTables drops Markdown table separator rows and unwraps pipe-delimited
// rows into their cell contents joined by single spaces.
func stripTables(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if tableSepRegex.MatchString(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.Contains(line, "|") && strings.HasPrefix(trimmed, "|") {
			cells := strings.Split(strings.Trim(trimmed, "|"), "|")
			kept := cells[:0]
			for _, c := range cells {
				if c = strings.TrimSpace(c); c != "" {
					kept = append(kept, c)
				}
			}
			if len(kept) > 0 {
				out = append(out, strings.Join(kept, " "))
			}
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// stripMarkdown removes Markdown decoration while preserving visible text:
// image alt text and link text survive, fenced code blocks do not.
func stripMarkdown(text string) string {
	text = imageRegex.ReplaceAllString(text, "$1")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = fenceRegex.ReplaceAllString(text, " ")
	text = listRegex.ReplaceAllString(text, "")
	text = orderedRegex.ReplaceAllString(text, "")
	text = headingRegex.ReplaceAllString(text, "")
	text = decorRegex.ReplaceAllString(text, " ")
	text = hspaceRegex.ReplaceAllString(text, " ")
	return text
}

// splitSentences cuts text after any sentence/clause punctuation mark and on
// newline runs. Whitespace-only segments are discarded.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if strings.ContainsRune(sentenceBoundaries, r) {
			flush()
		}
	}
	flush()

	return sentences
}

func containsCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}
