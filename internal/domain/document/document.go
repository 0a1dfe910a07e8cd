// Package document defines the Document aggregate: an identifier and name
// paired with the MinHash signature and deduplicated token set derived from
// the document's text. Documents are immutable once built; after insertion
// the similarity index is the source of truth and the in-memory value may be
// discarded.
package document

import (
	"strings"

	"github.com/kailas-cloud/neardup/internal/minhash"
	"github.com/kailas-cloud/neardup/internal/tokenize"
)

// Document is an immutable value object.
type Document struct {
	id        int64
	name      string
	signature minhash.Signature
	tokenSet  string
}

// FromText tokenizes content and signs it under gen's configuration. The
// token set keeps the full token sequence's support set (first-appearance
// order, duplicates removed) joined by single spaces; it serves inspection
// and exact-overlap fallback, not scoring.
func FromText(tok *tokenize.Tokenizer, gen *minhash.Generator, id int64, name, content string) Document {
	tokens := tok.Tokenize(content)
	return Document{
		id:        id,
		name:      name,
		signature: gen.Sign(tokens),
		tokenSet:  joinUnique(tokens),
	}
}

// Reconstruct creates a Document from stored fields (index hydration).
func Reconstruct(id int64, name string, signature minhash.Signature, tokenSet string) Document {
	return Document{id: id, name: name, signature: signature, tokenSet: tokenSet}
}

// ID returns the caller-assigned document identifier.
func (d Document) ID() int64 { return d.id }

// Name returns the human-readable document label.
func (d Document) Name() string { return d.name }

// MinHash returns the document's signature.
func (d Document) MinHash() minhash.Signature { return d.signature }

// TokenSet returns the deduplicated tokens joined by single spaces.
func (d Document) TokenSet() string { return d.tokenSet }

// joinUnique removes duplicate tokens, keeping first-appearance order.
func joinUnique(tokens []string) string {
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return strings.Join(unique, " ")
}
