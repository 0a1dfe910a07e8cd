package minhash

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/neardup/internal/tokenize"
)

// ErrNumPermMismatch signals an attempt to compare signatures generated with
// different num_perm values. It is a caller configuration error, not a data
// error.
var ErrNumPermMismatch = errors.New("minhash: num_perm mismatch")

// Signed is anything carrying a MinHash signature. Document satisfies it.
type Signed interface {
	MinHash() Signature
}

// Calculator computes exact Jaccard similarity between signatures and
// filters document collections against a query text. It pairs a tokenizer
// with a generator so the query is signed under the same configuration as
// the candidates.
type Calculator struct {
	tok *tokenize.Tokenizer
	gen *Generator
}

// NewCalculator creates a Calculator.
func NewCalculator(tok *tokenize.Tokenizer, gen *Generator) *Calculator {
	return &Calculator{tok: tok, gen: gen}
}

// SignText tokenizes and signs text under the calculator's configuration.
func (c *Calculator) SignText(text string) Signature {
	return c.gen.Sign(c.tok.Tokenize(text))
}

// Similarity estimates the Jaccard index of the underlying token sets as
// |values(sig1) ∩ values(sig2)| / |values(sig1) ∪ values(sig2)|, treating
// each signature as a set of hash values. Estimator variance is
// O(1/num_perm); imprecision is a documented tolerance, not an error.
// Comparing signatures of unequal num_perm returns ErrNumPermMismatch.
func (c *Calculator) Similarity(sig1, sig2 Signature) (float64, error) {
	return Similarity(sig1, sig2)
}

// Similarity is the package-level form of Calculator.Similarity.
func Similarity(sig1, sig2 Signature) (float64, error) {
	if sig1.NumPerm() != sig2.NumPerm() {
		return 0, fmt.Errorf("%w: %d vs %d", ErrNumPermMismatch, sig1.NumPerm(), sig2.NumPerm())
	}
	if sig1.NumPerm() == 0 {
		return 0, nil
	}

	set1 := make(map[uint64]struct{}, len(sig1))
	for _, v := range sig1 {
		set1[v] = struct{}{}
	}
	set2 := make(map[uint64]struct{}, len(sig2))
	for _, v := range sig2 {
		set2[v] = struct{}{}
	}

	intersection := 0
	for v := range set1 {
		if _, ok := set2[v]; ok {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection

	return float64(intersection) / float64(union), nil
}

// FilterBySimilarity signs queryText and returns every candidate whose
// similarity strictly exceeds threshold, preserving input order. Ranking is
// the similarity index's concern; this is the exact-verification path.
func FilterBySimilarity[T Signed](c *Calculator, queryText string, docs []T, threshold float64) ([]T, error) {
	querySig := c.SignText(queryText)

	var matched []T
	for _, doc := range docs {
		sim, err := Similarity(querySig, doc.MinHash())
		if err != nil {
			return nil, err
		}
		if sim > threshold {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}
