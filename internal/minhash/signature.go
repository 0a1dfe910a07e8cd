// Package minhash implements fixed-length MinHash signatures and the
// Jaccard similarity estimator over them. A signature is num_perm unsigned
// 64-bit minima, one per hash permutation; on the wire it is the big-endian
// concatenation of those values. Identical (tokens, num_perm) inputs always
// produce byte-identical signatures.
package minhash

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// mersennePrime bounds permutation hash outputs; 2^61-1 keeps the universal
// hash products well clear of uint64 wrap bias while leaving MaxUint64 free
// as the untouched-minimum marker for empty documents.
const mersennePrime = (1 << 61) - 1

// generatorSeed fixes the permutation constants. Changing it invalidates
// every stored signature.
const generatorSeed = 0x6e656172647570 // "neardup"

// Signature is a MinHash fingerprint: one minimum per permutation.
type Signature []uint64

// NumPerm returns the number of permutations in the signature.
func (s Signature) NumPerm() int { return len(s) }

// Bytes serializes the signature as big-endian uint64 values, the exact
// layout the index backend interprets as a MinHash vector.
func (s Signature) Bytes() []byte {
	out := make([]byte, len(s)*8)
	for i, v := range s {
		binary.BigEndian.PutUint64(out[i*8:], v)
	}
	return out
}

// FromBytes parses a big-endian serialized signature.
func FromBytes(b []byte) (Signature, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("signature length %d is not a multiple of 8", len(b))
	}
	sig := make(Signature, len(b)/8)
	for i := range sig {
		sig[i] = binary.BigEndian.Uint64(b[i*8:])
	}
	return sig, nil
}

// Generator produces signatures under a fixed family of num_perm universal
// hash permutations. Safe for concurrent use; signing is a pure function of
// the token sequence.
type Generator struct {
	numPerm int
	a, b    []uint64
}

// NewGenerator creates a Generator with num_perm permutations. The
// permutation constants are derived from a fixed seed, so two generators
// with the same num_perm are interchangeable across processes.
func NewGenerator(numPerm int) *Generator {
	if numPerm <= 0 {
		numPerm = 128
	}
	g := &Generator{
		numPerm: numPerm,
		a:       make([]uint64, numPerm),
		b:       make([]uint64, numPerm),
	}
	state := uint64(generatorSeed)
	for i := 0; i < numPerm; i++ {
		// a must be non-zero modulo the prime
		g.a[i] = splitmix64(&state)%(mersennePrime-1) + 1
		g.b[i] = splitmix64(&state) % mersennePrime
	}
	return g
}

// NumPerm returns the configured number of permutations.
func (g *Generator) NumPerm() int { return g.numPerm }

// Sign folds the token sequence into a signature. Tokens are lower-cased
// before hashing; duplicates contribute nothing beyond the first occurrence.
// An empty sequence leaves every minimum at MaxUint64, a structurally valid
// signature with near-zero similarity to any non-empty document.
func (g *Generator) Sign(tokens []string) Signature {
	sig := make(Signature, g.numPerm)
	for i := range sig {
		sig[i] = math.MaxUint64
	}

	for _, token := range tokens {
		base := xxhash.Sum64String(strings.ToLower(token))
		for i := 0; i < g.numPerm; i++ {
			h := (g.a[i]*base + g.b[i]) % mersennePrime
			if h < sig[i] {
				sig[i] = h
			}
		}
	}

	return sig
}

// splitmix64 is the SplitMix64 step, used only to derive permutation
// constants deterministically.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
