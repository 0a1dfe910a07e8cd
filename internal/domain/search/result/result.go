// Package result defines similarity search candidates.
package result

import "sort"

// Candidate is a single similarity hit: the stored document fields plus the
// exact Jaccard score used for ranking and the backend's approximate
// distance (informational only).
type Candidate struct {
	docID      int64
	docName    string
	tokenSet   string
	similarity float64
	distance   float64
}

// New creates a candidate.
func New(docID int64, docName, tokenSet string, similarity, distance float64) Candidate {
	return Candidate{
		docID: docID, docName: docName, tokenSet: tokenSet,
		similarity: similarity, distance: distance,
	}
}

// DocID returns the document identifier.
func (c *Candidate) DocID() int64 { return c.docID }

// DocName returns the document label.
func (c *Candidate) DocName() string { return c.docName }

// TokenSet returns the stored deduplicated token set.
func (c *Candidate) TokenSet() string { return c.tokenSet }

// Similarity returns the exact Jaccard similarity to the query, in [0, 1].
func (c *Candidate) Similarity() float64 { return c.similarity }

// Distance returns the backend-reported approximate distance.
func (c *Candidate) Distance() float64 { return c.distance }

// SortBySimilarity orders candidates by similarity descending. Ties keep
// their arrival order; the backend's own ordering is never trusted to be
// canonical.
func SortBySimilarity(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
}
